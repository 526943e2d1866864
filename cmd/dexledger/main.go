package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/elys-network/dexledger/internal/config"
	"github.com/elys-network/dexledger/internal/governance"
	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/poolledger"
	"github.com/elys-network/dexledger/internal/positiontracker"
	"github.com/elys-network/dexledger/internal/stakingledger"
	"github.com/elys-network/dexledger/internal/state"
	"github.com/elys-network/dexledger/internal/tokenregistry"
	"github.com/elys-network/dexledger/internal/validators"
	"github.com/elys-network/dexledger/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the dexledger service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("Dexledger starting...")

	// Initialize Database Connection (event store)
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Ledger Wiring ---
	params := config.DefaultRiskParameters
	sink := state.Sink{}

	tokens := tokenregistry.New()
	tracker := positiontracker.New(sink)
	pools := poolledger.New(tokens, tracker, params, sink)
	registry := validators.New(params, sink)
	staking := stakingledger.New(tokens, registry, params, sink)
	registry.BindDelegations(staking)
	tally := governance.NewTally(staking)

	// --- 3. Web Server ---
	webServer := web.NewWebServer(config.WebPort, pools, tracker, staking, registry, tally)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting dexledger API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// Block until asked to stop.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}
