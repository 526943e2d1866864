package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/elys-network/dexledger/internal/governance"
	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/poolledger"
	"github.com/elys-network/dexledger/internal/positiontracker"
	"github.com/elys-network/dexledger/internal/stakingledger"
	"github.com/elys-network/dexledger/internal/state"
	"github.com/elys-network/dexledger/internal/types"
	"github.com/elys-network/dexledger/internal/validators"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the ledgers over a read-only JSON API.
type WebServer struct {
	router     *mux.Router
	port       string
	pools      *poolledger.Ledger
	positions  *positiontracker.Tracker
	staking    *stakingledger.Ledger
	validators *validators.Registry
	governance *governance.Tally
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, pools *poolledger.Ledger, positions *positiontracker.Tracker, staking *stakingledger.Ledger, registry *validators.Registry, tally *governance.Tally) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		pools:      pools,
		positions:  positions,
		staking:    staking,
		validators: registry,
		governance: tally,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/swaps", ws.handleGetPoolSwaps).Methods("GET")
	api.HandleFunc("/pools/{id}/positions", ws.handleGetPoolPositions).Methods("GET")
	api.HandleFunc("/staking/pools", ws.handleGetStakingPools).Methods("GET")
	api.HandleFunc("/staking/positions/{owner}", ws.handleGetStakePositions).Methods("GET")
	api.HandleFunc("/validators", ws.handleGetValidators).Methods("GET")
	api.HandleFunc("/validators/{id}", ws.handleGetValidator).Methods("GET")
	api.HandleFunc("/governance/power/{owner}", ws.handleGetVotingPower).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "dexledger",
			"version": "1.0.0",
		},
		"ledger_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pool_count":       len(ws.pools.Pools()),
			"validator_count":  len(ws.validators.Validators()),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns every liquidity pool
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.pools.Pools()

	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns a specific pool by ID
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	pool, err := ws.pools.Pool(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, pool)
}

// handleGetPoolSwaps returns the pool's swap history, newest last
func (ws *WebServer) handleGetPoolSwaps(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	swaps, err := ws.pools.Swaps(poolID, limit)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	response := map[string]interface{}{
		"swaps": swaps,
		"count": len(swaps),
		"limit": limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolPositions returns open liquidity positions in the pool
func (ws *WebServer) handleGetPoolPositions(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	positions := ws.positions.PositionsByPool(poolID)

	response := map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStakingPools returns every staking pool
func (ws *WebServer) handleGetStakingPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.staking.Pools()

	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStakePositions returns the owner's stake positions
func (ws *WebServer) handleGetStakePositions(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	positions := ws.staking.PositionsByOwner(owner)

	response := map[string]interface{}{
		"owner":     owner,
		"positions": positions,
		"count":     len(positions),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetValidators returns every validator node
func (ws *WebServer) handleGetValidators(w http.ResponseWriter, r *http.Request) {
	nodes := ws.validators.Validators()

	response := map[string]interface{}{
		"validators": nodes,
		"count":      len(nodes),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetValidator returns a specific validator by ID
func (ws *WebServer) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid validator ID")
		return
	}

	node, err := ws.validators.Validator(types.ValidatorID(id))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Validator not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, node)
}

// handleGetVotingPower returns the owner's governance voting power
func (ws *WebServer) handleGetVotingPower(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	power := ws.governance.VotingPower(owner)

	response := map[string]interface{}{
		"owner":       owner,
		"votingPower": power,
		"timestamp":   time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEvents returns recent persisted ledger events
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	events, err := state.GetRecentEvents(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) poolIDFromRequest(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
