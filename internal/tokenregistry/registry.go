/*

TokenRegistry holds static token metadata and the current USD price per
token. Prices are pushed in by the surrounding system; every USD-denominated
calculation in the ledgers reads from here before taking any pool lock.

*/

package tokenregistry

import (
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dexledger/internal/logger"
	"github.com/elys-network/dexledger/internal/types"
)

var registryLogger = logger.GetForComponent("token_registry")

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]types.Token
}

func New() *Registry {
	return &Registry{
		tokens: make(map[string]types.Token),
	}
}

// Register adds or replaces a token's metadata.
func (r *Registry) Register(token types.Token) error {
	if token.Denom == "" {
		return fmt.Errorf("%w: empty denom", types.ErrInvalidToken)
	}
	if token.PriceUSD.IsNil() || token.PriceUSD.IsNegative() {
		return fmt.Errorf("%w: %s has no valid price", types.ErrInvalidToken, token.Denom)
	}

	r.mu.Lock()
	r.tokens[token.Denom] = token
	r.mu.Unlock()

	registryLogger.Debug().
		Str("denom", token.Denom).
		Str("symbol", token.Symbol).
		Str("price_usd", token.PriceUSD.String()).
		Msg("Token registered")
	return nil
}

// Token returns the metadata for denom.
func (r *Registry) Token(denom string) (types.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[denom]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s", types.ErrInvalidToken, denom)
	}
	return token, nil
}

// IsRegistered reports whether denom is known.
func (r *Registry) IsRegistered(denom string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[denom]
	return ok
}

// PriceUSD returns the current USD price for denom. This is the oracle
// surface the ledgers consume.
func (r *Registry) PriceUSD(denom string) (sdkmath.LegacyDec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[denom]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", types.ErrInvalidToken, denom)
	}
	return token.PriceUSD, nil
}

// SetPrice updates the USD price for an already registered token.
func (r *Registry) SetPrice(denom string, price sdkmath.LegacyDec) error {
	if price.IsNil() || price.IsNegative() {
		return fmt.Errorf("%w: invalid price for %s", types.ErrInvalidToken, denom)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[denom]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidToken, denom)
	}
	token.PriceUSD = price
	r.tokens[denom] = token
	return nil
}

// All returns every registered token sorted by denom.
func (r *Registry) All() []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}
