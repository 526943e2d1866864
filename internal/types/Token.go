/*

Token metadata used by every USD-denominated calculation. Prices are refreshed
out-of-band by the surrounding system; the ledgers never fetch them mid-operation.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type Token struct {
	Denom    string            `json:"denom"`     // e.g., "ueth"
	Symbol   string            `json:"symbol"`    // e.g., "ETH"
	Decimals int               `json:"decimals"`  // e.g., 6
	PriceUSD sdkmath.LegacyDec `json:"price_usd"` // refreshed out-of-band
}
