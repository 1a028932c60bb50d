package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Prices are fixed-point ratios in [0, 1] scaled by 1e18. Liquidity and
// notional sizes are integers in stable-token base units (6 decimals).

// Scale1e18 is the price scale. One outcome token pays Scale1e18 (= $1)
// in 1e18 terms on resolution.
var Scale1e18 = new(big.Int).SetUint64(1_000_000_000_000_000_000)

// StableUnits is the number of base units per whole stable token.
const StableUnits = 1_000_000

// PriceFromFloat converts a float ratio in [0, 1] to a 1e18-scaled price.
// Intended for tests and config defaults; wire parsing goes through decimals.
func PriceFromFloat(f float64) *big.Int {
	d := decimal.NewFromFloat(f)
	return PriceFromDecimal(d)
}

// PriceFromDecimal converts a decimal ratio to a 1e18-scaled price.
func PriceFromDecimal(d decimal.Decimal) *big.Int {
	return d.Mul(decimal.New(1, 18)).BigInt()
}

// PriceToDecimal converts a 1e18-scaled price to a decimal ratio in (0, 1).
// This is the encoding venues accept on the wire.
func PriceToDecimal(p *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(p, -18)
}

// SizeToDecimal converts a base-unit notional to whole stable-token units.
func SizeToDecimal(size int64) decimal.Decimal {
	return decimal.New(size, -6)
}

// SizeFromDecimal converts whole stable-token units to base units.
func SizeFromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.New(1, 6)).IntPart()
}

// SpreadBps returns (Scale1e18 - totalCost) / Scale1e18 * 10_000, the gross
// spread of a two-leg pairing in basis points. Negative when totalCost > $1.
func SpreadBps(totalCost *big.Int) int64 {
	diff := new(big.Int).Sub(Scale1e18, totalCost)
	diff.Mul(diff, big.NewInt(10_000))
	diff.Div(diff, Scale1e18)
	return diff.Int64()
}
