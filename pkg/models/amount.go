package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human-readable amount into raw base units at the
// given mint precision. Conversion is exact; amounts with more fractional
// digits than the mint supports are rejected rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more precision than the token's %d decimals", amount, decimals)
	}
	if shifted.Sign() < 0 {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	bi := shifted.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows the token's base units", amount)
	}
	return bi.Uint64(), nil
}

// FromBaseUnits converts raw base units back to a human-readable amount.
func FromBaseUnits(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals))
}
