package transfer

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// ParseAmount converts a human-readable decimal amount ("1.5") into base
// units for a token with the given decimals. Amounts with more fractional
// digits than the token supports are rejected rather than truncated.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if !dec.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %q", amount)
	}
	scaled := dec.MulInt(sdkmath.NewIntWithDecimal(1, decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return scaled.TruncateInt().BigInt(), nil
}
