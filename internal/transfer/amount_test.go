package transfer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     *big.Int
		wantErr  bool
	}{
		{name: "whole units", amount: "1", decimals: 18, want: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)},
		{name: "fractional", amount: "1.5", decimals: 6, want: big.NewInt(1_500_000)},
		{name: "smallest unit", amount: "0.000001", decimals: 6, want: big.NewInt(1)},
		{name: "zero decimals", amount: "42", decimals: 0, want: big.NewInt(42)},
		{name: "too many decimal places", amount: "0.0000001", decimals: 6, wantErr: true},
		{name: "zero", amount: "0", decimals: 6, wantErr: true},
		{name: "negative", amount: "-1", decimals: 6, wantErr: true},
		{name: "not a number", amount: "abc", decimals: 6, wantErr: true},
		{name: "empty", amount: "", decimals: 6, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.amount, tc.decimals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Zero(t, tc.want.Cmp(got))
		})
	}
}
