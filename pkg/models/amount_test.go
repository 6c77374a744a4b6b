package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"tenth of SOL", "0.1", 9, 100000000, false},
		{"whole SOL", "1", 9, 1000000000, false},
		{"usdc cents", "25.50", 6, 25500000, false},
		{"zero decimal token", "42", 0, 42, false},
		{"smallest unit", "0.000000001", 9, 1, false},
		{"exact without float drift", "0.3", 9, 300000000, false},
		{"too much precision", "0.0000000001", 9, 0, true},
		{"fractional on zero decimals", "1.5", 0, 0, true},
		{"negative", "-1", 9, 0, true},
		{"overflow", "18446744073709.551616", 9, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "0.1", FromBaseUnits(100000000, 9).String())
	assert.Equal(t, "25.5", FromBaseUnits(25500000, 6).String())
	assert.Equal(t, "42", FromBaseUnits(42, 0).String())
}

func TestRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("1234.567891")
	raw, err := ToBaseUnits(amount, 6)
	require.NoError(t, err)
	assert.True(t, amount.Equal(FromBaseUnits(raw, 6)))
}
