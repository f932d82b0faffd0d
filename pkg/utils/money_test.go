package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0", true},
		{"0.01", true},
		{"10000000000000", true},
		{"10000000000000.01", false},
		{"184467440737100516.16", false},
		{"-0.01", false},
		{"1.001", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(1234), ToCents(decimal.RequireFromString("12.34")))
	assert.Equal(t, int64(1_000_000_000_000_000), ToCents(MaxAmount))
	assert.True(t, FromCents(ToCents(MaxAmount)).Equal(MaxAmount))
}

func TestParseAmount_Maximum(t *testing.T) {
	_, err := ParseAmount("10000000000000.01")
	assert.Error(t, err)

	got, err := ParseAmount(" 10000000000000 ")
	assert.NoError(t, err)
	assert.True(t, got.Equal(MaxAmount))
}

func TestNormalizeDepartment(t *testing.T) {
	assert.Equal(t, "IT", NormalizeDepartment(" it "))
	assert.Equal(t, "FINANCE", NormalizeDepartment("Finance"))
	assert.Equal(t, "", NormalizeDepartment("  "))
}
