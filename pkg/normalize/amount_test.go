package normalize

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{100, "100"},
		{int64(-7), "-7"},
		{1234.5, "1234.5"},
		{"1234.56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"1.234,56 €", "1234.56"},
		{"12,5", "12.5"},
		{"1.234.567", "1234.567"},
		{"-250,00", "-250"},
		{"MXN 3 000.10", "3000.1"},
		{decimal.RequireFromString("9.99"), "9.99"},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		if assert.True(t, ok, "%v", tt.in) {
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%v -> %s", tt.in, got)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []any{nil, "", "n/a", "--", math.NaN(), math.Inf(1)} {
		_, ok := ParseAmount(in)
		assert.False(t, ok, "%v", in)
	}
}
