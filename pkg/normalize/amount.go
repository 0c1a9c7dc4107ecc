package normalize

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount normalizes a money cell. Native numbers are taken as is.
// Strings are reduced to [0-9,.-]; when both separators occur the one that
// appears last is the decimal mark and the other is dropped; remaining commas
// become dots; if several dots remain only the last is kept.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	}

	var b strings.Builder
	for _, r := range RawString(v) {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-")
	s = strings.ReplaceAll(s, "-", "")

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	if lastComma >= 0 && lastDot >= 0 {
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")

	if n := strings.Count(s, "."); n > 1 {
		last := strings.LastIndexByte(s, '.')
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
