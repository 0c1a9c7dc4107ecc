// Package normalize derives comparable keys, dates and amounts from raw
// spreadsheet cells so independently authored exports can be joined.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// maxExactFloat is the largest magnitude at which every integer is an exact float64.
const maxExactFloat = 1 << 53

// RawString is the trimmed string form of a cell. Integral floats render
// without a fractional part, so a spreadsheet 6903033.0 reads "6903033".
func RawString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout)
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < maxExactFloat {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AlnumKey uppercases the raw form and keeps only [0-9A-Z].
// The second result is false when nothing survives.
func AlnumKey(v any) (string, bool) {
	raw := strings.ToUpper(RawString(v))
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// NumericKey keeps only digits and strips leading zeros. A value made only of
// zeros is "0". The second result is false when there are no digits.
func NumericKey(v any) (string, bool) {
	raw := RawString(v)
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return "0", true
	}
	return digits, true
}

// IntegerKey parses the first contiguous run of digits. The second result is
// false when there is no digit run or it overflows int64.
func IntegerKey(v any) (int64, bool) {
	raw := RawString(v)
	start := strings.IndexAny(raw, "0123456789")
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(raw[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Keys bundles every derived form of one identifier cell.
type Keys struct {
	Raw        string
	Alnum      string
	HasAlnum   bool
	Numeric    string
	HasNumeric bool
	Integer    int64
	HasInteger bool
}

// KeysOf derives all keys of v.
func KeysOf(v any) Keys {
	k := Keys{Raw: RawString(v)}
	k.Alnum, k.HasAlnum = AlnumKey(k.Raw)
	k.Numeric, k.HasNumeric = NumericKey(k.Raw)
	k.Integer, k.HasInteger = IntegerKey(k.Raw)
	return k
}

// Absent reports whether the cell carries no identifier at all.
func (k Keys) Absent() bool {
	return k.Raw == "" && !k.HasAlnum && !k.HasNumeric && !k.HasInteger
}

// NumericSuffixMatch reports whether one numeric key ends with the other, in
// either direction. It covers zero padding and prefixes of differing length.
func NumericSuffixMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

// Matches is the OR of alnum, numeric, raw and integer equality.
func (k Keys) Matches(o Keys) bool {
	switch {
	case k.HasAlnum && o.HasAlnum && k.Alnum == o.Alnum:
		return true
	case k.HasNumeric && o.HasNumeric && k.Numeric == o.Numeric:
		return true
	case k.Raw != "" && k.Raw == o.Raw:
		return true
	case k.HasInteger && o.HasInteger && k.Integer == o.Integer:
		return true
	}
	return false
}

// MatchesWithSuffix is Matches plus numeric suffix containment.
func (k Keys) MatchesWithSuffix(o Keys) bool {
	if k.Matches(o) {
		return true
	}
	return k.HasNumeric && o.HasNumeric && NumericSuffixMatch(k.Numeric, o.Numeric)
}
