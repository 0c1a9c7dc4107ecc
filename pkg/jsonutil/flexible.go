package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Numbers are decoded as json.Number so large identifiers keep every digit.
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err == nil {
		return formatNumber(num)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// formatNumber renders integral values without a fractional part, so an
// identifier echoed back as 6903033.0 reads "6903033".
func formatNumber(num json.Number) string {
	s := num.String()
	if i, err := num.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := num.Float64(); err == nil && f == float64(int64(f)) && !strings.ContainsAny(s, "eE") {
		return fmt.Sprintf("%d", int64(f))
	}
	return s
}

// FlexibleString is a string field that also accepts JSON numbers and booleans.
// Use it for identifiers in LLM output, which models frequently unquote.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	*f = FlexibleString(FlexibleStringValue(data))
	return nil
}

// String returns the trimmed value.
func (f FlexibleString) String() string {
	return strings.TrimSpace(string(f))
}
