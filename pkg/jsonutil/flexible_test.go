package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string value", json.RawMessage(`"PO-6903033"`), "PO-6903033"},
		{"integer value", json.RawMessage(`6903033`), "6903033"},
		{"integral float drops fraction", json.RawMessage(`6903033.0`), "6903033"},
		{"fractional float", json.RawMessage(`3.14`), "3.14"},
		{"large integer preserves precision", json.RawMessage(`9007199254740993`), "9007199254740993"},
		{"boolean", json.RawMessage(`true`), "true"},
		{"null value", json.RawMessage(`null`), ""},
		{"empty raw message", json.RawMessage{}, ""},
		{"nil raw message", nil, ""},
		{"object falls back to raw", json.RawMessage(`{"a":1}`), `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleString_Unmarshal(t *testing.T) {
	var payload struct {
		OrderNo FlexibleString `json:"order_no"`
		LineNo  FlexibleString `json:"line_no"`
		Missing FlexibleString `json:"missing"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"order_no": 4500012, "line_no": " 10 "}`), &payload))
	assert.Equal(t, "4500012", payload.OrderNo.String())
	assert.Equal(t, "10", payload.LineNo.String())
	assert.Equal(t, "", payload.Missing.String())
}
