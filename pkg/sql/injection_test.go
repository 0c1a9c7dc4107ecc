package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{"subcategory with accents", "Material de oficina", false},
		{"supplier with apostrophe", "O'Brien", false},
		{"numeric value", 100, false},
		{"nil value", nil, false},
		{"tautology", "' OR '1'='1", true},
		{"stacked statement", "'; DROP TABLE catalog_payments--", true},
		{"union select", "1 UNION SELECT * FROM catalog_line_map", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection("supplier", tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.True(t, result.IsSQLi)
			assert.NotEmpty(t, result.Fingerprint)
			assert.Equal(t, "supplier", result.ParamName)
		})
	}
}

func TestCheckAllParameters(t *testing.T) {
	results := CheckAllParameters(map[string]any{
		"subcategory": "Papeleria",
		"supplier":    "' OR 1=1--",
		"limit":       10,
	})
	require.Len(t, results, 1)
	assert.Equal(t, "supplier", results[0].ParamName)

	assert.Empty(t, CheckAllParameters(map[string]any{"subcategory": "Toner"}))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"no_pedido"`, QuoteIdentifier("no_pedido"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
	assert.Equal(t, `"x", "y"`, QuoteIdentifiers([]string{"x", "y"}))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
	assert.Equal(t, "", Placeholders(0))
}
