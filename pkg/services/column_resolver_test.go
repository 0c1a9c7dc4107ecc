package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func cols(labels ...string) []models.ColumnSchema {
	out := make([]models.ColumnSchema, len(labels))
	for i, l := range labels {
		out[i] = models.ColumnSchema{Name: normalizeLabel(l), OriginalLabel: l, Type: models.ColumnTypeText}
	}
	return out
}

func normalizeLabel(l string) string {
	switch l {
	case "Fecha Pago Prevista":
		return "fecha_pago_prevista"
	case "Fecha":
		return "fecha"
	}
	return l
}

func TestResolveColumn_TierMajorPrecedence(t *testing.T) {
	// "fecha pago" only matches by containment while "fecha" matches exactly,
	// so the exact tier wins even though "fecha pago" has higher priority.
	columns := cols("Fecha Pago Prevista", "Fecha")

	got, ok := ResolveColumn(columns, []string{"fecha pago", "fecha"})
	assert.True(t, ok)
	assert.Equal(t, "fecha", got)
}

func TestResolveColumn_AliasPriorityWithinTier(t *testing.T) {
	columns := []models.ColumnSchema{
		{Name: "importe", OriginalLabel: "Importe"},
		{Name: "monto_pagado", OriginalLabel: "Monto Pagado"},
	}

	got, ok := ResolveColumn(columns, []string{"monto pagado", "importe"})
	assert.True(t, ok)
	assert.Equal(t, "monto_pagado", got)
}

func TestResolveColumn_CaseAndAccentInsensitive(t *testing.T) {
	columns := []models.ColumnSchema{{Name: "descripcion_linea", OriginalLabel: "DESCRIPCIÓN  Línea"}}

	got, ok := ResolveColumn(columns, []string{"descripcion linea"})
	assert.True(t, ok)
	assert.Equal(t, "descripcion_linea", got)
}

func TestResolveColumn_NormalizedNameFallback(t *testing.T) {
	columns := []models.ColumnSchema{{Name: "fecha_de_pago", OriginalLabel: "F. Pago (dd/mm)"}}

	got, ok := ResolveColumn(columns, []string{"fecha de pago"})
	assert.True(t, ok)
	assert.Equal(t, "fecha_de_pago", got)
}

func TestResolveColumn_ContainmentIsWordBased(t *testing.T) {
	columns := []models.ColumnSchema{
		{Name: "tipo", OriginalLabel: "Tipo"},
		{Name: "numero_po", OriginalLabel: "Número PO"},
	}

	got, ok := ResolveColumn(columns, []string{"po"})
	assert.True(t, ok)
	assert.Equal(t, "numero_po", got)

	_, ok = ResolveColumn(columns[:1], []string{"po"})
	assert.False(t, ok)
}

func TestResolveColumn_NoMatch(t *testing.T) {
	_, ok := ResolveColumn(cols("Proveedor"), []string{"importe"})
	assert.False(t, ok)

	_, ok = ResolveColumn(nil, []string{"importe"})
	assert.False(t, ok)
}

func TestResolveFields_ColumnClaimedOnce(t *testing.T) {
	columns := []models.ColumnSchema{
		{Name: "descripcion", OriginalLabel: "Descripción"},
	}
	fields := []AliasField{
		{Field: models.FieldOrderDescription, Aliases: []string{"descripcion"}},
		{Field: models.FieldLineDescription, Aliases: []string{"descripcion"}},
	}

	resolved := ResolveFields(columns, fields)
	assert.Equal(t, map[string]string{models.FieldOrderDescription: "descripcion"}, resolved)
}

func TestDefaultAliasSet(t *testing.T) {
	set := DefaultAliasSet()
	for role, required := range requiredRoleFields {
		for _, f := range required {
			assert.NotEmpty(t, set.Aliases(role, f), "%s.%s", role, f)
		}
	}
	assert.Contains(t, set.Aliases(models.RolePurchaseOrders, models.FieldOrderNo), "no orden", "aliases are folded")
}

func TestParseAliasSet_MissingRole(t *testing.T) {
	_, err := ParseAliasSet([]byte("roles:\n  purchase_orders:\n    - field: order_no\n      aliases: [pedido]\n"))
	assert.Error(t, err)
}
