package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func schemaOf(labels ...string) []models.ColumnSchema {
	out := make([]models.ColumnSchema, len(labels))
	for i, l := range labels {
		out[i] = models.ColumnSchema{Name: l, OriginalLabel: l}
	}
	return out
}

func TestAssignRoles_Happy(t *testing.T) {
	schema := map[string][]models.ColumnSchema{
		"ordenes":  schemaOf("Nº Orden", "Línea", "Proveedor", "Fecha Orden", "Descripción Línea"),
		"pagos":    schemaOf("Orden de Compra", "Línea", "Importe", "Fecha Pago"),
		"detalles": schemaOf("Pedido", "Línea", "Fecha Entrega", "Detalle"),
	}

	roles, err := AssignRoles(schema, DefaultAliasSet())
	require.NoError(t, err)

	assert.Equal(t, "ordenes", roles.PurchaseOrders.TableName)
	assert.Equal(t, "pagos", roles.Disbursements.TableName)
	require.NotNil(t, roles.LineDetails)
	assert.Equal(t, "detalles", roles.LineDetails.TableName)

	po := roles.PurchaseOrders.ResolvedColumns
	assert.Equal(t, "Nº Orden", po[models.FieldOrderNo])
	assert.Equal(t, "Línea", po[models.FieldLineNo])
	assert.Equal(t, "Fecha Orden", po[models.FieldOrderDate])
	assert.Equal(t, "Descripción Línea", po[models.FieldLineDescription])

	d := roles.Disbursements.ResolvedColumns
	assert.Equal(t, "Importe", d[models.FieldAmount])
	assert.Equal(t, "Fecha Pago", d[models.FieldPaymentDate])

	assert.Equal(t, map[models.Role]string{
		models.RolePurchaseOrders: "ordenes",
		models.RoleDisbursements:  "pagos",
		models.RoleLineDetails:    "detalles",
	}, roles.Tables())
}

func TestAssignRoles_DescriptiveTieBreaker(t *testing.T) {
	// "a_pagos" scores higher for purchase orders (more resolvable fields)
	// but has no descriptive column, so "z_ordenes" must win the role.
	schema := map[string][]models.ColumnSchema{
		"a_pagos":   schemaOf("Orden", "Línea", "Proveedor", "Fecha", "Importe", "Fecha Pago"),
		"z_ordenes": schemaOf("Orden", "Línea", "Descripción"),
	}

	roles, err := AssignRoles(schema, DefaultAliasSet())
	require.NoError(t, err)
	assert.Equal(t, "z_ordenes", roles.PurchaseOrders.TableName)
	assert.Equal(t, "a_pagos", roles.Disbursements.TableName)
	assert.Nil(t, roles.LineDetails)

	pagos := ScoreTable("a_pagos", schema["a_pagos"], models.RolePurchaseOrders, DefaultAliasSet())
	ordenes := ScoreTable("z_ordenes", schema["z_ordenes"], models.RolePurchaseOrders, DefaultAliasSet())
	assert.Greater(t, pagos.Score, ordenes.Score)
	assert.False(t, pagos.Descriptive)
	assert.True(t, ordenes.Descriptive)
}

func TestScoreTable_DisbursementBonuses(t *testing.T) {
	s := ScoreTable("pagos", schemaOf("Orden", "Línea", "Importe", "Fecha Pago"), models.RoleDisbursements, DefaultAliasSet())
	// 4 fields * 2 + amount bonus 2 + payment date bonus 1
	assert.Equal(t, 11, s.Score)
}

func TestAssignRoles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schema  map[string][]models.ColumnSchema
		wantErr error
	}{
		{
			name:    "no tables",
			schema:  map[string][]models.ColumnSchema{},
			wantErr: apperrors.ErrRoleUnresolved,
		},
		{
			name: "purchase orders without line number",
			schema: map[string][]models.ColumnSchema{
				"ordenes": schemaOf("Orden", "Descripción"),
				"pagos":   schemaOf("Orden", "Línea", "Importe", "Fecha Pago"),
			},
			wantErr: apperrors.ErrRoleUnresolved,
		},
		{
			name: "no descriptive column anywhere",
			schema: map[string][]models.ColumnSchema{
				"ordenes": schemaOf("Orden", "Línea", "Proveedor"),
				"pagos":   schemaOf("Orden", "Línea", "Importe", "Fecha Pago"),
			},
			wantErr: apperrors.ErrNoDescriptiveColumn,
		},
		{
			name: "only one table",
			schema: map[string][]models.ColumnSchema{
				"ordenes": schemaOf("Orden", "Línea", "Descripción"),
			},
			wantErr: apperrors.ErrRoleUnresolved,
		},
		{
			name: "disbursements without amount",
			schema: map[string][]models.ColumnSchema{
				"ordenes": schemaOf("Orden", "Línea", "Descripción"),
				"pagos":   schemaOf("Orden", "Línea", "Fecha Pago"),
			},
			wantErr: apperrors.ErrRoleUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssignRoles(tt.schema, DefaultAliasSet())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
