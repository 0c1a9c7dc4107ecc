package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/testhelpers"
)

func newTestRepo(t *testing.T) CatalogRepository {
	t.Helper()
	return NewCatalogRepository(testhelpers.GetTestStore(t).DB())
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func intp(n int) *int { return &n }

func TestCatalogRepository_InsertLinesFirstWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.InsertLines(ctx, []models.LineClassification{
		{OrderNo: "PO-1", LineNo: "1", Category: "IT", Subcategory: "Hardware", Supplier: "ACME"},
		{OrderNo: "PO-1", LineNo: "2", Category: "Oficina", Subcategory: "Papel", Supplier: "Globex"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.InsertLines(ctx, []models.LineClassification{
		{OrderNo: "PO-1", LineNo: "1", Category: "Other", Subcategory: "Uncategorized"},
		{OrderNo: "PO-2", LineNo: "1", Category: "IT", Subcategory: "Hardware", Supplier: "ACME"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines, err := repo.ListLines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "IT", lines[0].Category, "first classification is kept")

	pairs, err := repo.UsedPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryPair{
		{Category: "IT", Subcategory: "Hardware"},
		{Category: "Oficina", Subcategory: "Papel"},
	}, pairs)
}

func TestCatalogRepository_TaxonomyRoundTripKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tax := models.Taxonomy{
		{Category: "Servicios", Subcategories: []string{"Limpieza", "Seguridad"}},
		{Category: "IT", Subcategories: []string{"Software"}},
	}
	require.NoError(t, repo.SaveTaxonomy(ctx, tax))

	loaded, err := repo.LoadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, tax, loaded)

	require.NoError(t, repo.SaveTaxonomy(ctx, models.Taxonomy{}))
	loaded, err = repo.LoadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCatalogRepository_PaymentsAndCounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertLines(ctx, []models.LineClassification{
		{OrderNo: "PO-1", LineNo: "1", Category: "IT", Subcategory: "Hardware", Supplier: "ACME"},
		{OrderNo: "PO-2", LineNo: "1", Category: "IT", Subcategory: "Hardware", Supplier: "Globex"},
		{OrderNo: "PO-3", LineNo: "1", Category: "Oficina", Subcategory: "Papel", Supplier: ""},
	})
	require.NoError(t, err)

	orderDate := date("2024-01-01")
	require.NoError(t, repo.InsertPayments(ctx, []models.PaymentRecord{
		{Category: "IT", Subcategory: "Hardware", Supplier: "ACME", OrderNo: "PO-1", LineNo: "1",
			OrderDate: &orderDate, PaymentDate: date("2024-01-11"), Amount: decimal.RequireFromString("100.50"), DelayDays: intp(10)},
		{Category: "IT", Subcategory: "Hardware", Supplier: "ACME", OrderNo: "PO-1", LineNo: "1",
			PaymentDate: date("2024-01-03"), Amount: decimal.NewFromInt(7)},
	}))

	points, err := repo.PaymentPoints(ctx, "Hardware", "ACME")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-03", points[0].PaymentDate, "ordered by payment date")
	assert.Nil(t, points[0].DelayDays)
	assert.Equal(t, 10, *points[1].DelayDays)
	assert.True(t, decimal.RequireFromString("100.5").Equal(points[1].Amount))

	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.NotNil(t, payments[0].OrderDate)
	assert.True(t, orderDate.Equal(*payments[0].OrderDate))
	assert.Nil(t, payments[1].OrderDate)

	counts, err := repo.SubcategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.SubcategoryCount{
		{Category: "IT", Subcategory: "Hardware", Lines: 2, Payments: 2},
		{Category: "Oficina", Subcategory: "Papel", Lines: 1, Payments: 0},
	}, counts)

	suppliers, err := repo.Suppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "Globex"}, suppliers)

	bySub, err := repo.SubcategorySuppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Hardware": {"ACME", "Globex"}}, bySub)

	empty, err := repo.PaymentPoints(ctx, "Hardware", "Nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogRepository_Clear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertLines(ctx, []models.LineClassification{{OrderNo: "1", LineNo: "1", Category: "A", Subcategory: "B"}})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTaxonomy(ctx, models.Taxonomy{{Category: "A", Subcategories: []string{"B"}}}))
	require.NoError(t, repo.InsertPayments(ctx, []models.PaymentRecord{
		{Category: "A", Subcategory: "B", OrderNo: "1", LineNo: "1", PaymentDate: date("2024-02-01"), Amount: decimal.NewFromInt(1)},
	}))

	require.NoError(t, repo.ClearPayments(ctx))
	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)

	require.NoError(t, repo.Clear(ctx))
	lines, err := repo.ListLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
	tax, err := repo.LoadTaxonomy(ctx)
	require.NoError(t, err)
	assert.Empty(t, tax)
}
