package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func point(delay *int, amount int64, paid string) models.PaymentPoint {
	return models.PaymentPoint{DelayDays: delay, Amount: decimal.NewFromInt(amount), PaymentDate: paid, OrderNo: "1", LineNo: "1"}
}

func days(n int) *int { return &n }

func TestBuildProfile(t *testing.T) {
	points := []models.PaymentPoint{
		point(days(5), 100, "2024-01-06"),
		point(days(5), 200, "2024-01-06"),
		point(nil, 999, "2024-01-07"),
		point(days(10), 300, "2024-01-11"),
	}

	p := BuildProfile("Papelería", "ACME", points)

	require.Len(t, p.Series, 2)
	assert.Equal(t, 5, p.Series[0].DelayDays)
	assert.True(t, decimal.NewFromInt(300).Equal(p.Series[0].Amount))
	assert.Equal(t, 10, p.Series[1].DelayDays)
	assert.True(t, decimal.NewFromInt(300).Equal(p.Series[1].Amount))

	require.Len(t, p.Cumulative, 2)
	assert.InDelta(t, 0.5, p.Cumulative[0].Share, 1e-9)
	assert.InDelta(t, 1.0, p.Cumulative[1].Share, 1e-9)
	assert.True(t, decimal.NewFromInt(600).Equal(p.Cumulative[1].Amount))

	assert.Len(t, p.Points, 4, "points keep payments without a delay")
	assert.Equal(t, 3, p.Stats.NPayments)
	assert.True(t, decimal.NewFromInt(600).Equal(p.Stats.Total))
	assert.Equal(t, 5.0, p.Stats.Median)
	assert.Equal(t, 5.0, p.Stats.P25)
	assert.Equal(t, 7.5, p.Stats.P75)
}

func TestBuildProfile_Empty(t *testing.T) {
	p := BuildProfile("Papelería", "Nadie", nil)

	assert.NotNil(t, p.Series)
	assert.NotNil(t, p.Points)
	assert.NotNil(t, p.Cumulative)
	assert.Empty(t, p.Series)
	assert.Equal(t, 0, p.Stats.NPayments)
	assert.True(t, p.Stats.Total.IsZero())
}

func TestBuildProfile_ZeroTotal(t *testing.T) {
	p := BuildProfile("s", "x", []models.PaymentPoint{point(days(0), 0, "2024-01-01")})
	require.Len(t, p.Cumulative, 1)
	assert.Zero(t, p.Cumulative[0].Share)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{7}, 0.25, 7},
		{"median odd", []float64{1, 2, 3}, 0.5, 2},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p25 interpolated", []float64{0, 10, 20, 30}, 0.25, 7.5},
		{"p75 interpolated", []float64{0, 10, 20, 30}, 0.75, 22.5},
		{"max", []float64{1, 9}, 1, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.values, tt.q), 1e-9)
		})
	}
}
