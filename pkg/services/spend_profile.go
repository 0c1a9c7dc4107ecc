package services

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// BuildProfile aggregates the payments of one (subcategory, supplier) pair.
// points must be ordered by payment date. Series, cumulative and stats use
// only payments with a known delay; points keep every payment.
func BuildProfile(subcategory, supplier string, points []models.PaymentPoint) *models.Profile {
	profile := &models.Profile{
		Subcategory: subcategory,
		Supplier:    supplier,
		Series:      []models.SeriesPoint{},
		Points:      points,
		Cumulative:  []models.CumulativePoint{},
		Stats:       models.ProfileStats{Total: decimal.Zero},
	}
	if profile.Points == nil {
		profile.Points = []models.PaymentPoint{}
	}

	byDelay := make(map[int]decimal.Decimal)
	var delays []float64
	total := decimal.Zero
	for _, p := range points {
		if p.DelayDays == nil {
			continue
		}
		d := *p.DelayDays
		if _, ok := byDelay[d]; !ok {
			byDelay[d] = decimal.Zero
		}
		byDelay[d] = byDelay[d].Add(p.Amount)
		delays = append(delays, float64(d))
		total = total.Add(p.Amount)
	}
	if len(delays) == 0 {
		return profile
	}

	keys := make([]int, 0, len(byDelay))
	for d := range byDelay {
		keys = append(keys, d)
	}
	sort.Ints(keys)

	running := decimal.Zero
	for _, d := range keys {
		amount := byDelay[d]
		running = running.Add(amount)
		share := 0.0
		if !total.IsZero() {
			share, _ = running.Div(total).Float64()
		}
		profile.Series = append(profile.Series, models.SeriesPoint{DelayDays: d, Amount: amount})
		profile.Cumulative = append(profile.Cumulative, models.CumulativePoint{DelayDays: d, Amount: running, Share: share})
	}

	sort.Float64s(delays)
	profile.Stats = models.ProfileStats{
		NPayments: len(delays),
		Total:     total,
		Median:    Quantile(delays, 0.5),
		P25:       Quantile(delays, 0.25),
		P75:       Quantile(delays, 0.75),
	}
	return profile
}

// Quantile is the continuous quantile of sorted values: linear interpolation
// between closest ranks at position q*(n-1). Empty input yields 0.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
