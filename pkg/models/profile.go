package models

import "github.com/shopspring/decimal"

// SeriesPoint is the summed amount paid at one delay.
type SeriesPoint struct {
	DelayDays int             `json:"delay_days"`
	Amount    decimal.Decimal `json:"amount"`
}

// CumulativePoint is the running amount up to and including DelayDays.
type CumulativePoint struct {
	DelayDays int             `json:"delay_days"`
	Amount    decimal.Decimal `json:"amount"`
	Share     float64         `json:"share"`
}

// PaymentPoint is a single linked payment.
type PaymentPoint struct {
	DelayDays   *int            `json:"delay_days"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"` // YYYY-MM-DD
	OrderNo     string          `json:"order_no"`
	LineNo      string          `json:"line_no"`
}

// ProfileStats summarise payments with a known delay.
type ProfileStats struct {
	NPayments int             `json:"n_payments"`
	Total     decimal.Decimal `json:"total"`
	Median    float64         `json:"median"`
	P25       float64         `json:"p25"`
	P75       float64         `json:"p75"`
}

// Profile is the payment-delay distribution of one (subcategory, supplier) pair.
type Profile struct {
	Subcategory string            `json:"subcategory"`
	Supplier    string            `json:"supplier"`
	Series      []SeriesPoint     `json:"series"`
	Points      []PaymentPoint    `json:"points"`
	Cumulative  []CumulativePoint `json:"cumulative"`
	Stats       ProfileStats      `json:"stats"`
}
