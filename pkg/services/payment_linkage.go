package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

// Disbursement is an eligible disbursement row: its payment date and amount
// both normalized.
type Disbursement struct {
	Order       normalize.Keys
	Line        normalize.Keys
	PaymentDate time.Time
	Amount      decimal.Decimal
}

// DetailDate is one dated line-details row. AnyLine is set when the table
// has no line column, so the date applies to every line of the order.
type DetailDate struct {
	Order   normalize.Keys
	Line    normalize.Keys
	AnyLine bool
	Date    time.Time
}

// LinkStats are the per-row counters of one linkage run.
type LinkStats struct {
	PaymentsLinked         int
	DisbursementsSkipped   int
	DisbursementsUnmatched int
}

// ParseDisbursements keeps the rows whose payment date and amount normalize.
// cols maps logical fields to the physical columns of the rows.
func ParseDisbursements(rows []map[string]any, cols map[string]string) ([]Disbursement, int) {
	out := make([]Disbursement, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		paid, okDate := normalize.ParseDate(row[cols[models.FieldPaymentDate]])
		amount, okAmount := normalize.ParseAmount(row[cols[models.FieldAmount]])
		if !okDate || !okAmount {
			skipped++
			continue
		}
		out = append(out, Disbursement{
			Order:       normalize.KeysOf(row[cols[models.FieldOrderNo]]),
			Line:        normalize.KeysOf(row[cols[models.FieldLineNo]]),
			PaymentDate: paid,
			Amount:      amount,
		})
	}
	return out, skipped
}

// ParseDetailDates keeps the line-details rows with a date. A table without
// a resolved date column yields nothing. Without a resolved line column every
// row is order-level; with one, a blank line cell matches no line.
func ParseDetailDates(rows []map[string]any, cols map[string]string) []DetailDate {
	dateCol, ok := cols[models.FieldDetailDate]
	if !ok {
		return nil
	}
	lineCol, hasLine := cols[models.FieldLineNo]
	out := make([]DetailDate, 0, len(rows))
	for _, row := range rows {
		d, ok := normalize.ParseDate(row[dateCol])
		if !ok {
			continue
		}
		detail := DetailDate{
			Order:   normalize.KeysOf(row[cols[models.FieldOrderNo]]),
			AnyLine: !hasLine,
			Date:    d,
		}
		if hasLine {
			detail.Line = normalize.KeysOf(row[lineCol])
		}
		out = append(out, detail)
	}
	return out
}

// keyIndex finds rows whose order key may match a probe under the order
// predicate. Candidates still need the line predicate.
type keyIndex struct {
	alnum    map[string][]int
	numeric  map[string][]int
	raw      map[string][]int
	integer  map[int64][]int
	suffixes map[string][]int // proper numeric suffixes of each row's key
}

func newKeyIndex(keys []normalize.Keys) *keyIndex {
	ix := &keyIndex{
		alnum:    make(map[string][]int),
		numeric:  make(map[string][]int),
		raw:      make(map[string][]int),
		integer:  make(map[int64][]int),
		suffixes: make(map[string][]int),
	}
	for i, k := range keys {
		if k.HasAlnum {
			ix.alnum[k.Alnum] = append(ix.alnum[k.Alnum], i)
		}
		if k.HasNumeric {
			ix.numeric[k.Numeric] = append(ix.numeric[k.Numeric], i)
			for _, s := range numericSuffixes(k.Numeric) {
				ix.suffixes[s] = append(ix.suffixes[s], i)
			}
		}
		if k.Raw != "" {
			ix.raw[k.Raw] = append(ix.raw[k.Raw], i)
		}
		if k.HasInteger {
			ix.integer[k.Integer] = append(ix.integer[k.Integer], i)
		}
	}
	return ix
}

// numericSuffixes are the proper suffixes of a numeric key, the pairs
// normalize.NumericSuffixMatch accepts. Suffixes starting with zero are kept:
// only "0" can equal one of them, and "0" suffix-matches "10".
func numericSuffixes(key string) []string {
	out := make([]string, 0, len(key))
	for i := 1; i < len(key); i++ {
		out = append(out, key[i:])
	}
	return out
}

// candidates returns, in ascending order, every row matching k under the
// order predicate, suffix containment included.
func (ix *keyIndex) candidates(k normalize.Keys) []int {
	set := make(map[int]struct{})
	add := func(ids []int) {
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	if k.HasAlnum {
		add(ix.alnum[k.Alnum])
	}
	if k.HasNumeric {
		add(ix.numeric[k.Numeric])
		add(ix.suffixes[k.Numeric])
		for _, s := range numericSuffixes(k.Numeric) {
			add(ix.numeric[s])
		}
	}
	if k.Raw != "" {
		add(ix.raw[k.Raw])
	}
	if k.HasInteger {
		add(ix.integer[k.Integer])
	}

	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PaymentLinker joins classified lines to disbursements and resolves order dates.
type PaymentLinker struct {
	disbursements []Disbursement
	disbIndex     *keyIndex
	details       []DetailDate
	detailIndex   *keyIndex
	orderDates    map[[2]string]time.Time
}

// NewPaymentLinker indexes the disbursement and detail rows. orderDates holds
// the direct order dates of the purchase-order table by raw (order_no, line_no).
func NewPaymentLinker(disbursements []Disbursement, details []DetailDate, orderDates map[[2]string]time.Time) *PaymentLinker {
	disbKeys := make([]normalize.Keys, len(disbursements))
	for i, d := range disbursements {
		disbKeys[i] = d.Order
	}
	detailKeys := make([]normalize.Keys, len(details))
	for i, d := range details {
		detailKeys[i] = d.Order
	}
	return &PaymentLinker{
		disbursements: disbursements,
		disbIndex:     newKeyIndex(disbKeys),
		details:       details,
		detailIndex:   newKeyIndex(detailKeys),
		orderDates:    orderDates,
	}
}

// Link produces one payment record per (line, matching disbursement), in
// line order then disbursement order. A disbursement without any line key
// matches every line of its order.
func (p *PaymentLinker) Link(lines []models.LineClassification) ([]models.PaymentRecord, LinkStats) {
	var (
		payments []models.PaymentRecord
		stats    LinkStats
		used     = make([]bool, len(p.disbursements))
	)

	for _, line := range lines {
		orderKeys := normalize.KeysOf(line.OrderNo)
		lineKeys := normalize.KeysOf(line.LineNo)

		var matched []int
		for _, id := range p.disbIndex.candidates(orderKeys) {
			d := p.disbursements[id]
			if d.Line.Absent() || lineKeys.Matches(d.Line) {
				matched = append(matched, id)
			}
		}
		if len(matched) == 0 {
			continue
		}

		orderDate := p.resolveOrderDate(line, orderKeys, lineKeys, matched)
		for _, id := range matched {
			d := p.disbursements[id]
			used[id] = true
			rec := models.PaymentRecord{
				Category:    line.Category,
				Subcategory: line.Subcategory,
				Supplier:    line.Supplier,
				OrderNo:     line.OrderNo,
				LineNo:      line.LineNo,
				PaymentDate: d.PaymentDate,
				Amount:      d.Amount,
			}
			if orderDate != nil {
				od := *orderDate
				delay := normalize.DaysBetween(od, d.PaymentDate)
				rec.OrderDate = &od
				rec.DelayDays = &delay
			}
			payments = append(payments, rec)
		}
	}

	for _, u := range used {
		if !u {
			stats.DisbursementsUnmatched++
		}
	}
	stats.PaymentsLinked = len(payments)
	return payments, stats
}

// resolveOrderDate prefers the purchase-order date column, then the earliest
// matching line-details date, then the earliest matched payment date.
func (p *PaymentLinker) resolveOrderDate(line models.LineClassification, orderKeys, lineKeys normalize.Keys, matched []int) *time.Time {
	if d, ok := p.orderDates[[2]string{line.OrderNo, line.LineNo}]; ok {
		return &d
	}

	var earliest *time.Time
	consider := func(t time.Time) {
		if earliest == nil || t.Before(*earliest) {
			tt := t
			earliest = &tt
		}
	}

	for _, id := range p.detailIndex.candidates(orderKeys) {
		if d := p.details[id]; d.AnyLine || lineKeys.Matches(d.Line) {
			consider(p.details[id].Date)
		}
	}
	if earliest != nil {
		return earliest
	}

	for _, id := range matched {
		consider(p.disbursements[id].PaymentDate)
	}
	return earliest
}
