package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the semantic purpose of an uploaded table.
type Role string

const (
	RolePurchaseOrders Role = "purchase_orders"
	RoleDisbursements  Role = "disbursements"
	RoleLineDetails    Role = "line_details"
)

// Logical fields resolved per role.
const (
	FieldOrderNo          = "order_no"
	FieldLineNo           = "line_no"
	FieldSupplier         = "supplier"
	FieldOrderDate        = "order_date"
	FieldLineType         = "line_type"
	FieldOrderDescription = "order_description"
	FieldLineDescription  = "line_description"
	FieldAmount           = "amount"
	FieldPaymentDate      = "payment_date"
	FieldDetailDate       = "date"
	FieldDescription      = "description"
)

// DescriptiveFields are the purchase-order fields that give the classifier signal.
var DescriptiveFields = []string{FieldLineType, FieldOrderDescription, FieldLineDescription}

// RoleAssignment binds a table to a role for one build.
type RoleAssignment struct {
	Role            Role              `json:"role"`
	TableName       string            `json:"table_name"`
	ResolvedColumns map[string]string `json:"resolved_columns"` // logical field -> physical column
	Score           int               `json:"score"`
}

// Column returns the physical column resolved for a logical field.
func (a *RoleAssignment) Column(field string) (string, bool) {
	if a == nil {
		return "", false
	}
	col, ok := a.ResolvedColumns[field]
	return col, ok && col != ""
}

// TaxonomyEntry is one category with its subcategories, in first-seen order.
type TaxonomyEntry struct {
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories"`
}

// Taxonomy is the ordered category hierarchy.
type Taxonomy []TaxonomyEntry

// CategoryPair is a (category, subcategory) pair.
type CategoryPair struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Pairs flattens the taxonomy in order.
func (t Taxonomy) Pairs() []CategoryPair {
	var pairs []CategoryPair
	for _, e := range t {
		for _, s := range e.Subcategories {
			pairs = append(pairs, CategoryPair{Category: e.Category, Subcategory: s})
		}
	}
	return pairs
}

// TaxonomyFromPairs groups pairs by category, keeping first-seen order.
func TaxonomyFromPairs(pairs []CategoryPair) Taxonomy {
	tax := Taxonomy{}
	index := make(map[string]int)
	for _, p := range pairs {
		i, ok := index[p.Category]
		if !ok {
			i = len(tax)
			index[p.Category] = i
			tax = append(tax, TaxonomyEntry{Category: p.Category, Subcategories: []string{}})
		}
		dup := false
		for _, s := range tax[i].Subcategories {
			if s == p.Subcategory {
				dup = true
				break
			}
		}
		if !dup {
			tax[i].Subcategories = append(tax[i].Subcategories, p.Subcategory)
		}
	}
	return tax
}

// LineClassification assigns one purchase-order line to a category pair.
// Keyed by the raw (OrderNo, LineNo).
type LineClassification struct {
	OrderNo     string `json:"order_no"`
	LineNo      string `json:"line_no"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Supplier    string `json:"supplier"`
}

// PaymentRecord links a classified line to one disbursement.
type PaymentRecord struct {
	Category    string
	Subcategory string
	Supplier    string
	OrderNo     string
	LineNo      string
	OrderDate   *time.Time
	PaymentDate time.Time
	Amount      decimal.Decimal
	DelayDays   *int // nil when no order date could be resolved
}

// SubcategoryCount is the number of classified lines and linked payments per pair.
type SubcategoryCount struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Lines       int    `json:"lines"`
	Payments    int    `json:"payments"`
}

// BuildDiagnostics are the counters of one build.
type BuildDiagnostics struct {
	BuildID                string `json:"build_id"`
	Batches                int    `json:"batches"`
	FallbackBatches        int    `json:"fallback_batches"`
	LinesTotal             int    `json:"lines_total"`
	LinesClassified        int    `json:"lines_classified"`
	LinesUnassigned        int    `json:"lines_unassigned"`
	AssignmentsDropped     int    `json:"assignments_dropped"`
	PaymentsLinked         int    `json:"payments_linked"`
	DisbursementsSkipped   int    `json:"disbursements_skipped"`
	DisbursementsUnmatched int    `json:"disbursements_unmatched"`
	DurationMs             int64  `json:"duration_ms"`
}

// BuildResult is returned by a successful catalogue build.
type BuildResult struct {
	Taxonomy             Taxonomy                   `json:"taxonomy"`
	Tables               map[Role]string            `json:"tables"`
	ResolvedColumns      map[Role]map[string]string `json:"resolved_columns"`
	PerSubcategoryCounts []SubcategoryCount         `json:"per_subcategory_counts"`
	BuiltAt              time.Time                  `json:"built_at"`
	Diagnostics          BuildDiagnostics           `json:"diagnostics"`
}

// CatalogSummary is the read model for browsing the catalogue.
type CatalogSummary struct {
	Taxonomy              Taxonomy            `json:"taxonomy"`
	Suppliers             []string            `json:"suppliers"`
	CategorySubcategories map[string][]string `json:"category_subcategories"`
	SubcategorySuppliers  map[string][]string `json:"subcategory_suppliers"`
	PerSubcategoryCounts  []SubcategoryCount  `json:"per_subcategory_counts"`
	BuiltAt               *time.Time          `json:"built_at,omitempty"`
}

// CatalogExport is the portable form of a catalogue.
type CatalogExport struct {
	Taxonomy Taxonomy             `json:"taxonomy"`
	Lines    []LineClassification `json:"lines"`
	BuiltAt  *time.Time           `json:"built_at"`
}

// ImportResult reports what an import restored.
type ImportResult struct {
	Categories     int    `json:"categories"`
	Lines          int    `json:"lines"`
	PaymentsLinked int    `json:"payments_linked"`
	Relinked       bool   `json:"relinked"`
	RelinkSkipped  string `json:"relink_skipped,omitempty"`
}
