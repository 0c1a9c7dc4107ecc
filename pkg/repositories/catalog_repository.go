package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

// CatalogRepository provides data access for the catalogue working tables:
// the line map, the published taxonomy and the linked payments.
type CatalogRepository interface {
	// Clear deletes every line, taxonomy entry and payment.
	Clear(ctx context.Context) error
	ClearPayments(ctx context.Context) error

	InsertLines(ctx context.Context, lines []models.LineClassification) (int, error)
	ListLines(ctx context.Context) ([]models.LineClassification, error)
	UsedPairs(ctx context.Context) ([]models.CategoryPair, error)

	SaveTaxonomy(ctx context.Context, taxonomy models.Taxonomy) error
	LoadTaxonomy(ctx context.Context) (models.Taxonomy, error)

	InsertPayments(ctx context.Context, payments []models.PaymentRecord) error
	ListPayments(ctx context.Context) ([]models.PaymentRecord, error)
	PaymentPoints(ctx context.Context, subcategory, supplier string) ([]models.PaymentPoint, error)

	SubcategoryCounts(ctx context.Context) ([]models.SubcategoryCount, error)
	Suppliers(ctx context.Context) ([]string, error)
	SubcategorySuppliers(ctx context.Context) (map[string][]string, error)
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

var _ CatalogRepository = (*catalogRepository)(nil)

// ============================================================================
// Clearing
// ============================================================================

func (r *catalogRepository) Clear(ctx context.Context) error {
	for _, table := range []string{"catalog_payments", "catalog_line_map", "catalog_taxonomy"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (r *catalogRepository) ClearPayments(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM catalog_payments`); err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	return nil
}

// ============================================================================
// Line map
// ============================================================================

// InsertLines inserts lines in one transaction and returns how many were new.
// A line whose (order_no, line_no) is already mapped keeps its first classification.
func (r *catalogRepository) InsertLines(ctx context.Context, lines []models.LineClassification) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin line insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_line_map (order_no, line_no, category, subcategory, supplier)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (order_no, line_no) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare line insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range lines {
		res, err := stmt.ExecContext(ctx, l.OrderNo, l.LineNo, l.Category, l.Subcategory, l.Supplier)
		if err != nil {
			return 0, fmt.Errorf("failed to insert line %s/%s: %w", l.OrderNo, l.LineNo, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit line insert: %w", err)
	}
	return inserted, nil
}

// ListLines returns the line map in insertion order.
func (r *catalogRepository) ListLines(ctx context.Context) ([]models.LineClassification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_no, line_no, category, subcategory, supplier
		FROM catalog_line_map
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	defer rows.Close()

	lines := make([]models.LineClassification, 0)
	for rows.Next() {
		var l models.LineClassification
		if err := rows.Scan(&l.OrderNo, &l.LineNo, &l.Category, &l.Subcategory, &l.Supplier); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UsedPairs returns the distinct (category, subcategory) pairs of the line map
// in the order they were first used.
func (r *catalogRepository) UsedPairs(ctx context.Context) ([]models.CategoryPair, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, subcategory
		FROM catalog_line_map
		GROUP BY category, subcategory
		ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list used pairs: %w", err)
	}
	defer rows.Close()

	var pairs []models.CategoryPair
	for rows.Next() {
		var p models.CategoryPair
		if err := rows.Scan(&p.Category, &p.Subcategory); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ============================================================================
// Taxonomy
// ============================================================================

// SaveTaxonomy replaces the published taxonomy.
func (r *catalogRepository) SaveTaxonomy(ctx context.Context, taxonomy models.Taxonomy) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin taxonomy save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_taxonomy`); err != nil {
		return fmt.Errorf("failed to clear taxonomy: %w", err)
	}

	for i, p := range taxonomy.Pairs() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_taxonomy (position, category, subcategory)
			VALUES (?, ?, ?)
			ON CONFLICT (category, subcategory) DO NOTHING`,
			i, p.Category, p.Subcategory); err != nil {
			return fmt.Errorf("failed to insert taxonomy pair %s/%s: %w", p.Category, p.Subcategory, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit taxonomy: %w", err)
	}
	return nil
}

func (r *catalogRepository) LoadTaxonomy(ctx context.Context) (models.Taxonomy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, subcategory FROM catalog_taxonomy ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	defer rows.Close()

	var pairs []models.CategoryPair
	for rows.Next() {
		var p models.CategoryPair
		if err := rows.Scan(&p.Category, &p.Subcategory); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.TaxonomyFromPairs(pairs), nil
}

// ============================================================================
// Payments
// ============================================================================

func (r *catalogRepository) InsertPayments(ctx context.Context, payments []models.PaymentRecord) error {
	if len(payments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin payment insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_payments (
			category, subcategory, supplier, order_no, line_no,
			order_date, payment_date, amount, delay_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare payment insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range payments {
		if _, err := stmt.ExecContext(ctx,
			p.Category, p.Subcategory, p.Supplier, p.OrderNo, p.LineNo,
			nullDate(p.OrderDate),
			normalize.FormatDate(p.PaymentDate),
			p.Amount.String(),
			nullInt(p.DelayDays),
		); err != nil {
			return fmt.Errorf("failed to insert payment for %s/%s: %w", p.OrderNo, p.LineNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payments: %w", err)
	}
	return nil
}

// ListPayments returns every payment in insertion order.
func (r *catalogRepository) ListPayments(ctx context.Context) ([]models.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, subcategory, supplier, order_no, line_no,
		       order_date, payment_date, amount, delay_days
		FROM catalog_payments
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]models.PaymentRecord, 0)
	for rows.Next() {
		var (
			p           models.PaymentRecord
			orderDate   sql.NullString
			paymentDate string
			amount      string
			delay       sql.NullInt64
		)
		if err := rows.Scan(&p.Category, &p.Subcategory, &p.Supplier, &p.OrderNo, &p.LineNo,
			&orderDate, &paymentDate, &amount, &delay); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.PaymentDate, err = time.Parse(normalize.DateLayout, paymentDate); err != nil {
			return nil, fmt.Errorf("invalid stored payment date %q: %w", paymentDate, err)
		}
		if orderDate.Valid {
			d, err := time.Parse(normalize.DateLayout, orderDate.String)
			if err != nil {
				return nil, fmt.Errorf("invalid stored order date %q: %w", orderDate.String, err)
			}
			p.OrderDate = &d
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		p.DelayDays = intPtr(delay)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PaymentPoints returns the payments of one (subcategory, supplier) pair
// ordered by payment date.
func (r *catalogRepository) PaymentPoints(ctx context.Context, subcategory, supplier string) ([]models.PaymentPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT delay_days, amount, payment_date, order_no, line_no
		FROM catalog_payments
		WHERE subcategory = ? AND supplier = ?
		ORDER BY payment_date, id`, subcategory, supplier)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment points: %w", err)
	}
	defer rows.Close()

	points := make([]models.PaymentPoint, 0)
	for rows.Next() {
		var (
			p      models.PaymentPoint
			delay  sql.NullInt64
			amount string
		)
		if err := rows.Scan(&delay, &amount, &p.PaymentDate, &p.OrderNo, &p.LineNo); err != nil {
			return nil, fmt.Errorf("failed to scan payment point: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		p.DelayDays = intPtr(delay)
		points = append(points, p)
	}
	return points, rows.Err()
}

// ============================================================================
// Summary reads
// ============================================================================

// SubcategoryCounts returns line and payment counts per used pair, in first-use order.
func (r *catalogRepository) SubcategoryCounts(ctx context.Context) ([]models.SubcategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.category, l.subcategory, COUNT(*) AS lines,
		       (SELECT COUNT(*) FROM catalog_payments p
		        WHERE p.category = l.category AND p.subcategory = l.subcategory) AS payments
		FROM catalog_line_map l
		GROUP BY l.category, l.subcategory
		ORDER BY MIN(l.rowid)`)
	if err != nil {
		return nil, fmt.Errorf("failed to count subcategories: %w", err)
	}
	defer rows.Close()

	counts := make([]models.SubcategoryCount, 0)
	for rows.Next() {
		var c models.SubcategoryCount
		if err := rows.Scan(&c.Category, &c.Subcategory, &c.Lines, &c.Payments); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Suppliers returns the distinct non-empty suppliers of the line map, sorted.
func (r *catalogRepository) Suppliers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT supplier FROM catalog_line_map
		WHERE supplier <> ''
		ORDER BY supplier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// SubcategorySuppliers maps each subcategory to its sorted non-empty suppliers.
func (r *catalogRepository) SubcategorySuppliers(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT subcategory, supplier FROM catalog_line_map
		WHERE supplier <> ''
		ORDER BY subcategory, supplier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategory suppliers: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var sub, supplier string
		if err := rows.Scan(&sub, &supplier); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory supplier: %w", err)
		}
		result[sub] = append(result[sub], supplier)
	}
	return result, rows.Err()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return normalize.FormatDate(*t)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
