package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
	"github.com/ekaya-inc/ekaya-spend/pkg/repositories"
)

// CatalogService owns the catalogue: builds, reads and portable import/export.
type CatalogService interface {
	// Build rebuilds the catalogue from the uploaded tables.
	Build(ctx context.Context) (*models.BuildResult, error)

	// Summary returns the published taxonomy and supplier indexes.
	Summary(ctx context.Context) (*models.CatalogSummary, error)

	// Profile returns the payment-delay distribution of one (subcategory, supplier) pair.
	Profile(ctx context.Context, subcategory, supplier string) (*models.Profile, error)

	// Export returns the taxonomy and every line classification.
	Export(ctx context.Context) (*models.CatalogExport, error)

	// Import replaces the catalogue with an exported one and relinks payments
	// when the role tables resolve.
	Import(ctx context.Context, payload *models.CatalogExport) (*models.ImportResult, error)
}

type catalogService struct {
	schema     datasource.SchemaProvider
	exec       datasource.QueryExecutor
	repo       repositories.CatalogRepository
	classifier *CatalogClassifier
	aliases    *AliasSet
	logger     *zap.Logger
	now        func() time.Time

	// buildMu serializes builds and imports; a second one is rejected.
	buildMu sync.Mutex
	// mu guards the catalogue tables and the fields below. Builds hold it
	// exclusively, so reads wait for an in-flight build.
	mu              sync.RWMutex
	builtAt         *time.Time
	tables          map[models.Role]string
	resolvedColumns map[models.Role]map[string]string
}

// NewCatalogService creates a catalogue service over the embedded store.
// A nil alias set uses the embedded defaults.
func NewCatalogService(
	schema datasource.SchemaProvider,
	exec datasource.QueryExecutor,
	repo repositories.CatalogRepository,
	classifier *CatalogClassifier,
	aliases *AliasSet,
	logger *zap.Logger,
) CatalogService {
	if aliases == nil {
		aliases = DefaultAliasSet()
	}
	return &catalogService{
		schema:     schema,
		exec:       exec,
		repo:       repo,
		classifier: classifier,
		aliases:    aliases,
		logger:     logger.Named("catalog"),
		now:        time.Now,
	}
}

var _ CatalogService = (*catalogService)(nil)

func (s *catalogService) Build(ctx context.Context) (*models.BuildResult, error) {
	if !s.buildMu.TryLock() {
		return nil, apperrors.ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	diag := models.BuildDiagnostics{BuildID: uuid.NewString()}
	log := s.logger.With(zap.String("build_id", diag.BuildID))
	log.Info("Catalog build started")

	roles, err := s.assignRoles(ctx)
	if err != nil {
		log.Warn("Catalog build aborted", zap.Error(err))
		return nil, err
	}
	log.Info("Roles assigned",
		zap.String("purchase_orders", roles.PurchaseOrders.TableName),
		zap.String("disbursements", roles.Disbursements.TableName),
		zap.Bool("line_details", roles.LineDetails != nil))

	poLines, orderDates, err := s.loadPurchaseOrders(ctx, roles.PurchaseOrders)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear catalogue: %w", err)
	}

	outcome, err := s.classifier.Classify(ctx, poLines)
	if err != nil {
		return nil, fmt.Errorf("classify lines: %w", err)
	}
	diag.Batches = outcome.Stats.Batches
	diag.FallbackBatches = outcome.Stats.FallbackBatches
	diag.LinesTotal = outcome.Stats.LinesTotal
	diag.LinesClassified = outcome.Stats.LinesClassified
	diag.LinesUnassigned = outcome.Stats.LinesUnassigned
	diag.AssignmentsDropped = outcome.Stats.AssignmentsDropped

	taxonomy, err := s.publishTaxonomy(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.relink(ctx, roles, orderDates)
	if err != nil {
		return nil, err
	}
	diag.PaymentsLinked = stats.PaymentsLinked
	diag.DisbursementsSkipped = stats.DisbursementsSkipped
	diag.DisbursementsUnmatched = stats.DisbursementsUnmatched

	counts, err := s.repo.SubcategoryCounts(ctx)
	if err != nil {
		return nil, err
	}

	builtAt := s.now().UTC()
	s.builtAt = &builtAt
	s.tables = roles.Tables()
	s.resolvedColumns = roles.ResolvedColumns()
	diag.DurationMs = builtAt.Sub(started).Milliseconds()

	log.Info("Catalog build finished",
		zap.Int("categories", len(taxonomy)),
		zap.Int("lines", diag.LinesClassified),
		zap.Int("payments", diag.PaymentsLinked),
		zap.Int("disbursements_skipped", diag.DisbursementsSkipped),
		zap.Int("disbursements_unmatched", diag.DisbursementsUnmatched),
		zap.Int64("duration_ms", diag.DurationMs))

	return &models.BuildResult{
		Taxonomy:             taxonomy,
		Tables:               s.tables,
		ResolvedColumns:      s.resolvedColumns,
		PerSubcategoryCounts: counts,
		BuiltAt:              builtAt,
		Diagnostics:          diag,
	}, nil
}

func (s *catalogService) Summary(ctx context.Context) (*models.CatalogSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taxonomy, err := s.repo.LoadTaxonomy(ctx)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.repo.Suppliers(ctx)
	if err != nil {
		return nil, err
	}
	bySub, err := s.repo.SubcategorySuppliers(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.SubcategoryCounts(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]string, len(taxonomy))
	for _, e := range taxonomy {
		byCategory[e.Category] = e.Subcategories
	}

	return &models.CatalogSummary{
		Taxonomy:              taxonomy,
		Suppliers:             suppliers,
		CategorySubcategories: byCategory,
		SubcategorySuppliers:  bySub,
		PerSubcategoryCounts:  counts,
		BuiltAt:               s.builtAt,
	}, nil
}

func (s *catalogService) Profile(ctx context.Context, subcategory, supplier string) (*models.Profile, error) {
	subcategory = strings.TrimSpace(subcategory)
	supplier = strings.TrimSpace(supplier)
	if subcategory == "" || supplier == "" {
		return nil, fmt.Errorf("%w: subcategory and supplier are required", apperrors.ErrMissingParameter)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	points, err := s.repo.PaymentPoints(ctx, subcategory, supplier)
	if err != nil {
		return nil, err
	}
	return BuildProfile(subcategory, supplier, points), nil
}

func (s *catalogService) Export(ctx context.Context) (*models.CatalogExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taxonomy, err := s.repo.LoadTaxonomy(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx)
	if err != nil {
		return nil, err
	}
	return &models.CatalogExport{Taxonomy: taxonomy, Lines: lines, BuiltAt: s.builtAt}, nil
}

func (s *catalogService) Import(ctx context.Context, payload *models.CatalogExport) (*models.ImportResult, error) {
	if err := validateImport(payload); err != nil {
		return nil, err
	}

	if !s.buildMu.TryLock() {
		return nil, apperrors.ErrBuildInProgress
	}
	defer s.buildMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear catalogue: %w", err)
	}
	if err := s.repo.SaveTaxonomy(ctx, payload.Taxonomy); err != nil {
		return nil, err
	}
	inserted, err := s.repo.InsertLines(ctx, payload.Lines)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{Categories: len(payload.Taxonomy), Lines: inserted}

	s.tables, s.resolvedColumns = nil, nil
	roles, err := s.assignRoles(ctx)
	if err != nil {
		result.RelinkSkipped = err.Error()
		s.logger.Info("Catalog imported without payments", zap.String("reason", result.RelinkSkipped))
	} else {
		_, orderDates, err := s.loadPurchaseOrders(ctx, roles.PurchaseOrders)
		if err != nil {
			return nil, err
		}
		stats, err := s.relink(ctx, roles, orderDates)
		if err != nil {
			return nil, err
		}
		result.Relinked = true
		result.PaymentsLinked = stats.PaymentsLinked
		s.tables = roles.Tables()
		s.resolvedColumns = roles.ResolvedColumns()
	}

	builtAt := s.now().UTC()
	if payload.BuiltAt != nil {
		builtAt = payload.BuiltAt.UTC()
	}
	s.builtAt = &builtAt

	s.logger.Info("Catalog imported",
		zap.Int("categories", result.Categories),
		zap.Int("lines", result.Lines),
		zap.Int("payments", result.PaymentsLinked))
	return result, nil
}

func validateImport(payload *models.CatalogExport) error {
	if payload == nil || payload.Taxonomy == nil {
		return fmt.Errorf("%w: taxonomy is required", apperrors.ErrInvalidPayload)
	}
	for i, e := range payload.Taxonomy {
		if strings.TrimSpace(e.Category) == "" {
			return fmt.Errorf("%w: taxonomy entry %d has no category", apperrors.ErrInvalidPayload, i)
		}
		// The taxonomy is stored as (category, subcategory) pairs.
		if len(e.Subcategories) == 0 {
			return fmt.Errorf("%w: taxonomy category %q has no subcategories", apperrors.ErrInvalidPayload, e.Category)
		}
		for _, sub := range e.Subcategories {
			if strings.TrimSpace(sub) == "" {
				return fmt.Errorf("%w: taxonomy category %q has a blank subcategory", apperrors.ErrInvalidPayload, e.Category)
			}
		}
	}
	for i, l := range payload.Lines {
		if l.OrderNo == "" || l.LineNo == "" || l.Category == "" || l.Subcategory == "" {
			return fmt.Errorf("%w: line %d is incomplete", apperrors.ErrInvalidPayload, i)
		}
	}
	return nil
}

func (s *catalogService) assignRoles(ctx context.Context) (*RoleAssignments, error) {
	schema, err := s.schema.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return AssignRoles(schema, s.aliases)
}

// publishTaxonomy recomputes the taxonomy from the pairs the line map uses.
func (s *catalogService) publishTaxonomy(ctx context.Context) (models.Taxonomy, error) {
	pairs, err := s.repo.UsedPairs(ctx)
	if err != nil {
		return nil, err
	}
	taxonomy := models.TaxonomyFromPairs(pairs)
	if err := s.repo.SaveTaxonomy(ctx, taxonomy); err != nil {
		return nil, err
	}
	return taxonomy, nil
}

// relink replaces the payments from the current line map.
func (s *catalogService) relink(ctx context.Context, roles *RoleAssignments, orderDates map[[2]string]time.Time) (LinkStats, error) {
	disbRows, err := s.loadRows(ctx, roles.Disbursements)
	if err != nil {
		return LinkStats{}, err
	}
	disbursements, skipped := ParseDisbursements(disbRows, roles.Disbursements.ResolvedColumns)

	var details []DetailDate
	if roles.LineDetails != nil {
		detailRows, err := s.loadRows(ctx, roles.LineDetails)
		if err != nil {
			return LinkStats{}, err
		}
		details = ParseDetailDates(detailRows, roles.LineDetails.ResolvedColumns)
	}

	lines, err := s.repo.ListLines(ctx)
	if err != nil {
		return LinkStats{}, err
	}

	payments, stats := NewPaymentLinker(disbursements, details, orderDates).Link(lines)
	stats.DisbursementsSkipped = skipped

	if err := s.repo.ClearPayments(ctx); err != nil {
		return LinkStats{}, err
	}
	if err := s.repo.InsertPayments(ctx, payments); err != nil {
		return LinkStats{}, err
	}
	return stats, nil
}

// loadPurchaseOrders reads the lines to classify and the direct order dates.
// Rows without an order or line identifier are skipped.
func (s *catalogService) loadPurchaseOrders(ctx context.Context, ra *models.RoleAssignment) ([]CatalogLine, map[[2]string]time.Time, error) {
	rows, err := s.loadRows(ctx, ra)
	if err != nil {
		return nil, nil, err
	}

	cell := func(row map[string]any, field string) any {
		col, ok := ra.Column(field)
		if !ok {
			return nil
		}
		return row[col]
	}

	lines := make([]CatalogLine, 0, len(rows))
	orderDates := make(map[[2]string]time.Time)
	skipped := 0
	for _, row := range rows {
		l := CatalogLine{
			OrderNo:          normalize.RawString(cell(row, models.FieldOrderNo)),
			LineNo:           normalize.RawString(cell(row, models.FieldLineNo)),
			LineType:         normalize.RawString(cell(row, models.FieldLineType)),
			OrderDescription: normalize.RawString(cell(row, models.FieldOrderDescription)),
			LineDescription:  normalize.RawString(cell(row, models.FieldLineDescription)),
			Supplier:         normalize.RawString(cell(row, models.FieldSupplier)),
		}
		if l.OrderNo == "" || l.LineNo == "" {
			skipped++
			continue
		}
		lines = append(lines, l)

		key := [2]string{l.OrderNo, l.LineNo}
		if _, seen := orderDates[key]; !seen {
			if d, ok := normalize.ParseDate(cell(row, models.FieldOrderDate)); ok {
				orderDates[key] = d
			}
		}
	}
	if skipped > 0 {
		s.logger.Info("Purchase-order rows without identifiers skipped", zap.Int("rows", skipped))
	}
	return lines, orderDates, nil
}

// loadRows selects the resolved columns of a role table in upload order.
func (s *catalogService) loadRows(ctx context.Context, ra *models.RoleAssignment) ([]map[string]any, error) {
	cols := make([]string, 0, len(ra.ResolvedColumns))
	seen := make(map[string]bool)
	for _, c := range ra.ResolvedColumns {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.exec.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(quoted, ", "), s.exec.QuoteIdentifier(ra.TableName))

	result, err := s.exec.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s table %s: %w", ra.Role, ra.TableName, err)
	}
	return result.Rows, nil
}
