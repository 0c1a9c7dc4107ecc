package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/llm"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/prompts"
	"github.com/ekaya-inc/ekaya-spend/pkg/repositories"
	"github.com/ekaya-inc/ekaya-spend/pkg/retry"
)

// errNoLLMClient is the batch failure when no LLM is configured.
var errNoLLMClient = errors.New("no LLM client configured")

// CatalogLine is one purchase-order line to classify.
type CatalogLine struct {
	OrderNo          string
	LineNo           string
	LineType         string
	OrderDescription string
	LineDescription  string
	Supplier         string
}

// ClassifierConfig tunes the classification loop.
type ClassifierConfig struct {
	BatchSize           int
	Temperature         float64
	Timeout             time.Duration
	Retry               *retry.Config
	FallbackCategory    string
	FallbackSubcategory string
}

// ClassifierConfigFrom derives the loop settings from the application config.
func ClassifierConfigFrom(cfg *config.Config) ClassifierConfig {
	return ClassifierConfig{
		BatchSize:           cfg.Catalog.BatchSize,
		Temperature:         cfg.LLM.Temperature,
		Timeout:             time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		Retry:               retry.WithMaxRetries(cfg.LLM.MaxRetries),
		FallbackCategory:    cfg.Catalog.FallbackCategory,
		FallbackSubcategory: cfg.Catalog.FallbackSubcategory,
	}
}

func (c ClassifierConfig) withDefaults() ClassifierConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 120
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	if c.Retry == nil {
		c.Retry = retry.DefaultConfig()
	}
	if c.FallbackCategory == "" {
		c.FallbackCategory = "Other"
	}
	if c.FallbackSubcategory == "" {
		c.FallbackSubcategory = "Uncategorized"
	}
	return c
}

type classificationState string

const (
	stateEmptyTaxonomy classificationState = "empty_taxonomy"
	stateAccumulating  classificationState = "accumulating"
	stateFinalized     classificationState = "finalized"
)

// ClassificationStats are the counters of one classification run.
type ClassificationStats struct {
	Batches            int
	FallbackBatches    int
	LinesTotal         int
	LinesClassified    int
	LinesUnassigned    int
	AssignmentsDropped int
}

// ClassificationOutcome is the result of a completed run.
type ClassificationOutcome struct {
	// Canonical is the accumulated taxonomy, including proposals no line used.
	Canonical models.Taxonomy
	Stats     ClassificationStats
}

// CatalogClassifier runs the batch-wise classification loop. Batches run
// strictly in sequence because each prompt carries the taxonomy produced by
// the batches before it.
type CatalogClassifier struct {
	client  llm.LLMClient
	breaker *llm.CircuitBreaker
	repo    repositories.CatalogRepository
	cfg     ClassifierConfig
	logger  *zap.Logger
}

// NewCatalogClassifier creates a classifier. A nil client sends every batch
// to the fallback category; a nil breaker never opens.
func NewCatalogClassifier(
	client llm.LLMClient,
	breaker *llm.CircuitBreaker,
	repo repositories.CatalogRepository,
	cfg ClassifierConfig,
	logger *zap.Logger,
) *CatalogClassifier {
	return &CatalogClassifier{
		client:  client,
		breaker: breaker,
		repo:    repo,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("catalog-classifier"),
	}
}

// Classify classifies lines and persists one line-map row per classified line.
// Lines are deduplicated by raw (order_no, line_no), first occurrence wins.
// Collaborator failures degrade a batch to the fallback category; only
// persistence errors and context cancellation abort the run.
func (c *CatalogClassifier) Classify(ctx context.Context, lines []CatalogLine) (*ClassificationOutcome, error) {
	lines = dedupeLines(lines)
	taxonomy := newCanonicalTaxonomy()
	stats := ClassificationStats{LinesTotal: len(lines)}
	state := stateEmptyTaxonomy

	for start := 0; start < len(lines); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(lines))
		batch := lines[start:end]
		stats.Batches++

		records, fellBack, dropped, err := c.classifyBatch(ctx, taxonomy, batch)
		if err != nil {
			return nil, err
		}
		if fellBack {
			stats.FallbackBatches++
		}
		stats.AssignmentsDropped += dropped

		inserted, err := c.repo.InsertLines(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("persist batch %d: %w", stats.Batches, err)
		}
		stats.LinesClassified += inserted
		stats.LinesUnassigned += len(batch) - len(records)

		if state == stateEmptyTaxonomy && !taxonomy.empty() {
			state = stateAccumulating
			c.logger.Debug("Taxonomy accumulating", zap.Int("batch", stats.Batches))
		}
	}

	state = stateFinalized
	c.logger.Info("Classification finished",
		zap.String("state", string(state)),
		zap.Int("lines", stats.LinesTotal),
		zap.Int("batches", stats.Batches),
		zap.Int("fallback_batches", stats.FallbackBatches),
		zap.Int("classified", stats.LinesClassified),
		zap.Int("unassigned", stats.LinesUnassigned),
		zap.Int("assignments_dropped", stats.AssignmentsDropped))

	return &ClassificationOutcome{Canonical: taxonomy.snapshot(), Stats: stats}, nil
}

// classifyBatch returns the records to persist for one batch.
func (c *CatalogClassifier) classifyBatch(
	ctx context.Context,
	taxonomy *canonicalTaxonomy,
	batch []CatalogLine,
) (records []models.LineClassification, fellBack bool, dropped int, err error) {
	byKey := make(map[[2]string]CatalogLine, len(batch))
	for _, l := range batch {
		byKey[[2]string{l.OrderNo, l.LineNo}] = l
	}

	prompt := prompts.BuildCatalogClassificationPrompt(categoryContexts(taxonomy.snapshot()), lineContexts(batch))
	content, callErr := c.complete(ctx, prompt)
	if callErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, 0, fmt.Errorf("classification cancelled: %w", ctxErr)
		}
		c.logger.Warn("LLM call failed, batch falls back",
			zap.Int("lines", len(batch)),
			zap.String("error", logging.SanitizeError(callErr)))
		return c.fallback(batch), true, 0, nil
	}

	resp := ParseClassificationResponse(content, func(orderNo, lineNo string) bool {
		_, ok := byKey[[2]string{orderNo, lineNo}]
		return ok
	})
	if resp.Kind == ResponseUnparsable {
		c.logger.Warn("Unparsable classification response, batch falls back",
			zap.Int("lines", len(batch)),
			zap.Int("dropped", resp.Dropped),
			zap.String("error", logging.SanitizeError(resp.Err)),
			zap.String("response", logging.TruncateString(content, 200)))
		return c.fallback(batch), true, resp.Dropped, nil
	}
	if resp.Kind == ResponsePartial {
		c.logger.Debug("Partial classification response",
			zap.Int("assignments", len(resp.Assignments)),
			zap.Strings("issues", resp.Issues))
	}

	for _, nc := range resp.NewCategories {
		for _, sub := range nc.Subcategories {
			taxonomy.resolve(models.CategoryPair{Category: nc.Category, Subcategory: sub})
		}
	}
	for _, a := range resp.Aliases {
		taxonomy.addAlias(a.From, a.To)
	}

	records = make([]models.LineClassification, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		pair := taxonomy.resolve(models.CategoryPair{Category: a.Category, Subcategory: a.Subcategory})
		line := byKey[[2]string{a.OrderNo, a.LineNo}]
		records = append(records, models.LineClassification{
			OrderNo:     line.OrderNo,
			LineNo:      line.LineNo,
			Category:    pair.Category,
			Subcategory: pair.Subcategory,
			Supplier:    line.Supplier,
		})
	}
	return records, false, resp.Dropped, nil
}

// complete sends one prompt through the breaker, timeout and retry budget.
func (c *CatalogClassifier) complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", errNoLLMClient
	}
	if c.breaker != nil {
		if _, err := c.breaker.Allow(); err != nil {
			return "", err
		}
	}

	var content string
	err := retry.DoIfRetryable(ctx, c.cfg.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		result, err := c.client.GenerateResponse(callCtx, prompt, prompts.BuildCatalogClassificationSystemMessage(), c.cfg.Temperature)
		if err != nil {
			return err
		}
		content = result.Content
		return nil
	})

	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return content, err
}

func (c *CatalogClassifier) fallback(batch []CatalogLine) []models.LineClassification {
	records := make([]models.LineClassification, len(batch))
	for i, l := range batch {
		records[i] = models.LineClassification{
			OrderNo:     l.OrderNo,
			LineNo:      l.LineNo,
			Category:    c.cfg.FallbackCategory,
			Subcategory: c.cfg.FallbackSubcategory,
			Supplier:    l.Supplier,
		}
	}
	return records
}

func dedupeLines(lines []CatalogLine) []CatalogLine {
	seen := make(map[[2]string]bool, len(lines))
	out := make([]CatalogLine, 0, len(lines))
	for _, l := range lines {
		key := [2]string{l.OrderNo, l.LineNo}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

func categoryContexts(tax models.Taxonomy) []prompts.CategoryContext {
	out := make([]prompts.CategoryContext, len(tax))
	for i, e := range tax {
		out[i] = prompts.CategoryContext{Category: e.Category, Subcategories: e.Subcategories}
	}
	return out
}

func lineContexts(batch []CatalogLine) []prompts.LineContext {
	out := make([]prompts.LineContext, len(batch))
	for i, l := range batch {
		out[i] = prompts.LineContext{
			OrderNo:          l.OrderNo,
			LineNo:           l.LineNo,
			LineType:         l.LineType,
			OrderDescription: l.OrderDescription,
			LineDescription:  l.LineDescription,
			Supplier:         l.Supplier,
		}
	}
	return out
}
