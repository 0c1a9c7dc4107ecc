// test-model-outputs checks that a model's replies to the catalogue
// classification prompt parse. It sends two sample batches in sequence, the
// second carrying the taxonomy proposed by the first, and reports whether each
// reply is valid, partial or unparsable.
//
// Usage: go run ./scripts/test-model-outputs [-model name] [-endpoint url]
//
// Defaults come from config.yaml and LLM_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/llm"
	"github.com/ekaya-inc/ekaya-spend/pkg/prompts"
	"github.com/ekaya-inc/ekaya-spend/pkg/services"
)

var sampleBatches = [][]prompts.LineContext{
	{
		{OrderNo: "PO-6903033", LineNo: "1", LineType: "Bien", OrderDescription: "Insumos de oficina", LineDescription: "Resma papel A4 75g", Supplier: "Librería Central"},
		{OrderNo: "PO-6903033", LineNo: "2", LineType: "Bien", OrderDescription: "Insumos de oficina", LineDescription: "Tóner HP 85A", Supplier: "Librería Central"},
		{OrderNo: "PO-6903040", LineNo: "1", LineType: "Servicio", OrderDescription: "Mantenimiento edificio", LineDescription: "Limpieza mensual oficinas", Supplier: "Servilimp SA"},
	},
	{
		{OrderNo: "PO-6903101", LineNo: "1", LineType: "Bien", LineDescription: "Cuadernos universitarios", Supplier: "Librería Central"},
		{OrderNo: "PO-6903102", LineNo: "1", LineType: "Servicio", LineDescription: "Licencias Microsoft 365 anuales", Supplier: "Softline"},
	},
}

// TestResult is the outcome of one batch.
type TestResult struct {
	Kind         services.ResponseKind
	Assignments  int
	Dropped      int
	Issues       []string
	Error        string
	Truncated    bool
	DurationMs   int64
	TokensPerSec float64
}

func main() {
	timeout := flag.Duration("timeout", 120*time.Second, "Timeout for each model call")
	model := flag.String("model", "", "Model name (overrides config)")
	endpoint := flag.String("endpoint", "", "Endpoint URL (overrides config)")
	flag.Parse()

	cfg, err := config.Load("test-model-outputs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *endpoint != "" {
		cfg.LLM.BaseURL = *endpoint
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer logger.Sync()

	client, err := llm.NewClientFromConfig(cfg.LLM, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Classification response test: %s @ %s\n", client.GetModel(), client.GetEndpoint())
	fmt.Println(strings.Repeat("=", 80))

	var taxonomy []prompts.CategoryContext
	allPassed := true
	for i, batch := range sampleBatches {
		fmt.Printf("\n--- Batch %d (%d lines, %d known categories) ---\n", i+1, len(batch), len(taxonomy))

		result, resp := testBatch(context.Background(), client, taxonomy, batch, cfg.LLM.Temperature, *timeout)
		printResult(result)
		if result.Kind != services.ResponseValid {
			allPassed = false
		}
		if resp != nil {
			taxonomy = mergeTaxonomy(taxonomy, resp)
		}
	}

	if allPassed {
		fmt.Println("\nAll batches parsed cleanly.")
		os.Exit(0)
	}
	fmt.Println("\nSome batches were partial or unparsable.")
	os.Exit(1)
}

func testBatch(
	ctx context.Context,
	client llm.LLMClient,
	taxonomy []prompts.CategoryContext,
	batch []prompts.LineContext,
	temperature float64,
	timeout time.Duration,
) (TestResult, *services.ClassificationResponse) {
	result := TestResult{Kind: services.ResponseUnparsable}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	prompt := prompts.BuildCatalogClassificationPrompt(taxonomy, batch)
	resp, err := client.GenerateResponse(ctx, prompt, prompts.BuildCatalogClassificationSystemMessage(), temperature)
	if err != nil {
		result.Error = fmt.Sprintf("API call failed: %v", err)
		return result, nil
	}
	result.DurationMs = time.Since(start).Milliseconds()
	result.Truncated = resp.Truncated
	if result.DurationMs > 0 && resp.CompletionTokens > 0 {
		result.TokensPerSec = float64(resp.CompletionTokens) / (float64(result.DurationMs) / 1000.0)
	}

	fmt.Println("Raw response (first 800 chars):")
	fmt.Println(truncateString(resp.Content, 800))

	inBatch := make(map[[2]string]bool, len(batch))
	for _, l := range batch {
		inBatch[[2]string{l.OrderNo, l.LineNo}] = true
	}
	parsed := services.ParseClassificationResponse(resp.Content, func(orderNo, lineNo string) bool {
		return inBatch[[2]string{orderNo, lineNo}]
	})

	result.Kind = parsed.Kind
	result.Assignments = len(parsed.Assignments)
	result.Dropped = parsed.Dropped
	result.Issues = parsed.Issues
	if parsed.Err != nil {
		result.Error = parsed.Err.Error()
	}
	return result, &parsed
}

// mergeTaxonomy folds a reply's assignments and proposals into the taxonomy sent with the next batch.
func mergeTaxonomy(taxonomy []prompts.CategoryContext, resp *services.ClassificationResponse) []prompts.CategoryContext {
	add := func(category, sub string) {
		for i := range taxonomy {
			if taxonomy[i].Category == category {
				for _, s := range taxonomy[i].Subcategories {
					if s == sub {
						return
					}
				}
				taxonomy[i].Subcategories = append(taxonomy[i].Subcategories, sub)
				return
			}
		}
		taxonomy = append(taxonomy, prompts.CategoryContext{Category: category, Subcategories: []string{sub}})
	}
	for _, nc := range resp.NewCategories {
		for _, s := range nc.Subcategories {
			add(nc.Category, s)
		}
	}
	for _, a := range resp.Assignments {
		add(a.Category, a.Subcategory)
	}
	return taxonomy
}

func printResult(result TestResult) {
	status := "✓ " + string(result.Kind)
	if result.Kind != services.ResponseValid {
		status = "✗ " + string(result.Kind)
	}
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Assignments: %d, dropped: %d\n", result.Assignments, result.Dropped)
	for _, issue := range result.Issues {
		fmt.Printf("  issue: %s\n", issue)
	}
	if result.Truncated {
		fmt.Println("Warning: reply stopped at the token limit; lower catalog.batch_size or raise llm.max_tokens")
	}
	if result.Error != "" {
		fmt.Printf("Error: %s\n", result.Error)
	}
	fmt.Printf("Duration: %dms, Throughput: %.1f tok/s\n", result.DurationMs, result.TokensPerSec)
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
