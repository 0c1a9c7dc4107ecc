// catalog-cli builds and inspects a procurement catalogue offline.
// Spreadsheets are loaded into a private in-memory store for each run.
//
// Usage:
//
//	go run ./scripts/catalog-cli build ordenes.xlsx pagos.csv --out catalog.json
//	go run ./scripts/catalog-cli profile ordenes.xlsx pagos.csv --catalog catalog.json --subcategory Papelería --supplier ACME
//	go run ./scripts/catalog-cli roles ordenes.xlsx pagos.csv
//
// LLM settings come from config.yaml and LLM_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/app"
	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/services"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "catalog-cli",
		Short:         "Offline procurement catalogue builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(createBuildCmd())
	rootCmd.AddCommand(createProfileCmd())
	rootCmd.AddCommand(createRolesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func createBuildCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build [files...]",
		Short: "Classify purchase-order lines and write the catalogue export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := openApp(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Catalog.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			d := result.Diagnostics
			logger.Info("Build complete",
				zap.Int("categories", len(result.Taxonomy)),
				zap.Int("lines", d.LinesClassified),
				zap.Int("fallback_batches", d.FallbackBatches),
				zap.Int("payments", d.PaymentsLinked))

			export, err := a.Catalog.Export(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(out, export)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file for the export JSON (- for stdout)")
	return cmd
}

func createProfileCmd() *cobra.Command {
	var catalogPath, subcategory, supplier string
	cmd := &cobra.Command{
		Use:   "profile [files...]",
		Short: "Print the payment-delay profile of one subcategory and supplier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer a.Close()

			if catalogPath != "" {
				data, err := os.ReadFile(catalogPath)
				if err != nil {
					return err
				}
				var export models.CatalogExport
				if err := json.Unmarshal(data, &export); err != nil {
					return fmt.Errorf("parse %s: %w", catalogPath, err)
				}
				if _, err := a.Catalog.Import(cmd.Context(), &export); err != nil {
					return fmt.Errorf("import: %w", err)
				}
			} else if _, err := a.Catalog.Build(cmd.Context()); err != nil {
				return fmt.Errorf("build: %w", err)
			}

			profile, err := a.Catalog.Profile(cmd.Context(), subcategory, supplier)
			if err != nil {
				return err
			}
			return writeJSON("-", profile)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "export JSON to import instead of building")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "subcategory name (required)")
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier name (required)")
	_ = cmd.MarkFlagRequired("subcategory")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}

func createRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles [files...]",
		Short: "Show which table plays each role and the resolved columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer a.Close()

			schema, err := a.Store.GetSchema(cmd.Context())
			if err != nil {
				return err
			}
			roles, err := services.AssignRoles(schema, services.DefaultAliasSet())
			if err != nil {
				return err
			}
			return writeJSON("-", map[string]any{
				"tables":           roles.Tables(),
				"resolved_columns": roles.ResolvedColumns(),
			})
		},
	}
}

// openApp wires an in-memory application and uploads every file into it.
func openApp(ctx context.Context, files []string) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load("cli")
	if err != nil {
		return nil, nil, err
	}
	cfg.Store.Path = ""

	env := "production"
	if verbose {
		env = "local"
	}
	logger, err := logging.NewLogger(env)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return nil, nil, err
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			_ = a.Close()
			return nil, nil, err
		}
		tables, err := a.Uploads.Upload(ctx, filepath.Base(f), data)
		if err != nil {
			_ = a.Close()
			return nil, nil, fmt.Errorf("upload %s: %w", f, err)
		}
		for _, t := range tables {
			logger.Info("Table loaded", zap.String("file", f), zap.String("table", t.TableName), zap.Int64("rows", t.RowCount))
		}
	}
	return a, logger, nil
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "-" && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
