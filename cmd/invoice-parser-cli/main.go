// Package main provides the invoice parser CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/config"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/pipeline"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "invoice-parser-cli",
	Short: "Invoice parser CLI for PDF table extraction and validation",
	Long: `Invoice parser CLI extracts line items, delivery notes and header
metadata from PDF invoices.

Use this tool to:
- Parse a single invoice and inspect the extracted data
- Batch-process a directory of invoices
- Debug the marker-bounded coordinate extraction

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := cfg.Observability.LogLevel
		if verbose {
			logLevel = "debug"
		} else if !outputJSON {
			// Keep human output clean; logs go to stderr only when asked.
			logLevel = "error"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      "console",
			ServiceName: "invoice-parser-cli",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCoordinateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newParseCmd creates the parse subcommand.
func newParseCmd() *cobra.Command {
	var (
		flavor       string
		maxPages     int
		noValidation bool
		noChecksums  bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "parse <invoice.pdf>",
		Short: "Parse a single invoice",
		Long: `Parse extracts the goods table, delivery notes and header metadata
from one invoice. PDF and layout JSON documents are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			snapshot := snapshotWithOverrides(flavor, maxPages, noValidation, noChecksums)

			start := time.Now()
			result, err := parseOne(ctx, args[0], snapshot)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			if output != "" {
				if err := writeResultFile(output, result); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printResult(NewUI(outputJSON, noColor), args[0], result, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&flavor, "flavor", "", "extraction flavor (structured, flexible, coordinate, structured-then-flexible)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "limit the number of pages processed (0 = all)")
	cmd.Flags().BoolVar(&noValidation, "no-validation", false, "skip OCR validation")
	cmd.Flags().BoolVar(&noChecksums, "no-checksums", false, "skip grand total checksum validation")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the full result JSON to a file")

	return cmd
}

// newBatchCmd creates the batch subcommand.
func newBatchCmd() *cobra.Command {
	var (
		pattern   string
		outputDir string
		flavor    string
		maxPages  int
	)

	cmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Parse every invoice in a directory",
		Long: `Batch walks a directory, parses every matching file and reports a
summary. Use --output-dir to keep the per-invoice result JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			matches, err := filepath.Glob(filepath.Join(args[0], pattern))
			if err != nil {
				return fmt.Errorf("bad pattern: %w", err)
			}
			sort.Strings(matches)
			if len(matches) == 0 {
				return fmt.Errorf("no files matching %s in %s", pattern, args[0])
			}

			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}

			snapshot := snapshotWithOverrides(flavor, maxPages, false, false)
			ui := NewUI(outputJSON, noColor)
			bar := ui.ProgressBar("parsing", int64(len(matches)))

			type batchEntry struct {
				File     string `json:"file"`
				Success  bool   `json:"success"`
				Products int    `json:"products"`
				Errors   int    `json:"parsing_errors"`
				Error    string `json:"error,omitempty"`
			}
			var (
				entries []batchEntry
				failed  int
			)

			for _, path := range matches {
				result, err := parseOne(ctx, path, snapshot)
				entry := batchEntry{File: path}
				if err != nil {
					entry.Error = err.Error()
					failed++
				} else {
					entry.Success = result.Success
					entry.Products = len(result.Products)
					entry.Errors = len(result.ParsingErrors)
					if outputDir != "" {
						name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".json"
						if werr := writeResultFile(filepath.Join(outputDir, name), result); werr != nil {
							entry.Error = werr.Error()
						}
					}
				}
				entries = append(entries, entry)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			if bar != nil {
				_ = bar.Finish()
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"total":   len(entries),
					"failed":  failed,
					"results": entries,
				})
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				status := "ok"
				if e.Error != "" {
					status = "failed: " + e.Error
				}
				rows = append(rows, []string{
					filepath.Base(e.File),
					status,
					fmt.Sprintf("%d", e.Products),
					fmt.Sprintf("%d", e.Errors),
				})
			}
			ui.Table([]string{"File", "Status", "Products", "Errors"}, rows)

			if failed > 0 {
				ui.Warning("%d of %d invoices failed", failed, len(entries))
			} else {
				ui.Success("Parsed %d invoices", len(entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "*.pdf", "glob pattern for invoice files")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for per-invoice result JSON")
	cmd.Flags().StringVar(&flavor, "flavor", "", "extraction flavor override")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "limit the number of pages processed (0 = all)")

	return cmd
}

// newCoordinateCmd creates the coordinate subcommand.
func newCoordinateCmd() *cobra.Command {
	var (
		startMarker string
		endMarker   string
	)

	cmd := &cobra.Command{
		Use:   "coordinate <invoice.pdf>",
		Short: "Run only the marker-bounded extraction, with debug output",
		Long: `Coordinate extracts the first table found between the start and end
markers and prints what the strategy saw: column coordinates, row count
and the summed total. Useful for tuning markers on a new layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			snapshot := cfg.Snapshot()
			if startMarker != "" {
				snapshot.CoordinateStartMarker = startMarker
			}
			if endMarker != "" {
				snapshot.CoordinateEndMarker = endMarker
			}

			doc, err := openLayoutDocument(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer doc.Close()

			result, err := pipeline.New(snapshot, logger).RunCoordinate(ctx, doc)
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			ui := NewUI(outputJSON, noColor)
			ui.Section("Coordinate extraction")
			ui.KeyValue("Table found", result.Debug.TableFound)
			ui.KeyValue("Headers detected", result.Debug.HeadersDetected)
			ui.KeyValue("Rows extracted", result.Debug.RowsExtracted)
			ui.KeyValue("Total amount", result.Debug.TotalAmount.String())
			for name, col := range result.Debug.ColumnMapping {
				ui.KeyValue("Column "+name, col)
			}
			printProducts(ui, result.Products)
			for _, msg := range result.ParsingErrors {
				ui.Warning("%s", msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startMarker, "start-marker", "", "table region start marker (default: config)")
	cmd.Flags().StringVar(&endMarker, "end-marker", "", "table region end marker (default: config)")

	return cmd
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.Encode(map[string]string{
					"version": "0.1.0",
					"go":      "1.24",
				})
				return
			}
			fmt.Println("invoice-parser-cli v0.1.0")
		},
	}
}

// parseOne runs the full pipeline over a single file.
func parseOne(ctx context.Context, path string, snapshot domain.ProcessingConfig) (domain.InvoiceResult, error) {
	doc, err := openLayoutDocument(path)
	if err != nil {
		return domain.InvoiceResult{}, err
	}
	defer doc.Close()

	return pipeline.New(snapshot, logger).Run(ctx, doc, filepath.Base(path))
}

// openLayoutDocument opens a PDF or layout JSON file.
func openLayoutDocument(path string) (layout.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return layout.OpenJSON(path)
	}
	return layout.OpenPDF(path)
}

// snapshotWithOverrides applies command flags on top of the configured
// processing snapshot.
func snapshotWithOverrides(flavor string, maxPages int, noValidation, noChecksums bool) domain.ProcessingConfig {
	snapshot := cfg.Snapshot()
	if flavor != "" {
		snapshot.TableExtractionFlavor = domain.ExtractionFlavor(flavor)
	}
	if maxPages > 0 {
		snapshot.MaxPagesToProcess = maxPages
	}
	if noValidation {
		snapshot.EnableOCRValidation = false
	}
	if noChecksums {
		snapshot.ValidateChecksums = false
	}
	return snapshot
}

func writeResultFile(path string, result domain.InvoiceResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// printResult renders the parse outcome for humans.
func printResult(ui *UI, path string, result domain.InvoiceResult, elapsed time.Duration) {
	ui.Section("Invoice " + filepath.Base(path))
	ui.KeyValue("Bill number", result.Bill.BillNumber)
	ui.KeyValue("Bill date", result.Bill.BillDate)
	ui.KeyValue("Customer", result.Bill.CustomerName)
	ui.KeyValue("Currency", result.Bill.Currency)
	ui.KeyValue("Total amount", formatNullDecimal(result.Bill.TotalAmount))
	ui.KeyValue("Extraction method", result.ExtractionMethod)
	ui.KeyValue("Deliveries", len(result.Deliveries))

	printProducts(ui, result.Products)

	if len(result.ParsingErrors) > 0 {
		ui.Section("Parsing errors")
		for _, msg := range result.ParsingErrors {
			ui.Warning("%s", msg)
		}
	}

	stats := result.Stats
	if !result.ValidationChecksumOK {
		ui.Warning("Checksum validation failed")
	}
	ui.Success("Parsed %d products from %d pages in %s (avg confidence %.2f)",
		stats.ProductsExtracted, stats.PagesProcessed, FormatDuration(elapsed), stats.AverageConfidence)
}

// printProducts renders the goods table.
func printProducts(ui *UI, products []domain.ProductRecord) {
	if len(products) == 0 {
		ui.Info("No products extracted")
		return
	}
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		desc := p.Description
		if len(desc) > 40 {
			desc = desc[:40] + "..."
		}
		rows = append(rows, []string{
			p.ProductCode,
			desc,
			p.UnitOfMeasure,
			formatNullDecimal(p.Quantity),
			formatNullDecimal(p.UnitPrice),
			formatNullDecimal(p.TotalPrice),
		})
	}
	ui.Table([]string{"Code", "Description", "UM", "Qty", "Unit price", "Total"}, rows)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}
