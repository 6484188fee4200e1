// Package pipeline orchestrates the invoice parsing steps: metadata, page
// extraction, validation and compilation. Each step's internal failure is
// captured and the run continues; only an unreadable document aborts.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/compile"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/extract"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/validate"
)

// State tracks pipeline progress through its fixed step sequence.
type State string

const (
	StateStart          State = "start"
	StateMetadataDone   State = "metadata_done"
	StatePagesDone      State = "pages_done"
	StateValidationDone State = "validation_done"
	StateCompiled       State = "compiled"
)

// Pipeline runs the full parsing sequence over a page layout document.
// All components are constructed once per request from an immutable
// config snapshot; runs share nothing.
type Pipeline struct {
	cfg       domain.ProcessingConfig
	log       *observability.Logger
	metadata  *extract.MetadataExtractor
	tables    *extract.TableExtractor
	validator *validate.OCRValidator
	compiler  *compile.Compiler
}

// New builds a pipeline for one request.
func New(cfg domain.ProcessingConfig, log *observability.Logger) *Pipeline {
	if log == nil {
		log = observability.Nop()
	}
	if cfg.MaxConcurrentPages < 1 {
		cfg.MaxConcurrentPages = 1
	}
	return &Pipeline{
		cfg:       cfg,
		log:       log,
		metadata:  extract.NewMetadataExtractor(),
		tables:    extract.NewTableExtractor(cfg, log),
		validator: validate.NewOCRValidator(cfg, log),
		compiler:  compile.NewCompiler(cfg, log),
	}
}

// Run executes the pipeline. The error return is fatal-only: a document
// with zero readable pages, or caller cancellation. Everything else comes
// back inside the result's parsing_errors.
func (p *Pipeline) Run(ctx context.Context, doc layout.Document, filename string) (domain.InvoiceResult, error) {
	if doc.PageCount() == 0 {
		return domain.InvoiceResult{}, fmt.Errorf("%w: document has no pages", domain.ErrParseFailure)
	}

	state := StateStart
	var stepErrors []string

	// Step 1: header metadata from the first page.
	var bill domain.BillData
	firstPage, err := doc.Page(1)
	if err != nil {
		stepErrors = append(stepErrors, fmt.Sprintf("metadata extraction: %v", err))
		bill = p.metadata.Extract("", filename)
	} else {
		bill = p.metadata.Extract(firstPage.Text, filename)
	}
	state = StateMetadataDone
	p.log.WithStep(string(state)).Debug().Str("bill_number", bill.BillNumber).Msg("metadata extracted")

	if err := ctx.Err(); err != nil {
		return domain.InvoiceResult{}, err
	}

	// Step 2: per-page extraction. Pages are independent, so they run on a
	// bounded pool; the index-addressed slice keeps page order.
	pageCount := doc.PageCount()
	if p.cfg.MaxPagesToProcess > 0 && pageCount > p.cfg.MaxPagesToProcess {
		p.log.Info().Int("limit", p.cfg.MaxPagesToProcess).Int("total", pageCount).Msg("page limit applied")
		pageCount = p.cfg.MaxPagesToProcess
	}
	pages := p.extractPages(ctx, doc, pageCount)
	state = StatePagesDone
	p.log.WithStep(string(state)).Debug().Int("pages", len(pages)).Msg("pages extracted")

	if err := ctx.Err(); err != nil {
		return domain.InvoiceResult{}, err
	}

	// Step 3: per-page validation.
	validations := make([]domain.ValidationResult, 0, len(pages))
	for _, page := range pages {
		validation := p.validator.ValidatePage(page)
		if !validation.IsValid {
			p.log.WithPage(page.PageNumber).Warn().
				Float64("confidence", validation.ConfidenceScore).
				Msg("page failed validation")
		}
		validations = append(validations, validation)
	}
	state = StateValidationDone

	// Step 4: compile the final result.
	result := p.compiler.Compile(bill, pages, validations, string(p.cfg.TableExtractionFlavor), stepErrors)
	state = StateCompiled
	p.log.WithStep(string(state)).Info().
		Bool("success", result.Success).
		Int("products", len(result.Products)).
		Int("errors", len(result.ParsingErrors)).
		Msg("pipeline finished")
	return result, nil
}

// extractPages runs page extraction on a pool of MaxConcurrentPages
// workers. A page-level failure or panic becomes that page's error entry;
// sibling pages are unaffected.
func (p *Pipeline) extractPages(ctx context.Context, doc layout.Document, pageCount int) []domain.PageData {
	pages := make([]domain.PageData, pageCount)
	sem := make(chan struct{}, p.cfg.MaxConcurrentPages)
	var wg sync.WaitGroup

	for n := 1; n <= pageCount; n++ {
		if ctx.Err() != nil {
			pages[n-1] = domain.PageData{
				PageNumber: n,
				Errors:     []string{fmt.Sprintf("page %d: %v", n, ctx.Err())},
			}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(num int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					pages[num-1] = domain.PageData{
						PageNumber: num,
						Errors:     []string{fmt.Sprintf("page %d: extraction panic: %v", num, r)},
					}
				}
			}()

			page, err := doc.Page(num)
			if err != nil {
				pages[num-1] = domain.PageData{
					PageNumber: num,
					Errors:     []string{fmt.Sprintf("page %d: %v", num, err)},
				}
				return
			}
			pages[num-1] = p.tables.ExtractPage(page)
		}(n)
	}
	wg.Wait()
	return pages
}

// RunCoordinate executes only the marker-bounded strategy over the whole
// document, for the coordinate endpoint. Absence of the marker-bounded
// table is a reported condition, never a failure.
func (p *Pipeline) RunCoordinate(ctx context.Context, doc layout.Document) (extract.CoordinateResult, error) {
	if err := ctx.Err(); err != nil {
		return extract.CoordinateResult{}, err
	}
	strategy := extract.NewCoordinateStrategy(p.cfg.CoordinateStartMarker, p.cfg.CoordinateEndMarker)
	result := strategy.Extract(doc)
	p.log.WithStep("coordinate").Debug().
		Bool("table_found", result.Debug.TableFound).
		Int("rows", result.Debug.RowsExtracted).
		Msg("coordinate extraction finished")
	return result, nil
}
