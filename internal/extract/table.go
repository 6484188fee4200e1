package extract

import (
	"fmt"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
)

// TableExtractor extracts everything a single page yields: product rows
// via the configured strategy chain, plus every delivery note section on
// the page. Page failures are recorded on the PageData, never raised.
type TableExtractor struct {
	chain *Chain
	log   *observability.Logger
}

// NewTableExtractor builds a page extractor for the configured flavor.
func NewTableExtractor(cfg domain.ProcessingConfig, log *observability.Logger) *TableExtractor {
	if log == nil {
		log = observability.Nop()
	}
	return &TableExtractor{
		chain: ChainFor(cfg.TableExtractionFlavor, cfg),
		log:   log,
	}
}

// ExtractPage processes one page layout. The result always carries the
// page number and raw text; a page with no recognizable table comes back
// with no products and a recorded error.
func (e *TableExtractor) ExtractPage(page layout.Page) domain.PageData {
	log := e.log.WithPage(page.Number)

	data := domain.PageData{
		PageNumber: page.Number,
		RawText:    page.Text,
		Deliveries: ExtractDeliveries(page.Text),
	}

	records, strategyName, ok := e.chain.Attempt(page)
	if !ok {
		msg := fmt.Sprintf("page %d: %v", page.Number, domain.ErrExtractionFailure)
		data.Errors = append(data.Errors, msg)
		log.Warn().Int("tables", len(page.Tables)).Msg("no table detected on page")
	} else {
		data.Products = records
		log.Debug().
			Str("strategy", strategyName).
			Int("products", len(records)).
			Int("deliveries", len(data.Deliveries)).
			Msg("page extracted")
	}

	AssociateProducts(&data)
	return data
}
