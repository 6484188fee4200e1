package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
)

func testConfig() domain.ProcessingConfig {
	cfg := domain.DefaultProcessingConfig()
	cfg.ValidateChecksums = false
	return cfg
}

// invoicePage builds a page whose table the structured strategy accepts and
// whose text carries the product code so validation passes.
func invoicePage(code string) layout.Page {
	return layout.Page{
		Text: "goods listing " + code + " continued",
		Tables: []layout.Table{{
			Rows: [][]string{
				{"Prodotto", "", "Voce dog", "UM", "Qtà fatt", "Prezzo unitario", "Importo"},
				{code, "", "61091000", "MT", "10,00", "5,00", "50,00"},
			},
		}},
	}
}

const firstPageText = `LISTA VALORIZZATA
N° doc: LV / 123
Del: 05-03-2024
Divisa: Cliente: EUR C0042
goods listing MMA01.111.111 continued
`

func TestPipeline_Run_FullInvoice(t *testing.T) {
	page := invoicePage("MMA01.111.111")
	page.Text = firstPageText

	p := New(testConfig(), nil)
	result, err := p.Run(context.Background(), layout.NewStaticDocument(page), "invoice.pdf")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "123", result.Bill.BillNumber)
	assert.Equal(t, "EUR", result.Bill.Currency)
	assert.Equal(t, "structured-then-flexible", result.ExtractionMethod)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "MMA01.111.111", result.Products[0].ProductCode)
	assert.Empty(t, result.ParsingErrors)
	assert.Equal(t, 1, result.Stats.PagesProcessed)
}

func TestPipeline_Run_PreservesPageOrder(t *testing.T) {
	var pages []layout.Page
	var codes []string
	for i := 1; i <= 6; i++ {
		code := fmt.Sprintf("MMA0%d.111.111", i)
		codes = append(codes, code)
		pages = append(pages, invoicePage(code))
	}

	cfg := testConfig()
	cfg.MaxConcurrentPages = 4

	p := New(cfg, nil)
	result, err := p.Run(context.Background(), layout.NewStaticDocument(pages...), "invoice.pdf")

	require.NoError(t, err)
	require.Len(t, result.Products, len(codes))
	for i, code := range codes {
		assert.Equal(t, code, result.Products[i].ProductCode)
	}
}

func TestPipeline_Run_PageFailureIsIsolated(t *testing.T) {
	good := invoicePage("MMA01.111.111")
	empty := layout.Page{Text: "no table on this page"}

	p := New(testConfig(), nil)
	result, err := p.Run(context.Background(), layout.NewStaticDocument(good, empty), "invoice.pdf")

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Products, 1)

	found := false
	for _, msg := range result.ParsingErrors {
		if msg == "page 2: no table detected" {
			found = true
		}
	}
	assert.True(t, found, "expected page 2 extraction error, got %v", result.ParsingErrors)
}

func TestPipeline_Run_PageLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPagesToProcess = 1

	p := New(cfg, nil)
	result, err := p.Run(context.Background(),
		layout.NewStaticDocument(invoicePage("MMA01.111.111"), invoicePage("MMA02.222.222")),
		"invoice.pdf")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.PagesProcessed)
	assert.Len(t, result.Products, 1)
}

func TestPipeline_Run_EmptyDocumentFails(t *testing.T) {
	p := New(testConfig(), nil)
	_, err := p.Run(context.Background(), layout.NewStaticDocument(), "invoice.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(testConfig(), nil)
	_, err := p.Run(ctx, layout.NewStaticDocument(invoicePage("MMA01.111.111")), "invoice.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	page := invoicePage("MMA01.111.111")
	doc := layout.NewStaticDocument(page)

	p := New(testConfig(), nil)
	first, err := p.Run(context.Background(), doc, "invoice.pdf")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), doc, "invoice.pdf")
	require.NoError(t, err)

	assert.Equal(t, first.Products, second.Products)
	assert.Equal(t, first.ParsingErrors, second.ParsingErrors)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestPipeline_RunCoordinate(t *testing.T) {
	page := layout.Page{
		Lines: []layout.Line{
			{Text: "MS5LH0002 3635", Y: 100},
			{Text: "MS5LH0002 3636", Y: 400},
		},
		Tables: []layout.Table{{
			Top: 150,
			Rows: [][]string{
				{"Prodotto/Var/Tg", "", "Voce dog", "UM", "Qtà fatt", "Prezzo unitario", "Importo"},
				{"MMA01.111.111", "", "61091000", "MT", "10,00", "5,00", "50,00"},
			},
		}},
	}

	p := New(testConfig(), nil)
	result, err := p.RunCoordinate(context.Background(), layout.NewStaticDocument(page))

	require.NoError(t, err)
	assert.True(t, result.Debug.TableFound)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "MMA01.111.111", result.Products[0].ProductCode)
}

func TestPipeline_RunCoordinate_NoTable(t *testing.T) {
	page := layout.Page{Text: "nothing"}

	p := New(testConfig(), nil)
	result, err := p.RunCoordinate(context.Background(), layout.NewStaticDocument(page))

	require.NoError(t, err)
	assert.False(t, result.Debug.TableFound)
	assert.Contains(t, result.ParsingErrors, "No table found between specified markers")
}
