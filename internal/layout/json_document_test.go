package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

const layoutJSON = `{
  "pages": [
    {
      "text": "first page text",
      "lines": [{"text": "a line", "y": 12.5}],
      "tables": [{"top": 100, "bottom": 200, "rows": [["h1", "h2"], ["c1", "c2"]]}]
    },
    {
      "number": 2,
      "text": "second page text"
    }
  ]
}`

func TestReadJSON(t *testing.T) {
	doc, err := ReadJSON(strings.NewReader(layoutJSON))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 2, doc.PageCount())

	page, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number) // auto-numbered
	assert.Equal(t, "first page text", page.Text)
	require.Len(t, page.Lines, 1)
	assert.Equal(t, 12.5, page.Lines[0].Y)
	require.Len(t, page.Tables, 1)
	assert.Equal(t, 100.0, page.Tables[0].Top)
	assert.Equal(t, 2, page.Tables[0].RowCount())
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParseFailure)

	_, err = ReadJSON(strings.NewReader(`{"pages": []}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestPage_OutOfRange(t *testing.T) {
	doc := NewStaticDocument(Page{Text: "only page"})

	_, err := doc.Page(0)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
	_, err = doc.Page(2)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestTable_RowBoundAccess(t *testing.T) {
	table := Table{Rows: [][]string{{"a", "b"}, {"c"}}}

	row, ok := table.Row(1)
	require.True(t, ok)
	assert.Equal(t, "c", row.Cell(0))
	// Short rows and out-of-range columns read as empty, never as a
	// neighboring row's cell.
	assert.Equal(t, "", row.Cell(1))
	assert.Equal(t, "", row.Cell(-1))

	_, ok = table.Row(2)
	assert.False(t, ok)
}

func TestNewStaticDocument_AutoNumbers(t *testing.T) {
	doc := NewStaticDocument(Page{}, Page{Number: 7}, Page{})

	p1, _ := doc.Page(1)
	p2, _ := doc.Page(2)
	p3, _ := doc.Page(3)
	assert.Equal(t, 1, p1.Number)
	assert.Equal(t, 7, p2.Number)
	assert.Equal(t, 3, p3.Number)
}
