package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(normalize.Default(), nil, Options{})
}

func conf(v float64) *float64 { return &v }

func line(text string, x1, y1, x2, y2 int, c float64) model.Line {
	return model.Line{
		Text:       text,
		Confidence: conf(c),
		BBox:       model.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func TestIsNameCandidate(t *testing.T) {
	assert.True(t, isNameCandidate("Acme Corp"))
	assert.True(t, isNameCandidate("Summit Logistics LLC"))
	assert.False(t, isNameCandidate("42"))
	assert.False(t, isNameCandidate("123 Main Street"))
	assert.False(t, isNameCandidate("$1,204.50 0001 9913"))
}

func TestIsValidName(t *testing.T) {
	assert.True(t, isValidName("Acme Corp"))
	assert.False(t, isValidName(""))
	assert.False(t, isValidName("Invoice"))
	assert.False(t, isValidName("Total Due"))
	assert.False(t, isValidName("88 Elm Street"))
	long := make([]byte, 81)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, isValidName(string(long)))
	assert.False(t, isValidName("Acme\x00Corp"))
}

func TestIsAddressCandidate(t *testing.T) {
	assert.True(t, isAddressCandidate("742 Evergreen Terrace, Springfield"))
	assert.True(t, isAddressCandidate("88 Elm Street"))
	assert.False(t, isAddressCandidate("01/02/2024"))
	assert.False(t, isAddressCandidate("$1,204.50"))
	assert.False(t, isAddressCandidate("short"))
}

func TestPickName(t *testing.T) {
	name, ok := pickName([]string{"123 Main St", "Acme Corp", "Suite 4"})
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", name)

	// No candidate falls back to the first line.
	name, ok = pickName([]string{"42", "77"})
	require.True(t, ok)
	assert.Equal(t, "42", name)

	_, ok = pickName(nil)
	assert.False(t, ok)
}

func TestParseItemLine(t *testing.T) {
	text, ok := parseItemLine("Widget A 3 $4.50 $13.50")
	require.True(t, ok)
	assert.Equal(t, "Widget A\nQty: 3\nPrice: $4.50\nTotal: $13.50", text)

	// Single amount means no unit price.
	text, ok = parseItemLine("Delivery fee 25.00")
	require.True(t, ok)
	assert.Contains(t, text, "Delivery fee")
	assert.Contains(t, text, "Total: $25.00")
	assert.NotContains(t, text, "Price:")

	_, ok = parseItemLine("no amounts here")
	assert.False(t, ok)

	_, ok = parseItemLine("$4.50 $13.50")
	assert.False(t, ok, "amount-only rows carry no description")
}

func TestExtractLineItems(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Description Qty Price Amount", 10, 100, 500, 120, 0.95),
		line("Widget A 3 $4.50 $13.50", 10, 130, 500, 150, 0.92),
		line("Widget B 1 $9.99 $9.99", 10, 160, 500, 180, 0.90),
		line("Subtotal $23.49", 10, 200, 500, 220, 0.95),
	}
	items, avgConf, box := e.extractLineItems(lines)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].Text, "Widget A")
	assert.Contains(t, items[1].Text, "Widget B")
	require.NotNil(t, avgConf)
	assert.InDelta(t, 0.91, *avgConf, 1e-9)
	require.NotNil(t, box)
	assert.Equal(t, 130, box.Y1)
	assert.Equal(t, 180, box.Y2)
}

func TestExtractLineItemsStopsAtTotals(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Qty Amount", 10, 100, 500, 120, 0.95),
		line("Widget A 3 $4.50 $13.50", 10, 130, 500, 150, 0.92),
		line("Total Due $13.50", 10, 160, 500, 180, 0.95),
		line("Widget B 1 $9.99 $9.99", 10, 190, 500, 210, 0.90),
	}
	items, _, _ := e.extractLineItems(lines)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Text, "Widget A")
}

func TestFindRightNeighbor(t *testing.T) {
	label := line("Invoice Date:", 10, 100, 120, 118, 0.95)
	lines := []model.Line{
		label,
		line("2024-01-05", 200, 101, 300, 119, 0.90),
		line("way off", 200, 400, 300, 418, 0.99),
		line("too close", 115, 101, 180, 119, 0.99),
	}
	got := findRightNeighbor(lines, &label, func(string) bool { return true })
	require.NotNil(t, got)
	assert.Equal(t, "2024-01-05", got.Text)
}

func TestExtractDate(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Invoice Date: 2024-01-05", 10, 100, 300, 120, 0.93),
		line("Due Date: 2024-02-04", 10, 130, 300, 150, 0.91),
	}
	got := e.extractDate(lines, e.labels.Date, []string{"due"})
	require.NotNil(t, got)
	assert.Equal(t, "2024-01-05", got.value)

	due := e.extractDate(lines, e.labels.Due, []string{"invoice"})
	require.NotNil(t, due)
	assert.Equal(t, "2024-02-04", due.value)
}

func TestExtractDateRightNeighbor(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Invoice Date", 10, 100, 120, 118, 0.93),
		line("Jan 5, 2024", 300, 101, 420, 119, 0.90),
	}
	got := e.extractDate(lines, e.labels.Date, []string{"due"})
	require.NotNil(t, got)
	assert.Equal(t, "2024-01-05", got.value)
}

func TestExtractPO(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("PO Number: PO-2024-0117", 10, 100, 300, 120, 0.9),
	}
	got := e.extractPO(lines)
	require.NotNil(t, got)
	assert.Equal(t, "PO-2024-0117", got.value)
}

func TestExtractTotalPrefersDecimal(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		// OCR noise: a decimal-less figure with higher confidence.
		line("Balance Due 1204", 10, 100, 300, 120, 0.99),
		line("Amount Due $1,204.50", 10, 130, 300, 150, 0.90),
	}
	got := e.extractTotalAmount(lines)
	require.NotNil(t, got)
	assert.Equal(t, 1204.50, got.value)
}

func TestExtractTotalBareFallbackRequiresDecimal(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Total 1204", 10, 100, 300, 120, 0.99),
	}
	assert.Nil(t, e.extractTotalAmount(lines))

	lines = []model.Line{
		line("Total $1,204.50", 10, 100, 300, 120, 0.99),
	}
	got := e.extractTotalAmount(lines)
	require.NotNil(t, got)
	assert.Equal(t, 1204.50, got.value)
}

func TestExtractPartyInline(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("From: Acme Corp", 10, 50, 300, 70, 0.94),
		line("742 Evergreen Terrace", 10, 80, 300, 100, 0.92),
		line("Springfield, IL 62704", 10, 110, 300, 130, 0.90),
		line("Bill To: Globex Inc", 10, 200, 300, 220, 0.93),
	}
	got := e.extractParty(lines, e.labels.VendorStart, e.labels.VendorInline, 0)
	require.NotNil(t, got.name)
	assert.Equal(t, "Acme Corp", got.name.value)
	require.NotNil(t, got.address)
	assert.Equal(t, "742 Evergreen Terrace, Springfield, IL 62704", got.address.value)
}

func TestExtractPartyBlock(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Bill To", 10, 200, 80, 220, 0.95),
		line("Globex Inc", 10, 230, 200, 250, 0.93),
		line("123 Oak Ave", 10, 260, 200, 280, 0.91),
		line("Total Due $99.00", 10, 400, 300, 420, 0.95),
	}
	got := e.extractParty(lines, e.labels.CustomerStart, nil, 6)
	require.NotNil(t, got.name)
	assert.Equal(t, "Globex Inc", got.name.value)
	require.NotNil(t, got.address)
	assert.Equal(t, "123 Oak Ave", got.address.value)
}

func TestExtractPartyCompanyLineFallback(t *testing.T) {
	e := newTestExtractor(t)
	lines := []model.Line{
		line("Invoice #4411", 10, 10, 200, 30, 0.95),
		line("Initech LLC", 10, 40, 200, 60, 0.92),
	}
	got := e.extractParty(lines, []string{"seller"}, nil, 0)
	require.NotNil(t, got.name)
	assert.Equal(t, "Initech LLC", got.name.value)
	assert.Nil(t, got.address)
}

func TestExtractFullDocument(t *testing.T) {
	e := newTestExtractor(t)
	inv := model.RawInvoice{
		RawText: "raw",
		Pages: []model.Page{{
			Width:  1000,
			Height: 1400,
			Lines: []model.Line{
				line("From: Acme Corp", 10, 40, 300, 60, 0.94),
				line("742 Evergreen Terrace", 10, 70, 300, 90, 0.92),
				line("Bill To", 10, 140, 80, 160, 0.95),
				line("Globex Inc", 10, 170, 200, 190, 0.93),
				line("500 Commerce Blvd, Dayton", 10, 200, 280, 220, 0.91),
				line("PO Number: PO-7781", 500, 40, 760, 60, 0.96),
				line("Invoice Date: 2024-03-01", 500, 70, 760, 90, 0.95),
				line("Due Date: 2024-03-31", 500, 100, 760, 120, 0.95),
				line("Qty Price Amount", 10, 300, 760, 320, 0.95),
				line("Widget A 2 $10.00 $20.00", 10, 330, 760, 350, 0.92),
				line("Subtotal $20.00", 500, 400, 760, 420, 0.95),
				line("Tax $1.60", 500, 430, 760, 450, 0.94),
				line("Total Due $21.60", 500, 460, 760, 480, 0.96),
			},
		}},
	}

	doc, err := e.Extract(context.Background(), inv, nil)
	require.NoError(t, err)
	assert.Equal(t, "raw", doc.RawText)
	assert.Equal(t, "Acme Corp", doc.Value(model.FieldVendorName))
	assert.Equal(t, "Globex Inc", doc.Value(model.FieldCustomerName))
	assert.Equal(t, "PO-7781", doc.Value(model.FieldPONumber))
	assert.Equal(t, "2024-03-01", doc.Value(model.FieldInvoiceDate))
	assert.Equal(t, "2024-03-31", doc.Value(model.FieldDueDate))
	assert.Equal(t, 20.0, doc.Value(model.FieldSubtotal))
	assert.Equal(t, 1.60, doc.Value(model.FieldTaxAmount))
	assert.Equal(t, 21.60, doc.Value(model.FieldTotalAmount))
	require.Len(t, doc.LineItems(), 1)
	assert.Contains(t, doc.LineItems()[0].Text, "Widget A")

	require.NotNil(t, doc.Conf(model.FieldTotalAmount))
	assert.InDelta(t, 0.96, *doc.Conf(model.FieldTotalAmount), 1e-9)
	require.NotNil(t, doc.Box(model.FieldTotalAmount))
}

func TestExtractCanceledContext(t *testing.T) {
	e := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, model.RawInvoice{}, nil)
	assert.Error(t, err)
}
