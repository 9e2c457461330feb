package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/refdata"
	"github.com/sells-group/invoice-audit/internal/store"
)

func fp(v float64) *float64 { return &v }

func testConfig() *config.Config {
	return &config.Config{
		OCR:        config.OCRConfig{Threshold: 150},
		Pipeline:   config.PipelineConfig{MaxConcurrentInvoices: 2},
		Validation: config.DefaultValidation(),
		Scoring:    config.DefaultScoring(),
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func rawLine(text string, x1, y1, x2, y2 int, c float64) model.Line {
	return model.Line{
		Text:       text,
		Confidence: &c,
		BBox:       model.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func rawInvoice() model.RawInvoice {
	return model.RawInvoice{
		RawText: "synthetic",
		Pages: []model.Page{
			{
				Width:  800,
				Height: 1000,
				Lines: []model.Line{
					rawLine("From: Acme Corp", 10, 40, 300, 60, 0.94),
					rawLine("742 Evergreen Terrace", 10, 70, 300, 90, 0.92),
					rawLine("Bill To", 10, 140, 80, 160, 0.95),
					rawLine("Globex Inc", 10, 170, 200, 190, 0.93),
					rawLine("500 Commerce Blvd, Dayton", 10, 200, 280, 220, 0.91),
					rawLine("PO Number: PO-7781", 500, 40, 760, 60, 0.96),
					rawLine("Invoice Date: 2024-03-01", 500, 70, 760, 90, 0.95),
					rawLine("Due Date: 2024-03-31", 500, 100, 760, 120, 0.95),
					rawLine("Qty Price Amount", 10, 300, 760, 320, 0.95),
					rawLine("Widget A 2 $10.00 $20.00", 10, 330, 760, 350, 0.92),
					rawLine("Subtotal $20.00", 500, 400, 760, 420, 0.95),
					rawLine("Tax $1.60", 500, 430, 760, 450, 0.94),
					rawLine("Total Due $21.60", 500, 460, 760, 480, 0.96),
				},
			},
		},
	}
}

func TestExtractAllPersistsDocuments(t *testing.T) {
	st := newTestStore(t)
	p := New(testConfig(), st, normalize.Default(), nil, nil)

	raw := map[string]model.RawInvoice{
		"INV-001": rawInvoice(),
		"INV-002": rawInvoice(),
	}
	docs, err := p.ExtractAll(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs["INV-001"]
	require.NotNil(t, doc)
	assert.Equal(t, "PO-7781", doc.Value(model.FieldPONumber))
	assert.Equal(t, "2024-03-01", doc.Value(model.FieldInvoiceDate))
	assert.Equal(t, 21.60, doc.Value(model.FieldTotalAmount))

	saved, err := st.GetDocument(context.Background(), "INV-002")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "PO-7781", saved.Value(model.FieldPONumber))
}

func TestExtractAllWithoutStore(t *testing.T) {
	p := New(testConfig(), nil, normalize.Default(), nil, nil)

	docs, err := p.ExtractAll(context.Background(), map[string]model.RawInvoice{
		"INV-001": rawInvoice(),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func cleanBundle() *refdata.Bundle {
	doc := model.NewDocument()
	doc.Set(model.FieldVendorName, "Acme Data Services LLC", fp(0.95), nil)
	doc.Set(model.FieldVendorAddress, "900 Market Street, San Jose, CA 95113", nil, nil)
	doc.Set(model.FieldCustomerName, "Suri Technologies", nil, nil)
	doc.Set(model.FieldCustomerAddress, "456 Data Street, Austin, TX 78701", nil, nil)
	doc.Set(model.FieldPONumber, "PO-45678", fp(0.90), nil)
	doc.Set(model.FieldInvoiceDate, "2024-02-02", nil, nil)
	doc.Set(model.FieldDueDate, "2024-03-03", nil, nil)
	doc.Set(model.FieldSubtotal, 100.00, nil, nil)
	doc.Set(model.FieldTaxAmount, 9.00, nil, nil)
	doc.Set(model.FieldTotalAmount, 109.00, fp(0.98), nil)

	truth := model.GroundTruth{
		InvoiceID: "INV-CLEAN",
		ExpectedData: map[model.FieldKey]any{
			model.FieldVendorName:      "Acme Data Services LLC",
			model.FieldVendorAddress:   "900 Market Street, San Jose, CA 95113",
			model.FieldCustomerName:    "Suri Technologies",
			model.FieldCustomerAddress: "456 Data Street, Austin, TX 78701",
			model.FieldPONumber:        "PO-45678",
			model.FieldInvoiceDate:     "2024-02-02",
			model.FieldDueDate:         "2024-03-03",
			model.FieldSubtotal:        100.00,
			model.FieldTaxAmount:       9.00,
			model.FieldTotalAmount:     109.00,
		},
	}

	return &refdata.Bundle{
		GroundTruth: []model.GroundTruth{truth},
		Documents:   map[string]*model.Document{"INV-CLEAN": doc},
		Database: &model.ReferenceDB{
			PurchaseOrders: map[string]model.PurchaseOrder{
				"PO-45678": {
					Vendor:         "Acme Data Services LLC",
					ApprovedAmount: 109.00,
					TaxRate:        fp(0.09),
				},
			},
		},
	}
}

func TestValidateAllPersistsRuns(t *testing.T) {
	st := newTestStore(t)
	p := New(testConfig(), st, normalize.Default(), nil, nil)

	results, err := p.ValidateAll(context.Background(), cleanBundle())
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results["INV-CLEAN"]
	require.NotNil(t, result)
	assert.Equal(t, model.StatusApproved, result.Status)
	assert.Empty(t, result.Discrepancies)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{InvoiceID: "INV-CLEAN"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	require.NotNil(t, runs[0].Result)
	assert.Equal(t, model.StatusApproved, runs[0].Result.Status)
}

func TestValidateAllSkipsMissingDocument(t *testing.T) {
	bundle := cleanBundle()
	bundle.GroundTruth = append(bundle.GroundTruth, model.GroundTruth{InvoiceID: "INV-NO-DOC"})

	p := New(testConfig(), nil, normalize.Default(), nil, nil)
	results, err := p.ValidateAll(context.Background(), bundle)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.NotContains(t, results, "INV-NO-DOC")
}

func TestRunLoadsReferenceData(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("ground_truth.json", `{
	  "invoices": [
	    {"invoice_id": "INV-100", "expected_data": {"vendor_name": "Acme Corp", "total_amount": 109.0, "po_number": "PO-45678"}}
	  ]
	}`)
	write("database.json", `{
	  "purchase_orders": {"PO-45678": {"vendor": "Acme Corp", "approved_amount": 109.0}},
	  "vendor_master": {},
	  "customer_info": {}
	}`)
	write("ocr_results.json", `{
	  "INV-100": {
	    "raw_text": "...",
	    "structured_data": {"vendor_name": "Acme Corp", "total_amount": 109.0, "po_number": "PO-45678"},
	    "confidence_scores": {"vendor_name": 0.95, "total_amount": 0.98, "po_number": 0.9},
	    "bounding_boxes": {}
	  }
	}`)

	p := New(testConfig(), nil, normalize.Default(), nil, nil)
	results, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results["INV-100"])
}

func TestSummarize(t *testing.T) {
	results := map[string]*model.Result{
		"a": {Status: model.StatusApproved, ConfidenceScore: 0.9},
		"b": {Status: model.StatusNeedsReview, ConfidenceScore: 0.6},
		"c": {Status: model.StatusRejected, ConfidenceScore: 0.3},
		"d": {Status: model.StatusApproved, ConfidenceScore: 0.8},
	}
	s := Summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Approved)
	assert.Equal(t, 1, s.NeedsReview)
	assert.Equal(t, 1, s.Rejected)
	assert.InDelta(t, 0.65, s.AvgScore, 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil))
}
