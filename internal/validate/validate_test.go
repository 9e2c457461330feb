package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

func fp(v float64) *float64 { return &v }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.DefaultValidation(), config.DefaultScoring(), normalize.Default(), nil)
}

func baseCase() (*model.Document, model.GroundTruth, *model.ReferenceDB) {
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
	doc.Set(model.FieldLineItems, []model.RawLineItem{
		{Text: "Support Retainer\nQty: 1\nPrice: $100.00\nTotal: $100.00"},
	}, nil, nil)

	truth := model.GroundTruth{
		InvoiceID: "INV-TEST-001",
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

	db := &model.ReferenceDB{
		PurchaseOrders: map[string]model.PurchaseOrder{
			"PO-45678": {
				Vendor:         "Acme Data Services LLC",
				ApprovedAmount: 109.00,
				ValidItems:     []string{"Support Retainer"},
				MaxQuantity:    map[string]int{"Support Retainer": 3},
				TaxRate:        fp(0.09),
			},
		},
		VendorMaster: map[string]model.VendorRecord{},
		CustomerInfo: map[string]model.CustomerRecord{},
	}
	return doc, truth, db
}

func findDiscrepancy(result *model.Result, field string) *model.Discrepancy {
	for i := range result.Discrepancies {
		if result.Discrepancies[i].Field == field {
			return &result.Discrepancies[i]
		}
	}
	return nil
}

func TestCleanInvoiceApproved(t *testing.T) {
	doc, truth, db := baseCase()
	result := newEngine(t).Validate(doc, truth, db)
	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, model.StatusApproved, result.Status)
	assert.InDelta(t, 0.786, result.ConfidenceScore, 1e-3)
	assert.Equal(t, "purchase_orders.vendor", result.ValidationDetails.ReferenceUsed[model.FieldVendorName])
}

func TestMissingVendorNameCritical(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldVendorName] = ""
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "vendor_name")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, "Missing value", d.Suggestion)
	assert.Equal(t, model.StatusNeedsReview, result.Status)
}

func TestConfusablePONumberWarning(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldPONumber] = "P0-45678"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "po_number")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
	assert.Equal(t, "Check OCR confusable characters (O/0, I/1)", d.Suggestion)

	// The PO record still resolves through confusable normalization.
	assert.Equal(t, "purchase_orders.vendor", result.ValidationDetails.ReferenceUsed[model.FieldVendorName])
}

func TestPONumberMismatchCritical(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldPONumber] = "PO-99999"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "po_number")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, "PO mismatch", d.Suggestion)
}

func TestDateOutOfRangeCritical(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldDueDate] = "2024-03-20"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "due_date")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, 17, result.ValidationDetails.DateDiffs[model.FieldDueDate])
}

func TestDateWithinWarningWindow(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldDueDate] = "2024-03-05"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "due_date")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
	assert.Equal(t, "Date off by a few days", d.Suggestion)
}

func TestInvalidDateFormatWarning(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldInvoiceDate] = "2024-13-40"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "invoice_date")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
	assert.Equal(t, "Date missing or unparseable", d.Suggestion)
}

func TestTotalAmountMismatchCritical(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldTotalAmount] = 150.00
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "total_amount")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, "Amount mismatch", d.Suggestion)
}

func TestAmountWithinToleranceNoDiscrepancy(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldTotalAmount] = 109.50
	result := newEngine(t).Validate(doc, truth, db)
	assert.Nil(t, findDiscrepancy(result, "total_amount"))
}

func TestTaxAmountWarningSuppressesRateCheck(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldTaxAmount] = 10.50
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "tax_amount")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
	assert.Equal(t, "Amount slightly off", d.Suggestion)

	// The rate check still records its expectation but adds nothing.
	require.NotNil(t, result.ValidationDetails.TaxRateCheck)
	count := 0
	for _, disc := range result.Discrepancies {
		if disc.Field == "tax_amount" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTaxRateCrossCheck(t *testing.T) {
	doc, truth, db := baseCase()
	po := db.PurchaseOrders["PO-45678"]
	po.TaxRate = fp(0.05)
	db.PurchaseOrders["PO-45678"] = po

	// Detected tax agrees with ground truth, so only the rate check
	// can flag it.
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "tax_amount")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, "Tax amount mismatch vs PO tax_rate", d.Suggestion)
	assert.Equal(t, 5.0, d.Expected)
	require.NotNil(t, result.ValidationDetails.TaxRateCheck)
	assert.InDelta(t, 5.0, result.ValidationDetails.TaxRateCheck.ExpectedTax, 1e-9)
}

func TestMissingAddressWarning(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldCustomerAddress] = ""
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "customer_address")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
}

func TestAddressAbbreviationNoDiscrepancy(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldVendorAddress] = "900 Market St, San Jose, CA 95113"
	result := newEngine(t).Validate(doc, truth, db)
	assert.Nil(t, findDiscrepancy(result, "vendor_address"))
}

func TestNameTruncatedWarning(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldCustomerName] = "Suri Tech"
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "customer_name")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
}

func TestLineItemQuantityCap(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldLineItems] = []model.RawLineItem{
		{Text: "Support Retainer\nQty: 5\nPrice: $100.00\nTotal: $500.00"},
	}
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "line_items[0].quantity")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
	assert.Equal(t, 3, d.Expected)
	assert.Equal(t, 5, d.Detected)
}

func TestLineItemNotInPOList(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldLineItems] = []model.RawLineItem{
		{Text: "Unknown Service\nQty: 1\nPrice: $100.00\nTotal: $100.00"},
	}
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "line_items[0].description")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
}

func TestLineTotalMismatchWarning(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldLineItems] = []model.RawLineItem{
		{Text: "Support Retainer\nQty: 1\nPrice: $100.00\nTotal: $102.00"},
	}
	result := newEngine(t).Validate(doc, truth, db)
	d := findDiscrepancy(result, "line_items[0].total")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityWarning, d.IssueType)
}

func TestVendorMasterAddressPrecedence(t *testing.T) {
	doc, truth, db := baseCase()
	db.VendorMaster["Acme Data Services LLC"] = model.VendorRecord{
		Address: "1 Corporate Way, Reno, NV 89501",
	}
	result := newEngine(t).Validate(doc, truth, db)
	assert.Equal(t, "vendor_master.address",
		result.ValidationDetails.ReferenceUsed[model.FieldVendorAddress])
	d := findDiscrepancy(result, "vendor_address")
	require.NotNil(t, d)
	assert.Equal(t, model.SeverityCritical, d.IssueType)
}

func TestCustomerInfoBillingAddressPrecedence(t *testing.T) {
	doc, truth, db := baseCase()
	db.CustomerInfo["Suri Technologies"] = model.CustomerRecord{
		BillingAddress: "456 Data Street, Austin, TX 78701",
	}
	result := newEngine(t).Validate(doc, truth, db)
	assert.Equal(t, "customer_info.billing_address",
		result.ValidationDetails.ReferenceUsed[model.FieldCustomerAddress])
	assert.Nil(t, findDiscrepancy(result, "customer_address"))
}

func TestStatusOnCriticalRejected(t *testing.T) {
	doc, truth, db := baseCase()
	doc.Values[model.FieldTotalAmount] = 150.00

	cfg := config.DefaultValidation()
	cfg.StatusOnCritical = string(model.StatusRejected)
	engine := New(cfg, config.DefaultScoring(), normalize.Default(), nil)
	result := engine.Validate(doc, truth, db)
	assert.Equal(t, model.StatusRejected, result.Status)
}

func TestLowConfidenceNeedsReview(t *testing.T) {
	doc, truth, db := baseCase()
	// Degrade every field's confidence; no discrepancies arise but the
	// blended score drops under the review threshold.
	for key := range doc.Confidence {
		doc.Confidence[key] = 0.3
	}
	result := newEngine(t).Validate(doc, truth, db)
	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, model.StatusNeedsReview, result.Status)
}

func TestMissingPOBothSidesNoDiscrepancy(t *testing.T) {
	doc, truth, db := baseCase()
	delete(doc.Values, model.FieldPONumber)
	delete(truth.ExpectedData, model.FieldPONumber)
	result := newEngine(t).Validate(doc, truth, db)
	assert.Nil(t, findDiscrepancy(result, "po_number"))
}
