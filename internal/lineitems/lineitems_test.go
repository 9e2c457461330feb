package lineitems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/model"
)

func TestParse(t *testing.T) {
	item := Parse("Support Retainer\nQty: 5\nPrice: $150.00\nTotal: $750.00")
	assert.Equal(t, "Support Retainer", item.Description)
	require.NotNil(t, item.Quantity)
	assert.Equal(t, 5, *item.Quantity)
	require.NotNil(t, item.UnitPrice)
	assert.Equal(t, 150.0, *item.UnitPrice)
	require.NotNil(t, item.Total)
	assert.Equal(t, 750.0, *item.Total)
}

func TestParsePartial(t *testing.T) {
	item := Parse("Consulting Hours\nTotal: $1,200.00")
	assert.Equal(t, "Consulting Hours", item.Description)
	assert.Nil(t, item.Quantity)
	assert.Nil(t, item.UnitPrice)
	require.NotNil(t, item.Total)
	assert.Equal(t, 1200.0, *item.Total)
}

func TestParseEmpty(t *testing.T) {
	item := Parse("")
	assert.Empty(t, item.Description)
	assert.Nil(t, item.Quantity)
}

func intp(v int) *int       { return &v }
func fp(v float64) *float64 { return &v }

func TestValidateApprovedList(t *testing.T) {
	po := &model.PurchaseOrder{ValidItems: []string{"Support Retainer"}}
	items := []model.LineItem{
		{Description: "Support Retainer", Quantity: intp(1)},
		{Description: "Rush Fee", Quantity: intp(1)},
	}
	discs := Validate(items, po, nil)
	require.Len(t, discs, 1)
	assert.Equal(t, "line_items[1].description", discs[0].Field)
	assert.Equal(t, model.SeverityCritical, discs[0].IssueType)
	assert.Equal(t, "Item not in approved PO list", discs[0].Suggestion)
	assert.Equal(t, "Rush Fee", discs[0].Detected)
}

func TestValidateQuantityCap(t *testing.T) {
	po := &model.PurchaseOrder{
		ValidItems:  []string{"Support Retainer"},
		MaxQuantity: map[string]int{"Support Retainer": 3},
	}
	items := []model.LineItem{
		{Description: "Support Retainer", Quantity: intp(5)},
	}
	discs := Validate(items, po, nil)
	require.Len(t, discs, 1)
	assert.Equal(t, "line_items[0].quantity", discs[0].Field)
	assert.Equal(t, model.SeverityCritical, discs[0].IssueType)
	assert.Equal(t, 3, discs[0].Expected)
	assert.Equal(t, 5, discs[0].Detected)
	assert.Equal(t, 0.9, discs[0].Confidence)
}

func TestValidateLineTotal(t *testing.T) {
	items := []model.LineItem{
		{Description: "Widget", Quantity: intp(3), UnitPrice: fp(4.5), Total: fp(20.0)},
	}
	discs := Validate(items, nil, nil)
	require.Len(t, discs, 1)
	assert.Equal(t, "line_items[0].total", discs[0].Field)
	assert.Equal(t, model.SeverityWarning, discs[0].IssueType)
	assert.Equal(t, 13.5, discs[0].Expected)
	assert.Equal(t, "Line total mismatch", discs[0].Suggestion)
}

func TestValidateLineTotalWithinTolerance(t *testing.T) {
	items := []model.LineItem{
		{Description: "Widget", Quantity: intp(3), UnitPrice: fp(4.5), Total: fp(14.0)},
	}
	assert.Empty(t, Validate(items, nil, nil))
}

func TestValidateNoPOSkipsListChecks(t *testing.T) {
	items := []model.LineItem{{Description: "Anything", Quantity: intp(99)}}
	assert.Empty(t, Validate(items, nil, nil))
}
