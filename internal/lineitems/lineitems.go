// Package lineitems parses extracted line-item text and checks items
// against the purchase order's approved list and quantity caps.
package lineitems

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

var (
	qtyRe   = regexp.MustCompile(`(?i)qty\s*[:=]?\s*(\d+)`)
	priceRe = regexp.MustCompile(`(?i)price\s*[:=]?\s*\$?([0-9,.]+)`)
	totalRe = regexp.MustCompile(`(?i)total\s*[:=]?\s*\$?([0-9,.]+)`)
)

// lineTotalTolerance is the absolute slack allowed between qty*price
// and the printed line total before flagging.
const lineTotalTolerance = 1.0

// Parse splits one item's reconstructed text into its components.
// The first text line is the description; quantity, unit price, and
// total come from their label patterns wherever they sit in the text.
func Parse(text string) model.LineItem {
	var item model.LineItem
	if text == "" {
		return item
	}
	item.Description = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])

	if m := qtyRe.FindStringSubmatch(text); m != nil {
		if v, ok := normalize.SafeInt(m[1]); ok {
			item.Quantity = &v
		}
	}
	if m := priceRe.FindStringSubmatch(text); m != nil {
		if v, ok := normalize.ParseAmount(m[1]); ok {
			item.UnitPrice = &v
		}
	}
	if m := totalRe.FindStringSubmatch(text); m != nil {
		if v, ok := normalize.ParseAmount(m[1]); ok {
			item.Total = &v
		}
	}
	return item
}

// ParseAll parses every raw item in order.
func ParseAll(raw []model.RawLineItem) []model.LineItem {
	items := make([]model.LineItem, len(raw))
	for i, r := range raw {
		items[i] = Parse(r.Text)
	}
	return items
}

// Validate checks parsed items against the PO record. Items are
// evaluated independently; discrepancy keys are disambiguated by item
// index. A nil PO skips the approved-list and quantity-cap checks.
func Validate(items []model.LineItem, po *model.PurchaseOrder, box *model.BBox) []model.Discrepancy {
	var out []model.Discrepancy
	for idx, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", idx)

		if item.Description != "" && po != nil && len(po.ValidItems) > 0 && !po.HasValidItem(item.Description) {
			out = append(out, model.Discrepancy{
				Field:       prefix + ".description",
				IssueType:   model.SeverityCritical,
				Expected:    "item_in_po",
				Detected:    item.Description,
				Confidence:  0.9,
				Suggestion:  "Item not in approved PO list",
				BoundingBox: box,
			})
		}

		if item.Description != "" && po != nil && item.Quantity != nil {
			if cap, ok := po.MaxQuantity[item.Description]; ok && *item.Quantity > cap {
				out = append(out, model.Discrepancy{
					Field:       prefix + ".quantity",
					IssueType:   model.SeverityCritical,
					Expected:    cap,
					Detected:    *item.Quantity,
					Confidence:  0.9,
					Suggestion:  "Quantity exceeds PO limit",
					BoundingBox: box,
				})
			}
		}

		if item.Quantity != nil && item.UnitPrice != nil && item.Total != nil {
			expected := float64(*item.Quantity) * *item.UnitPrice
			if math.Abs(expected-*item.Total) > lineTotalTolerance {
				out = append(out, model.Discrepancy{
					Field:       prefix + ".total",
					IssueType:   model.SeverityWarning,
					Expected:    math.Round(expected*100) / 100,
					Detected:    *item.Total,
					Confidence:  0.7,
					Suggestion:  "Line total mismatch",
					BoundingBox: box,
				})
			}
		}
	}
	return out
}
