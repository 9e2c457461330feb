package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

var (
	itemNumberRe = regexp.MustCompile(`[-\d,.]+`)
	itemStripRe  = regexp.MustCompile(`[$€£]?[-\d,.]+`)
	bareIntRe    = regexp.MustCompile(`^\d+$`)
)

// parseItemLine reformats one table row into the canonical multi-line
// item text: description, then Qty / Price / Total as recovered. Rows
// with no parseable amount or no description are not items.
func parseItemLine(text string) (string, bool) {
	numbers := itemNumberRe.FindAllString(text, -1)
	var amounts []float64
	for _, n := range numbers {
		if a, ok := normalize.ParseAmount(n); ok {
			amounts = append(amounts, a)
		}
	}
	if len(amounts) == 0 {
		return "", false
	}

	qty := -1
	for _, n := range numbers {
		if bareIntRe.MatchString(n) {
			if v, err := strconv.Atoi(n); err == nil {
				qty = v
				break
			}
		}
	}
	total := amounts[len(amounts)-1]
	hasUnit := len(amounts) >= 2
	var unit float64
	if hasUnit {
		unit = amounts[len(amounts)-2]
	}

	desc := strings.TrimSpace(itemStripRe.ReplaceAllString(text, ""))
	if desc == "" {
		return "", false
	}

	parts := []string{desc}
	if qty >= 0 {
		parts = append(parts, fmt.Sprintf("Qty: %d", qty))
	}
	if hasUnit {
		parts = append(parts, fmt.Sprintf("Price: $%.2f", unit))
	}
	parts = append(parts, fmt.Sprintf("Total: $%.2f", total))
	return strings.Join(parts, "\n"), true
}

// extractLineItems walks the line-item table: it opens at a header
// line naming a quantity column and an amount column, and closes at
// the first totals row.
func (e *Extractor) extractLineItems(lines []model.Line) ([]model.RawLineItem, *float64, *model.BBox) {
	var items []model.RawLineItem
	var itemLines []model.Line
	inTable := false
	for _, line := range lines {
		norm := e.normLine(line.Text)
		if (strings.Contains(norm, "qty") || strings.Contains(norm, "quantity")) &&
			(strings.Contains(norm, "amount") || strings.Contains(norm, "total") || strings.Contains(norm, "price")) {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if strings.Contains(norm, "subtotal") || strings.Contains(norm, "sub total") ||
			strings.Contains(norm, "tax") || strings.Contains(norm, "total") {
			break
		}
		if text, ok := parseItemLine(line.Text); ok {
			items = append(items, model.RawLineItem{Text: text})
			itemLines = append(itemLines, line)
		}
	}
	if len(itemLines) == 0 {
		return items, nil, nil
	}
	return items, model.AvgLineConf(itemLines), bboxOf(itemLines...)
}
