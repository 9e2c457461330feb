package extract

import (
	"regexp"

	"github.com/sells-group/invoice-audit/internal/model"
)

var idTokenRe = regexp.MustCompile(`[A-Z0-9][A-Z0-9\-]+`)

// pickIDToken prefers tokens that contain at least one digit over
// pure-letter tokens; among those, the last on the line wins since the
// caption precedes the value.
func pickIDToken(text string) (string, bool) {
	tokens := idTokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return "", false
	}
	var withDigits []string
	for _, t := range tokens {
		if digitCount(t) > 0 {
			withDigits = append(withDigits, t)
		}
	}
	if len(withDigits) > 0 {
		return withDigits[len(withDigits)-1], true
	}
	return tokens[len(tokens)-1], true
}

// extractPO finds the purchase-order number on or next to its label
// line.
func (e *Extractor) extractPO(lines []model.Line) *fieldResult {
	line := e.findLine(lines, e.labels.PO)
	if line == nil {
		return nil
	}
	if value, ok := pickIDToken(line.Text); ok {
		return &fieldResult{value: value, conf: line.Confidence, bbox: bboxOf(*line)}
	}
	neighbor := findRightNeighbor(lines, line, func(text string) bool {
		return idTokenRe.MatchString(text) && digitCount(text) > 0
	})
	if neighbor != nil {
		if value, ok := pickIDToken(neighbor.Text); ok {
			return &fieldResult{value: value, conf: neighbor.Confidence, bbox: bboxOf(*neighbor)}
		}
	}
	return nil
}
