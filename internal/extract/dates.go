package extract

import (
	"regexp"
	"time"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

var dateTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)\w*\s+\d{1,2},\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)\w*\s+\d{4}\b`),
}

// parseDateFromText scans for an embedded date pattern and parses it,
// falling back to parsing the whole string. Years outside [1900,2100]
// are rejected as OCR noise.
func parseDateFromText(text string) (string, bool) {
	for _, pattern := range dateTextPatterns {
		if m := pattern.FindString(text); m != "" {
			if t, ok := normalize.ParseDate(m); ok && inYearRange(t) {
				return t.Format("2006-01-02"), true
			}
		}
	}
	if t, ok := normalize.ParseDate(text); ok && inYearRange(t) {
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func inYearRange(t time.Time) bool {
	return t.Year() >= 1900 && t.Year() <= 2100
}

// extractDate resolves a date field from its label line: inline value
// after the caption, then anywhere on the line, then the nearest
// right-neighbor that parses as a date.
func (e *Extractor) extractDate(lines []model.Line, labels, excludeTerms []string) *fieldResult {
	line := e.findLine(lines, labels)
	if line == nil {
		return nil
	}
	norm := e.normLine(line.Text)
	if containsAnyLabel(norm, e.normLabels(excludeTerms)) {
		return nil
	}

	if raw := inlineAfterLabel(line.Text, labels); raw != "" {
		if parsed, ok := parseDateFromText(raw); ok {
			return &fieldResult{value: parsed, conf: line.Confidence, bbox: bboxOf(*line)}
		}
	}
	if parsed, ok := parseDateFromText(line.Text); ok {
		return &fieldResult{value: parsed, conf: line.Confidence, bbox: bboxOf(*line)}
	}

	neighbor := findRightNeighbor(lines, line, func(text string) bool {
		_, ok := parseDateFromText(text)
		return ok
	})
	if neighbor != nil {
		if parsed, ok := parseDateFromText(neighbor.Text); ok {
			return &fieldResult{value: parsed, conf: neighbor.Confidence, bbox: bboxOf(*neighbor)}
		}
	}
	return nil
}
