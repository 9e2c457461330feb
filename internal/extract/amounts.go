package extract

import (
	"regexp"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

var (
	amountTokenRe = regexp.MustCompile(`[$€£]?\s*[\d,.()\-]+`)
	decimalRe     = regexp.MustCompile(`\d+[.,]\d{1,2}\b`)
)

// lastAmountInLine parses the right-most numeric-looking token on the
// line. Amount columns put the value last, after the caption.
func lastAmountInLine(text string) (float64, bool) {
	_, val, ok := lastAmountWithRaw(text)
	return val, ok
}

func lastAmountWithRaw(text string) (string, float64, bool) {
	candidates := amountTokenRe.FindAllString(text, -1)
	for i := len(candidates) - 1; i >= 0; i-- {
		if val, ok := normalize.ParseAmount(candidates[i]); ok {
			return candidates[i], val, true
		}
	}
	return "", 0, false
}

// extractAmount finds the first label line and takes its inline amount,
// falling back to the nearest right-neighbor line that parses as one.
func (e *Extractor) extractAmount(lines []model.Line, labels, excludeTerms []string) *fieldResult {
	normLabels := e.normLabels(labels)
	normExcludes := e.normLabels(excludeTerms)
	for i := range lines {
		line := &lines[i]
		norm := e.normLine(line.Text)
		if !containsAnyLabel(norm, normLabels) {
			continue
		}
		if containsAnyLabel(norm, normExcludes) {
			continue
		}
		if amt, ok := lastAmountInLine(line.Text); ok {
			return &fieldResult{value: amt, conf: line.Confidence, bbox: bboxOf(*line)}
		}
		neighbor := findRightNeighbor(lines, line, func(text string) bool {
			_, ok := lastAmountInLine(text)
			return ok
		})
		if neighbor != nil {
			if amt, ok := lastAmountInLine(neighbor.Text); ok {
				return &fieldResult{value: amt, conf: neighbor.Confidence, bbox: bboxOf(*neighbor)}
			}
		}
	}
	return nil
}

type amountCandidate struct {
	amount     float64
	conf       *float64
	bbox       *model.BBox
	hasDecimal bool
}

// amountCandidates gathers every label-matched line's trailing amount,
// remembering whether the raw token carried a decimal point.
func (e *Extractor) amountCandidates(lines []model.Line, labels, excludeTerms []string) []amountCandidate {
	normLabels := e.normLabels(labels)
	normExcludes := e.normLabels(excludeTerms)
	var out []amountCandidate
	for i := range lines {
		line := &lines[i]
		norm := e.normLine(line.Text)
		if !containsAnyLabel(norm, normLabels) {
			continue
		}
		if containsAnyLabel(norm, normExcludes) {
			continue
		}
		raw, amt, ok := lastAmountWithRaw(line.Text)
		if !ok {
			continue
		}
		out = append(out, amountCandidate{
			amount:     amt,
			conf:       line.Confidence,
			bbox:       bboxOf(*line),
			hasDecimal: decimalRe.MatchString(raw),
		})
	}
	return out
}

// pickBestAmount prefers higher confidence, then larger amount.
func pickBestAmount(candidates []amountCandidate) amountCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		bc, cc := 0.0, 0.0
		if best.conf != nil {
			bc = *best.conf
		}
		if c.conf != nil {
			cc = *c.conf
		}
		if cc > bc || (cc == bc && c.amount > best.amount) {
			best = c
		}
	}
	return best
}

// extractTotalAmount is the special-cased grand-total search: total
// captions excluding "subtotal", positive values only, candidates with
// a decimal point preferred. When no total-style caption matches, a
// looser bare "total" label is tried but accepted only with a decimal
// point in the raw token.
func (e *Extractor) extractTotalAmount(lines []model.Line) *fieldResult {
	candidates := e.amountCandidates(lines, e.labels.Total, e.labels.Subtotal)

	var positive, withDecimal []amountCandidate
	for _, c := range candidates {
		if c.amount > 0 {
			positive = append(positive, c)
			if c.hasDecimal {
				withDecimal = append(withDecimal, c)
			}
		}
	}
	pool := withDecimal
	if len(pool) == 0 {
		pool = positive
	}
	if len(pool) > 0 {
		chosen := pickBestAmount(pool)
		return &fieldResult{value: chosen.amount, conf: chosen.conf, bbox: chosen.bbox}
	}

	exclude := append(append([]string{}, e.labels.Subtotal...), e.labels.Tax...)
	fallback := e.amountCandidates(lines, []string{"total"}, exclude)
	var usable []amountCandidate
	for _, c := range fallback {
		if c.amount > 0 && c.hasDecimal {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil
	}
	chosen := pickBestAmount(usable)
	return &fieldResult{value: chosen.amount, conf: chosen.conf, bbox: chosen.bbox}
}
