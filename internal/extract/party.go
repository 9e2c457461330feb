package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/invoice-audit/internal/model"
)

var (
	dateLikeRe = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	moneyRe    = regexp.MustCompile(`[$€£]\s*[\d,]+`)
)

// partyResult bundles a name and address recovered together.
type partyResult struct {
	name    *fieldResult
	address *fieldResult
}

// isNameCandidate gates lines that could plausibly be a company or
// person name: at least three letters, letters at least 30% of the
// line, not an address-looking line, and not digit heavy.
func isNameCandidate(text string) bool {
	letters := letterCount(text)
	digits := digitCount(text)
	total := len(text)
	if letters < 3 {
		return false
	}
	if total > 0 && float64(letters)/float64(total) < 0.3 {
		return false
	}
	if digits > 0 && containsStreetTerm(text) {
		return false
	}
	limit := letters / 2
	if limit < 2 {
		limit = 2
	}
	return digits <= limit
}

// isValidName is the stricter gate applied to a recovered name before
// accepting it: over-long lines, control characters, financial/label
// vocabulary, and street-address shapes all mean the extraction
// actually failed.
func isValidName(text string) bool {
	if text == "" || len(text) > 80 {
		return false
	}
	for _, r := range text {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	lower := strings.ToLower(text)
	for _, term := range nameVocabTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	if containsStreetTerm(text) && digitCount(text) > 0 {
		return false
	}
	return isNameCandidate(text)
}

func containsStreetTerm(text string) bool {
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,")
		for _, term := range streetTerms {
			if tok == term {
				return true
			}
		}
	}
	return false
}

// isAddressCandidate gates lines that look like postal address parts.
func isAddressCandidate(text string) bool {
	if text == "" {
		return false
	}
	if letterCount(text) < 3 {
		return false
	}
	if dateLikeRe.MatchString(text) {
		return false
	}
	if moneyRe.MatchString(text) {
		return false
	}
	if len(text) < 6 {
		return false
	}
	digits := digitCount(text)
	if digits >= 2 || strings.Contains(text, ",") {
		return true
	}
	trimmed := strings.TrimSpace(text)
	leadingDigit := trimmed != "" && trimmed[0] >= '0' && trimmed[0] <= '9'
	if digits >= 1 && (containsStreetTerm(text) || leadingDigit) {
		return true
	}
	return false
}

// pickName returns the first name-candidate line within the length
// limit, else the first line.
func pickName(texts []string) (string, bool) {
	for _, t := range texts {
		if isNameCandidate(t) && len(t) <= 80 {
			return t, true
		}
	}
	if len(texts) > 0 {
		return texts[0], true
	}
	return "", false
}

// extractBlock returns the lines after a start-keyword line, up to the
// first stop word.
func (e *Extractor) extractBlock(lines []model.Line, startKeywords []string) []model.Line {
	normStarts := e.normLabels(startKeywords)
	normStops := e.normLabels(e.labels.StopWords)
	for idx := range lines {
		if !startsWithAnyLabel(e.normLine(lines[idx].Text), normStarts) {
			continue
		}
		var block []model.Line
		for _, nxt := range lines[idx+1:] {
			if startsWithAnyLabel(e.normLine(nxt.Text), normStops) {
				break
			}
			block = append(block, nxt)
		}
		return block
	}
	return nil
}

// collectAddress gathers lines until a stop word.
func (e *Extractor) collectAddress(lines []model.Line) []model.Line {
	normStops := e.normLabels(e.labels.StopWords)
	var out []model.Line
	for _, nxt := range lines {
		if startsWithAnyLabel(e.normLine(nxt.Text), normStops) {
			break
		}
		out = append(out, nxt)
	}
	return out
}

// findCompanyLine returns the last line carrying a legal-entity suffix
// that also passes the name gate.
func findCompanyLine(lines []model.Line) *model.Line {
	for i := len(lines) - 1; i >= 0; i-- {
		if companySuffixRe.MatchString(lines[i].Text) && isNameCandidate(lines[i].Text) {
			return &lines[i]
		}
	}
	return nil
}

func joinAddress(lines []model.Line) (string, *float64, *model.BBox) {
	if len(lines) == 0 {
		return "", nil, nil
	}
	if len(lines) > 2 {
		lines = lines[:2]
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, ", "), model.AvgLineConf(lines), bboxOf(lines...)
}

func splitNameAddress(block []model.Line) partyResult {
	texts := make([]string, len(block))
	for i, l := range block {
		texts[i] = l.Text
	}
	name, ok := pickName(texts)
	if !ok {
		return partyResult{}
	}

	nameLine := block[0]
	var addressLines []model.Line
	for _, l := range block {
		if l.Text == name {
			nameLine = l
		} else {
			addressLines = append(addressLines, l)
		}
	}

	out := partyResult{
		name: &fieldResult{value: name, conf: nameLine.Confidence, bbox: bboxOf(nameLine)},
	}
	if addr, conf, box := joinAddress(addressLines); addr != "" {
		out.address = &fieldResult{value: addr, conf: conf, bbox: box}
	}
	return out
}

// extractParty runs the party cascade: inline label value, block
// capture, company-suffix line, then a positional window of lines
// starting at fallbackStart.
func (e *Extractor) extractParty(lines []model.Line, startKeywords, inlineLabels []string, fallbackStart int) partyResult {
	for idx := range lines {
		inline := inlineAfterLabel(lines[idx].Text, inlineLabels)
		if inline == "" {
			continue
		}
		if !isNameCandidate(inline) {
			break
		}
		addressLines := e.collectAddress(lines[idx+1:])
		out := partyResult{
			name: &fieldResult{value: inline, conf: lines[idx].Confidence, bbox: bboxOf(lines[idx])},
		}
		if addr, conf, box := joinAddress(addressLines); addr != "" {
			out.address = &fieldResult{value: addr, conf: conf, bbox: box}
		}
		return out
	}

	if block := e.extractBlock(lines, startKeywords); len(block) > 0 {
		return splitNameAddress(block)
	}

	if company := findCompanyLine(lines); company != nil {
		return partyResult{
			name: &fieldResult{value: company.Text, conf: company.Confidence, bbox: bboxOf(*company)},
		}
	}

	if fallbackStart >= len(lines) {
		return partyResult{}
	}
	end := fallbackStart + 4
	if end > len(lines) {
		end = len(lines)
	}
	window := lines[fallbackStart:end]
	if len(window) == 0 {
		return partyResult{}
	}
	return splitNameAddress(window)
}

// extractPartyFromLabelColumn recovers the customer block under a
// label line, bounded to the label's own column so a two-column layout
// does not bleed the right column into the address.
func (e *Extractor) extractPartyFromLabelColumn(lines []model.Line, labelLine *model.Line, labels []string) partyResult {
	if labelLine == nil {
		return partyResult{}
	}
	width := 0
	for _, l := range lines {
		if l.X2 > width {
			width = l.X2
		}
	}
	colWidth := int(float64(width) * 0.35)
	if colWidth < 200 {
		colWidth = 200
	}
	colRight := labelLine.X1 + colWidth

	labelCY := labelLine.CenterY()
	labelH := labelLine.Height()
	if labelH < 1 {
		labelH = 1
	}

	// Tighten the column edge to midway before any same-row line on
	// the right.
	rightX1 := -1
	for _, l := range lines {
		if l.X1 <= labelLine.X2 {
			continue
		}
		delta := l.CenterY() - labelCY
		if delta < 0 {
			delta = -delta
		}
		if delta > float64(labelH)*0.6 {
			continue
		}
		if rightX1 < 0 || l.X1 < rightX1 {
			rightX1 = l.X1
		}
	}
	if rightX1 >= 0 {
		if mid := (labelLine.X2 + rightX1) / 2; mid < colRight {
			colRight = mid
		}
	}

	var nameRes *fieldResult
	inline := inlineAfterLabel(labelLine.Text, labels)
	if inline != "" && isNameCandidate(inline) {
		nameRes = &fieldResult{value: inline, conf: labelLine.Confidence, bbox: bboxOf(*labelLine)}
	}

	minY := labelLine.Y1 + labelH/5
	maxY := labelLine.Y2 + labelH*5
	normStops := e.normLabels(e.labels.StopWords)
	var candidates []model.Line
	for _, l := range lines {
		if l.Y1 < minY || l.Y1 > maxY || l.X1 > colRight {
			continue
		}
		if startsWithAnyLabel(e.normLine(l.Text), normStops) {
			continue
		}
		candidates = append(candidates, l)
	}
	sortLinesTopLeft(candidates)

	if nameRes == nil && len(candidates) > 0 {
		nameLine := candidates[0]
		for _, l := range candidates {
			if isNameCandidate(l.Text) {
				nameLine = l
				break
			}
		}
		nameRes = &fieldResult{value: nameLine.Text, conf: nameLine.Confidence, bbox: bboxOf(nameLine)}
	}

	var addressLines []model.Line
	if nameRes != nil {
		nameText, _ := nameRes.value.(string)
		for _, l := range candidates {
			if l.Text == nameText {
				continue
			}
			if isAddressCandidate(l.Text) {
				addressLines = append(addressLines, l)
			}
			if len(addressLines) >= 2 {
				break
			}
		}
	}

	out := partyResult{name: nameRes}
	if addr, conf, box := joinAddress(addressLines); addr != "" {
		out.address = &fieldResult{value: addr, conf: conf, bbox: box}
	}
	return out
}

// findAddressInvoiceForLine matches the "Address ... Invoice for"
// header some templates use instead of a bill-to caption.
func (e *Extractor) findAddressInvoiceForLine(lines []model.Line) *model.Line {
	for i := range lines {
		norm := e.normLine(lines[i].Text)
		if strings.Contains(norm, "address") && strings.Contains(norm, "invoice for") {
			return &lines[i]
		}
	}
	return nil
}
