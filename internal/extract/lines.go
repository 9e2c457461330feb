package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/invoice-audit/internal/model"
)

// normLine folds OCR-confusable characters before text normalization
// so label matching tolerates 0/O and 1/I swaps inside captions.
func (e *Extractor) normLine(text string) string {
	return e.norm.Text(e.norm.Confusable(text))
}

func (e *Extractor) normLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = e.normLine(l)
	}
	return out
}

func containsAnyLabel(norm string, normLabels []string) bool {
	for _, l := range normLabels {
		if strings.Contains(norm, l) {
			return true
		}
	}
	return false
}

// startsWithLabel matches a normalized label at the start of a
// normalized line, followed by a word boundary.
func startsWithLabel(norm, label string) bool {
	if !strings.HasPrefix(norm, label) {
		return false
	}
	rest := norm[len(label):]
	return rest == "" || rest[0] == ' ' || rest[0] == ':'
}

func startsWithAnyLabel(norm string, labels []string) bool {
	for _, l := range labels {
		if startsWithLabel(norm, l) {
			return true
		}
	}
	return false
}

// findLine returns the first line in document order whose normalized
// text contains any of the labels.
func (e *Extractor) findLine(lines []model.Line, labels []string) *model.Line {
	normLabels := e.normLabels(labels)
	for i := range lines {
		if containsAnyLabel(e.normLine(lines[i].Text), normLabels) {
			return &lines[i]
		}
	}
	return nil
}

// findLabelLine returns the left-most, top-most line that starts with
// one of the labels.
func (e *Extractor) findLabelLine(lines []model.Line, labels []string) *model.Line {
	normLabels := e.normLabels(labels)
	var candidates []*model.Line
	for i := range lines {
		if startsWithAnyLabel(e.normLine(lines[i].Text), normLabels) {
			candidates = append(candidates, &lines[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].X1 != candidates[j].X1 {
			return candidates[i].X1 < candidates[j].X1
		}
		return candidates[i].Y1 < candidates[j].Y1
	})
	return candidates[0]
}

// findRightNeighbor searches lines whose left edge sits right of the
// label line and whose vertical center falls within the tolerance
// window: at least 12px, or 80% of the label line's height. The
// closest line vertically wins; ties break on higher OCR confidence.
func findRightNeighbor(lines []model.Line, label *model.Line, predicate func(string) bool) *model.Line {
	labelCY := label.CenterY()
	labelH := label.Height()
	if labelH < 1 {
		labelH = 1
	}
	maxDelta := float64(labelH) * 0.8
	if maxDelta < 12 {
		maxDelta = 12
	}

	var best *model.Line
	var bestDelta float64
	var bestConf float64
	for i := range lines {
		line := &lines[i]
		if line == label {
			continue
		}
		if line.X1 <= label.X2+10 {
			continue
		}
		delta := line.CenterY() - labelCY
		if delta < 0 {
			delta = -delta
		}
		if delta > maxDelta {
			continue
		}
		if !predicate(line.Text) {
			continue
		}
		conf := 0.0
		if line.Confidence != nil {
			conf = *line.Confidence
		}
		if best == nil || delta < bestDelta || (delta == bestDelta && conf > bestConf) {
			best, bestDelta, bestConf = line, delta, conf
		}
	}
	return best
}

// bboxOf unions line boxes; nil for no lines.
func bboxOf(lines ...model.Line) *model.BBox {
	boxes := make([]model.BBox, len(lines))
	for i, l := range lines {
		boxes[i] = l.BBox
	}
	return model.UnionBoxes(boxes)
}

// inlineAfterLabel strips a leading label and separator from a line and
// returns the remainder.
func inlineAfterLabel(text string, labels []string) string {
	for _, label := range labels {
		re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(label) + `\s*:?\s*(.+)$`)
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			n++
		}
	}
	return n
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if '0' <= r && r <= '9' {
			n++
		}
	}
	return n
}

func sortLinesTopLeft(lines []model.Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Y1 != lines[j].Y1 {
			return lines[i].Y1 < lines[j].Y1
		}
		return lines[i].X1 < lines[j].X1
	})
}
