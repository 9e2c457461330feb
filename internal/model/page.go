package model

// Line is a physical text line produced by the OCR collaborator.
// Confidence is in [0,1]; nil means the engine reported none.
type Line struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"conf"`
	BBox
}

// LineConf returns the line's OCR confidence, or nil when unknown.
func (l Line) LineConf() *float64 {
	return l.Confidence
}

// Token is a single recognized word with its layout indices. Tokens are
// used only for secondary spatial searches; line-level extraction works
// on Line values.
type Token struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"conf"`
	BBox
	LineNum  int `json:"line_num"`
	BlockNum int `json:"block_num"`
	ParNum   int `json:"par_num"`
}

// Page is one rendered invoice page with its OCR output.
type Page struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Lines  []Line  `json:"lines"`
	Tokens []Token `json:"tokens"`
}

// RawInvoice is the full OCR collaborator output for one invoice.
type RawInvoice struct {
	RawText string `json:"raw_text"`
	Pages   []Page `json:"pages"`
}

// AvgLineConf averages the known confidences over a set of lines.
// Returns nil when no line carries a confidence.
func AvgLineConf(lines []Line) *float64 {
	var sum float64
	var n int
	for _, l := range lines {
		if l.Confidence != nil {
			sum += *l.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
