package model

// Severity tiers a discrepancy by how strongly it should block
// auto-approval. Each tier carries a fixed confidence penalty.
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityWarning       Severity = "warning"
	SeverityInformational Severity = "informational"
)

// Status is the terminal outcome of validating one invoice.
type Status string

const (
	StatusApproved    Status = "approved"
	StatusNeedsReview Status = "needs_review"
	StatusRejected    Status = "rejected"
)

// Discrepancy records one detected mismatch between an extracted value
// and its expected value. Field is a FieldKey, or a
// "line_items[i].<subfield>" key for per-item findings.
type Discrepancy struct {
	Field       string   `json:"field"`
	IssueType   Severity `json:"issue_type"`
	Expected    any      `json:"expected"`
	Detected    any      `json:"detected"`
	Confidence  float64  `json:"confidence"`
	Suggestion  string   `json:"suggestion,omitempty"`
	BoundingBox *BBox    `json:"bounding_box,omitempty"`
}

// FuzzyDetail records the winning fuzzy similarity for one field.
type FuzzyDetail struct {
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// AmountDetail records absolute and relative amount differences.
type AmountDetail struct {
	Abs float64 `json:"abs"`
	Rel float64 `json:"rel"`
}

// TaxRateDetail records the PO tax-rate cross-check inputs.
type TaxRateDetail struct {
	TaxRate     float64 `json:"tax_rate"`
	ExpectedTax float64 `json:"expected_tax"`
}

// ValidationDetails carries diagnostic breakdowns for audit and
// debugging. Nothing here feeds the decision beyond what is already
// folded into the confidence score.
type ValidationDetails struct {
	FuzzyScores     map[FieldKey]FuzzyDetail  `json:"fuzzy_scores"`
	AmountDiffs     map[FieldKey]AmountDetail `json:"amount_diffs"`
	DateDiffs       map[FieldKey]int          `json:"date_diffs"`
	ReferenceUsed   map[FieldKey]string       `json:"reference_used"`
	TaxRateCheck    *TaxRateDetail            `json:"tax_rate_check,omitempty"`
	ParsedLineItems []LineItem                `json:"parsed_line_items,omitempty"`
	FieldScores     map[FieldKey]float64      `json:"field_scores"`
	PWrongByField   map[FieldKey]float64      `json:"p_wrong_by_field"`
	BaseScore       float64                   `json:"base_score"`
	Penalty         float64                   `json:"penalty"`
}

// Result is the outcome of one invoice validation pass.
type Result struct {
	Status            Status            `json:"status"`
	ConfidenceScore   float64           `json:"confidence_score"`
	Discrepancies     []Discrepancy     `json:"discrepancies"`
	ValidationDetails ValidationDetails `json:"validation_details"`
}

// HasSeverity reports whether any discrepancy carries the severity.
func (r *Result) HasSeverity(sev Severity) bool {
	for _, d := range r.Discrepancies {
		if d.IssueType == sev {
			return true
		}
	}
	return false
}
