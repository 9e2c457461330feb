package extract

import "regexp"

// Labels carries the fixed caption phrases and stop words that drive
// label-anchored extraction. Passed in explicitly so extraction is
// deterministic and testable with alternate vocabularies.
type Labels struct {
	Date     []string
	Due      []string
	PO       []string
	Subtotal []string
	Tax      []string
	Total    []string

	// TaxExclude filters lines that look like tax labels but are not
	// ("tax id").
	TaxExclude []string

	// StopWords terminate block capture when a line starts with one.
	StopWords []string

	// VendorStart and CustomerStart anchor party block capture.
	VendorStart    []string
	CustomerStart  []string
	VendorInline   []string
	CustomerInline []string

	// CustomerFallbackStart is the line offset for the customer
	// positional fallback window (vendor uses 0).
	CustomerFallbackStart int
}

// DefaultLabels returns the standard label vocabulary.
func DefaultLabels() Labels {
	return Labels{
		Date:       []string{"invoice date", "inv date", "date"},
		Due:        []string{"due date", "payment due", "due"},
		PO:         []string{"po number", "po#", "po", "p.o.", "purchase order", "order number"},
		Subtotal:   []string{"subtotal", "sub total"},
		Tax:        []string{"tax", "vat"},
		Total:      []string{"total due", "amount due", "balance due"},
		TaxExclude: []string{"tax id", "taxid"},
		StopWords: []string{
			"bill to", "billed to", "ship to", "sold to",
			"to", "from", "date", "due", "total", "subtotal",
			"tax", "amount", "po", "order",
		},
		VendorStart:           []string{"from", "seller"},
		CustomerStart:         []string{"to", "bill to", "billed to", "sold to"},
		VendorInline:          []string{"from"},
		CustomerInline:        []string{"sold to", "bill to", "billed to", "ship to", "to"},
		CustomerFallbackStart: 6,
	}
}

var companySuffixRe = regexp.MustCompile(`(?i)\b(inc|llc|ltd|co|company|corp|corporation)\b`)

// nameVocabTerms is financial/label vocabulary that disqualifies a
// recovered name.
var nameVocabTerms = []string{
	"invoice", "subtotal", "total", "amount", "tax", "date",
	"balance", "due", "customer",
}

// streetTerms marks address-looking lines for the name/address gates.
var streetTerms = []string{
	"street", "st", "road", "rd", "avenue", "ave", "drive", "dr",
	"lane", "ln", "suite", "ste", "way", "blvd",
}
