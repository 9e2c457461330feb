// Package normalize canonicalizes the noisy strings, amounts, and dates
// that come out of invoice OCR so that downstream matching and
// validation compare like with like. All functions are pure.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tables holds the fixed lookup maps used during normalization. They
// are plain data so callers can inject variants in tests; production
// code uses DefaultTables.
type Tables struct {
	// Confusable maps visually-ambiguous OCR characters to one
	// canonical representative per class (0/O, 1/I/L, 5/S, 8/B).
	Confusable map[rune]rune
	// AddressAbbrev canonicalizes street-type tokens ("street" -> "st").
	AddressAbbrev map[string]string
	// CompanySuffix canonicalizes trailing legal-entity tokens
	// ("incorporated" -> "inc").
	CompanySuffix map[string]string
}

// DefaultTables returns the standard lookup tables.
func DefaultTables() Tables {
	return Tables{
		Confusable: map[rune]rune{
			'0': 'O', 'O': 'O',
			'1': 'I', 'I': 'I', 'L': 'I', 'l': 'I',
			'5': 'S', 'S': 'S',
			'8': 'B', 'B': 'B',
		},
		AddressAbbrev: map[string]string{
			"drive": "dr", "dr.": "dr",
			"street": "st", "st.": "st",
			"avenue": "ave", "ave.": "ave",
			"road": "rd", "rd.": "rd",
			"boulevard": "blvd", "blvd.": "blvd",
			"lane": "ln", "ln.": "ln",
			"suite": "ste", "ste.": "ste",
		},
		CompanySuffix: map[string]string{
			"inc": "inc", "inc.": "inc", "incorporated": "inc",
			"llc": "llc", "l.l.c.": "llc",
			"ltd": "ltd", "ltd.": "ltd",
			"co": "co", "co.": "co", "company": "co",
		},
	}
}

// Normalizer applies the lookup tables. The zero value is not usable;
// construct with New.
type Normalizer struct {
	tables Tables
}

// New returns a Normalizer over the given tables.
func New(tables Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// Default returns a Normalizer over DefaultTables.
func Default() *Normalizer {
	return New(DefaultTables())
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Text lowercases, folds diacritics, strips non-alphanumeric
// characters, and collapses whitespace. It is the base form used for
// label matching and fuzzy comparison.
func (n *Normalizer) Text(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(diacriticStripper, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CompanySuffix normalizes text and canonicalizes a trailing
// legal-entity suffix token.
func (n *Normalizer) CompanySuffix(s string) string {
	s = n.Text(s)
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return s
	}
	last := parts[len(parts)-1]
	if canon, ok := n.tables.CompanySuffix[last]; ok {
		parts[len(parts)-1] = canon
	}
	return strings.Join(parts, " ")
}

// Address normalizes text and canonicalizes street-type abbreviations
// token by token.
func (n *Normalizer) Address(s string) string {
	s = n.Text(s)
	parts := strings.Fields(s)
	for i, tok := range parts {
		if canon, ok := n.tables.AddressAbbrev[tok]; ok {
			parts[i] = canon
		}
	}
	return strings.Join(parts, " ")
}

// Confusable maps each character through the OCR-confusable table,
// leaving unmapped characters untouched. Used only for ID-like fields
// where exact-looking mismatches are usually OCR artifacts.
func (n *Normalizer) Confusable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if canon, ok := n.tables.Confusable[r]; ok {
			b.WriteRune(canon)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
