package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountCharsRe  = regexp.MustCompile(`[^0-9,.\-]`)
	commaCentsRe   = regexp.MustCompile(`,\d{2}$`)
	dotCentsRe     = regexp.MustCompile(`\.\d{2}$`)
	dotThousandsRe = regexp.MustCompile(`\.\d{3}$`)
)

// ParseAmount converts a numeric or string value to a float amount.
// String inputs tolerate currency symbols, parenthesized negatives, and
// thousands separators in either comma or dot convention. Returns
// (0, false) on empty or unparseable input.
func ParseAmount(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		return parseAmountString(x)
	default:
		return 0, false
	}
}

func parseAmountString(s string) (float64, bool) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		negative = true
		text = text[1 : len(text)-1]
	}
	text = strings.ReplaceAll(text, " ", "")
	text = amountCharsRe.ReplaceAllString(text, "")
	switch text {
	case "", "-", ".", ",":
		return 0, false
	}
	if strings.HasPrefix(text, "-") {
		negative = true
		text = text[1:]
	}

	hasComma := strings.Contains(text, ",")
	hasDot := strings.Contains(text, ".")
	switch {
	case hasComma && hasDot:
		// The later-occurring separator is the decimal point.
		if strings.LastIndex(text, ",") > strings.LastIndex(text, ".") {
			text = strings.ReplaceAll(text, ".", "")
			text = strings.ReplaceAll(text, ",", ".")
		} else {
			text = strings.ReplaceAll(text, ",", "")
		}
	case hasComma:
		// A comma is decimal only when followed by exactly two
		// trailing digits, else it is a thousands separator.
		if commaCentsRe.MatchString(text) {
			text = strings.ReplaceAll(text, ".", "")
			text = strings.ReplaceAll(text, ",", ".")
		} else {
			text = strings.ReplaceAll(text, ",", "")
		}
	case hasDot:
		if strings.Count(text, ".") > 1 {
			text = strings.ReplaceAll(text, ".", "")
		} else if dotCentsRe.MatchString(text) {
			// keep as decimal
		} else if dotThousandsRe.MatchString(text) && len(text[:strings.Index(text, ".")]) <= 3 {
			// Ambiguous European thousands format: 1.234 -> 1234.
			text = strings.ReplaceAll(text, ".", "")
		}
	}

	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		return -val, true
	}
	return val, true
}

// SafeInt converts a numeric or digit-string value to an int. Returns
// (0, false) when conversion is impossible.
func SafeInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
