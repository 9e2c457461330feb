package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Explicit formats tried in order before any fuzzy parsing. The
// non-padded layouts accept both "02/03/2024" and "2/3/2024".
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"1-2-2006",
	"2.1.2006",
	"2006.1.2",
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	eightDigitRe   = regexp.MustCompile(`^\d{8}$`)
	monthDayYearRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*,?\s+(\d{4})\b`)
	dayMonthYearRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\.?\s*,?\s+(\d{4})\b`)
	numericDateRe  = regexp.MustCompile(`\b(\d{1,4})[/.-](\d{1,2})[/.-](\d{1,4})\b`)
)

// ParseDate converts a date-like value into a calendar date. String
// inputs try bare 8-digit forms (YYYYMMDD then DDMMYYYY), then a fixed
// list of explicit formats, then a fuzzy scan attempted month-first and
// day-first; the first parse with year in [1900,2100] wins. Returns
// (zero, false) rather than an error on empty or unparseable input.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, true
	case string:
		return parseDateString(x)
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	text := strings.TrimSpace(s)
	if text == "" {
		return time.Time{}, false
	}

	if eightDigitRe.MatchString(text) {
		if year, _ := strconv.Atoi(text[:4]); year >= 1900 {
			if t, err := time.Parse("20060102", text); err == nil {
				return t, true
			}
		}
		if t, err := time.Parse("02012006", text); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}

	for _, dayFirst := range []bool{false, true} {
		if t, ok := fuzzyParse(text, dayFirst); ok && t.Year() >= 1900 && t.Year() <= 2100 {
			return t, true
		}
	}
	return time.Time{}, false
}

// fuzzyParse scans text for an embedded date. Month-name forms are
// unambiguous; bare numeric forms honor the dayFirst preference.
func fuzzyParse(text string, dayFirst bool) (time.Time, bool) {
	if m := monthDayYearRe.FindStringSubmatch(text); m != nil {
		month := monthNames[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return makeDate(year, month, day)
	}
	if m := dayMonthYearRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthNames[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])
		return makeDate(year, month, day)
	}
	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])
		switch {
		case len(m[1]) == 4:
			// Year first: YYYY-a/b.
			return makeDate(a, time.Month(b), c)
		case len(m[3]) == 4 && dayFirst:
			if t, ok := makeDate(c, time.Month(b), a); ok {
				return t, true
			}
			return makeDate(c, time.Month(a), b)
		case len(m[3]) == 4:
			if t, ok := makeDate(c, time.Month(a), b); ok {
				return t, true
			}
			return makeDate(c, time.Month(b), a)
		}
	}
	return time.Time{}, false
}

// makeDate builds a date and rejects component overflow, e.g. month 14
// or day 32, which time.Date would silently normalize.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween returns the absolute whole-day difference between two
// dates.
func DaysBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
