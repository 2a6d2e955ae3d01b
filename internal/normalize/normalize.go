// Package normalize canonicalizes header names and cell values read from
// ritual ledgers, including Hindi month names, day-first dates and year
// cells that spreadsheets tend to export as floats.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the only layout accepted for ritual dates once a localized
// month name has been replaced ("15 August 1990").
const DateLayout = "2 January 2006"

// DisplayLayout is used when reporting appearance dates.
const DisplayLayout = "02 January 2006"

// Months lists canonical month names in calendar order.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// hindiMonths is ordered so date substitution is deterministic. February
// appears twice: the ledgers use both the nukta and the plain spelling.
var hindiMonths = []struct {
	hindi   string
	english string
}{
	{"जनवरी", "January"},
	{"फ़रवरी", "February"},
	{"फरवरी", "February"},
	{"मार्च", "March"},
	{"अप्रैल", "April"},
	{"मई", "May"},
	{"जून", "June"},
	{"जुलाई", "July"},
	{"अगस्त", "August"},
	{"सितंबर", "September"},
	{"अक्टूबर", "October"},
	{"नवंबर", "November"},
	{"दिसंबर", "December"},
}

var (
	monthLookup = map[string]string{}
	monthIndex  = map[string]int{}
)

func init() {
	for _, m := range hindiMonths {
		monthLookup[nfc(m.hindi)] = m.english
	}
	for i, m := range Months {
		monthLookup[strings.ToLower(m)] = m
		monthIndex[m] = i + 1
	}
}

// Header trims surrounding whitespace from a column name.
func Header(s string) string {
	return strings.TrimSpace(s)
}

// Value prepares a cell for exact comparison: trimmed and NFC-normalized.
func Value(s string) string {
	return nfc(strings.TrimSpace(s))
}

// Month maps a localized or English month name to its canonical English
// form. Unknown values report false.
func Month(s string) (string, bool) {
	v := Value(s)
	if v == "" {
		return "", false
	}
	if m, ok := monthLookup[v]; ok {
		return m, true
	}
	m, ok := monthLookup[strings.ToLower(v)]
	return m, ok
}

// MonthNumber returns 1..12 for a canonical month name, 0 otherwise.
func MonthNumber(canonical string) int {
	return monthIndex[canonical]
}

// Date parses a ritual date such as "15 अगस्त 1990" or "15 August 1990".
// The first Hindi month name found is replaced before parsing.
func Date(s string) (time.Time, bool) {
	v := Value(s)
	if v == "" {
		return time.Time{}, false
	}
	for _, m := range hindiMonths {
		h := nfc(m.hindi)
		if strings.Contains(v, h) {
			v = strings.Replace(v, h, m.english, 1)
			break
		}
	}
	v = strings.Join(strings.Fields(v), " ")
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a date the way appearance dates are reported.
func FormatDate(t time.Time) string {
	return t.Format(DisplayLayout)
}

// Year coerces a year-like cell ("1990", "1990.0", " 1990 ") to an int.
func Year(s string) (int, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}

// YearKey returns the grouping key for a year cell: integral values lose
// their trailing ".0", anything else is kept as the trimmed text.
func YearKey(s string) string {
	if n, ok := Year(s); ok {
		return strconv.Itoa(n)
	}
	return Value(s)
}

// LessKey orders grouping keys numerically when both parse as numbers and
// lexicographically otherwise.
func LessKey(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		if fa != fb {
			return fa < fb
		}
	}
	return a < b
}

func nfc(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFC), s)
	if err != nil {
		return s
	}
	return out
}
