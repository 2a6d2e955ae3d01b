// Package schema resolves logical ledger fields against the column names a
// given sheet actually carries. Sheets from different ledgers spell the same
// column differently, so every field has an ordered alias list.
package schema

import (
	"fmt"
	"strings"
)

// Field is a logical column the analysis knows how to use.
type Field string

const (
	IndividualID Field = "individual_id"
	GroupID      Field = "group_id"
	FamilyID     Field = "family_id"
	MergedID     Field = "merged_family_id"
	Gender       Field = "gender"
	Village      Field = "village"
	Caste        Field = "caste"
	Year         Field = "year"
	Month        Field = "month"
	RitualName   Field = "ritual_name"
	RitualDate   Field = "ritual_date"
)

// Aliases maps each field to its accepted column names, most canonical first.
var Aliases = map[Field][]string{
	IndividualID: {"Individual ID", "Individual Id", "IndividualID"},
	GroupID:      {"Group ID", "Group Id", "GroupID"},
	FamilyID:     {"Family Id", "Family ID", "FamilyID"},
	MergedID:     {"Final Merged Family Id", "Final Merged Family ID", "Merged Family Id"},
	Gender:       {"Gender", "gender"},
	Village:      {"Village/City", "Village", "City"},
	Caste:        {"Caste", "caste"},
	Year:         {"Year", "year", "Ritual Year", "RitualYear"},
	Month:        {"Month", "month"},
	RitualName:   {"Ritual Name 1", "Ritual Name", "Ritual"},
	RitualDate:   {"Date of Ritual", "Ritual Date", "Date"},
}

// LocationCandidates is scanned in order when inferring a group's origin;
// the first non-empty value wins.
var LocationCandidates = []string{"Village/City", "Village", "City", "Native Place", "Native"}

// Resolution records which alias, if any, each field resolved to.
type Resolution struct {
	columns map[Field]string
}

// Resolve matches trimmed headers against the alias table.
func Resolve(headers []string) Resolution {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = struct{}{}
	}
	r := Resolution{columns: map[Field]string{}}
	for f, aliases := range Aliases {
		for _, a := range aliases {
			if _, ok := present[a]; ok {
				r.columns[f] = a
				break
			}
		}
	}
	return r
}

// Column returns the resolved column name for f.
func (r Resolution) Column(f Field) (string, bool) {
	c, ok := r.columns[f]
	return c, ok
}

// Has reports whether every listed field resolved.
func (r Resolution) Has(fs ...Field) bool {
	for _, f := range fs {
		if _, ok := r.columns[f]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the canonical column names of the listed fields that did
// not resolve, in argument order.
func (r Resolution) Missing(fs ...Field) []string {
	var out []string
	for _, f := range fs {
		if _, ok := r.columns[f]; !ok {
			out = append(out, f.Canonical())
		}
	}
	return out
}

// Columns returns a copy of the field → column mapping.
func (r Resolution) Columns() map[Field]string {
	out := make(map[Field]string, len(r.columns))
	for f, c := range r.columns {
		out[f] = c
	}
	return out
}

// Canonical is the first alias, used in user-facing notes.
func (f Field) Canonical() string {
	if a := Aliases[f]; len(a) > 0 {
		return a[0]
	}
	return string(f)
}

// NotFound builds the placeholder reported in place of a computation whose
// columns are absent.
func NotFound(missing []string, what string) string {
	cols := strings.Join(missing, " column or ")
	return fmt.Sprintf("%s column not found; cannot compute %s.", cols, what)
}
