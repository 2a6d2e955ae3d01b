package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vinodismyname/ritualstats/internal/normalize"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

const noData = "No data available."

// Appearance is a group's first and last recorded activity. Basis is
// "date" when ritual dates parsed and "year" when only bare years did.
type Appearance struct {
	Outcome
	Basis string `json:"basis,omitempty"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
}

// GroupSeasonality extends Seasonality with the share of the busiest month.
type GroupSeasonality struct {
	Seasonality
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// YearTimeline lists a group's distinct active years in ascending order
// and the year with the most raw records.
type YearTimeline struct {
	Outcome
	Years     []int `json:"years,omitempty"`
	PeakYear  int   `json:"peak_year,omitempty"`
	PeakCount int   `json:"peak_count,omitempty"`
}

// Joined renders the timeline as "1990 - 1995 - 2001".
func (y YearTimeline) Joined() string {
	parts := make([]string, len(y.Years))
	for i, yr := range y.Years {
		parts[i] = strconv.Itoa(yr)
	}
	return strings.Join(parts, " - ")
}

// FamilySize is measured on the group's most-repeated family only:
// individuals divided by distinct group ids, rounded half to even.
type FamilySize struct {
	Outcome
	FamilyID       string `json:"family_id,omitempty"`
	Records        int    `json:"records,omitempty"`
	Individuals    int    `json:"individuals,omitempty"`
	DistinctGroups int    `json:"distinct_groups,omitempty"`
	Average        int    `json:"average,omitempty"`
}

// Origin is the location recorded on the group's earliest record.
type Origin struct {
	Outcome
	Location string `json:"location,omitempty"`
	Column   string `json:"column,omitempty"`
	Seen     string `json:"seen,omitempty"`
}

// GroupTimeline reconstructs one merged family group's history.
type GroupTimeline struct {
	Outcome
	GroupID    string           `json:"group_id,omitempty"`
	Pinned     bool             `json:"pinned,omitempty"`
	FamilyIDs  []string         `json:"family_ids,omitempty"`
	Records    int              `json:"records"`
	Appearance Appearance       `json:"appearance"`
	Seasonal   GroupSeasonality `json:"seasonal"`
	Timeline   YearTimeline     `json:"timeline"`
	FamilySize FamilySize       `json:"family_size"`
	Origin     Origin           `json:"origin"`
}

// Unmatched reports a pinned group id that the mapped table does not carry.
func (g GroupTimeline) Unmatched() bool {
	return g.Pinned && !g.Computed
}

// CountRepeated counts distinct merged ids that carry the group prefix.
func CountRepeated(mapped *records.Table, res schema.Resolution, prefix string) Count {
	col, ok := res.Column(schema.MergedID)
	if !ok {
		return Count{Outcome: skipped(schema.NotFound(res.Missing(schema.MergedID), "repeated families"))}
	}
	seen := map[string]struct{}{}
	for i := 0; i < mapped.Len(); i++ {
		if id := mapped.Value(i, col); strings.HasPrefix(id, prefix) {
			seen[id] = struct{}{}
		}
	}
	return Count{Outcome: computed(), Value: len(seen)}
}

// SelectGroup returns the prefixed merged group with the most distinct
// family ids. Ties go to the smallest merged id.
func SelectGroup(mapped *records.Table, res schema.Resolution, prefix string) (string, []string, bool) {
	groups := groupFamilies(mapped, res, prefix)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ""
	for _, id := range ids {
		if best == "" || len(groups[id]) > len(groups[best]) {
			best = id
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, sortedKeys(groups[best]), true
}

func groupFamilies(mapped *records.Table, res schema.Resolution, prefix string) map[string]map[string]struct{} {
	mergedCol, _ := res.Column(schema.MergedID)
	familyCol, _ := res.Column(schema.FamilyID)
	groups := map[string]map[string]struct{}{}
	for i := 0; i < mapped.Len(); i++ {
		id := mapped.Value(i, mergedCol)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if groups[id] == nil {
			groups[id] = map[string]struct{}{}
		}
		if f := mapped.Value(i, familyCol); f != "" {
			groups[id][f] = struct{}{}
		}
	}
	return groups
}

// BuildTimeline selects a merged group (the most repeated one when groupID
// is empty) and runs every timeline step over its records. Steps that lack
// columns are skipped individually.
func BuildTimeline(mapped *records.Table, res schema.Resolution, prefix, groupID string) GroupTimeline {
	if !res.Has(schema.MergedID, schema.FamilyID) {
		return GroupTimeline{Outcome: skipped(schema.NotFound(res.Missing(schema.MergedID, schema.FamilyID), "most repeated family group insights"))}
	}

	var families []string
	pinned := groupID != ""
	if !pinned {
		id, fams, ok := SelectGroup(mapped, res, prefix)
		if !ok {
			return GroupTimeline{Outcome: skipped(fmt.Sprintf("No merged family groups with prefix %q found.", prefix))}
		}
		groupID, families = id, fams
	} else {
		fams, ok := groupFamilies(mapped, res, prefix)[groupID]
		if !ok {
			return GroupTimeline{Outcome: skipped(fmt.Sprintf("Merged family group %q not found.", groupID)), GroupID: groupID, Pinned: true}
		}
		families = sortedKeys(fams)
	}

	familyCol, _ := res.Column(schema.FamilyID)
	member := make(map[string]struct{}, len(families))
	for _, f := range families {
		member[f] = struct{}{}
	}
	rows := mapped.Filter(func(i int) bool {
		_, ok := member[mapped.Value(i, familyCol)]
		return ok
	})

	out := GroupTimeline{
		Outcome:   computed(),
		GroupID:   groupID,
		Pinned:    pinned,
		FamilyIDs: families,
		Records:   rows.Len(),
	}
	if rows.Len() == 0 {
		out.Appearance = Appearance{Outcome: skipped(noData)}
		out.Seasonal = GroupSeasonality{Seasonality: Seasonality{Outcome: skipped(noData)}}
		out.Timeline = YearTimeline{Outcome: skipped(noData)}
		out.FamilySize = FamilySize{Outcome: skipped(noData)}
		out.Origin = Origin{Outcome: skipped(noData)}
		return out
	}

	dates := resolveDates(rows, res)
	out.Appearance = appearance(rows, res, dates)
	out.Seasonal = groupSeasonal(rows, res, dates)
	out.Timeline = yearTimeline(rows, res, dates)
	out.FamilySize = familySize(rows, res)
	out.Origin = origin(rows, res, dates)
	return out
}

// datedRows holds parsed ritual dates; ok[i] is false for unparseable rows.
type datedRows struct {
	at    []time.Time
	ok    []bool
	valid int
}

func resolveDates(rows *records.Table, res schema.Resolution) datedRows {
	d := datedRows{at: make([]time.Time, rows.Len()), ok: make([]bool, rows.Len())}
	col, has := res.Column(schema.RitualDate)
	if !has {
		return d
	}
	for i := 0; i < rows.Len(); i++ {
		if t, ok := normalize.Date(rows.Raw(i, col)); ok {
			d.at[i], d.ok[i] = t, true
			d.valid++
		}
	}
	return d
}

// years returns the numeric year per row, and whether it parsed.
func years(rows *records.Table, res schema.Resolution) ([]int, []bool, int) {
	ys := make([]int, rows.Len())
	ok := make([]bool, rows.Len())
	n := 0
	col, has := res.Column(schema.Year)
	if !has {
		return ys, ok, 0
	}
	for i := 0; i < rows.Len(); i++ {
		if y, parsed := normalize.Year(rows.Raw(i, col)); parsed {
			ys[i], ok[i] = y, true
			n++
		}
	}
	return ys, ok, n
}

func appearance(rows *records.Table, res schema.Resolution, d datedRows) Appearance {
	if d.valid > 0 {
		first, last := -1, -1
		for i := range d.at {
			if !d.ok[i] {
				continue
			}
			if first < 0 || d.at[i].Before(d.at[first]) {
				first = i
			}
			if last < 0 || d.at[i].After(d.at[last]) {
				last = i
			}
		}
		return Appearance{
			Outcome: computed(),
			Basis:   "date",
			First:   normalize.FormatDate(d.at[first]),
			Last:    normalize.FormatDate(d.at[last]),
		}
	}
	ys, ok, n := years(rows, res)
	if n == 0 {
		return Appearance{Outcome: skipped(noData)}
	}
	lo, hi := math.MaxInt, math.MinInt
	for i, y := range ys {
		if !ok[i] {
			continue
		}
		lo, hi = min(lo, y), max(hi, y)
	}
	return Appearance{Outcome: computed(), Basis: "year", First: strconv.Itoa(lo), Last: strconv.Itoa(hi)}
}

func groupSeasonal(rows *records.Table, res schema.Resolution, d datedRows) GroupSeasonality {
	familyCol, _ := res.Column(schema.FamilyID)
	monthCol, hasMonth := res.Column(schema.Month)
	if d.valid == 0 && !hasMonth {
		return GroupSeasonality{Seasonality: Seasonality{Outcome: skipped("No valid date data available to calculate seasonal frequency.")}}
	}

	families := map[string]map[string]struct{}{}
	for i := 0; i < rows.Len(); i++ {
		var m string
		if d.valid > 0 {
			if !d.ok[i] {
				continue
			}
			m = d.at[i].Month().String()
		} else {
			var ok bool
			if m, ok = normalize.Month(rows.Raw(i, monthCol)); !ok {
				continue
			}
		}
		f := rows.Value(i, familyCol)
		if f == "" {
			continue
		}
		if families[m] == nil {
			families[m] = map[string]struct{}{}
		}
		families[m][f] = struct{}{}
	}
	counts := make(map[string]int, len(families))
	total := 0
	for m, fams := range families {
		counts[m] = len(fams)
		total += len(fams)
	}

	out := GroupSeasonality{Seasonality: summarizeMonths(counts), Total: total}
	if total > 0 {
		out.Percent = 100 * float64(out.MostActiveCount) / float64(total)
	}
	return out
}

func yearTimeline(rows *records.Table, res schema.Resolution, d datedRows) YearTimeline {
	counts := map[int]int{}
	if d.valid > 0 {
		for i, t := range d.at {
			if d.ok[i] {
				counts[t.Year()]++
			}
		}
	} else {
		ys, ok, _ := years(rows, res)
		for i, y := range ys {
			if ok[i] {
				counts[y]++
			}
		}
	}
	if len(counts) == 0 {
		return YearTimeline{Outcome: skipped("No valid year data available for timeline analysis.")}
	}

	out := YearTimeline{Outcome: computed()}
	for y := range counts {
		out.Years = append(out.Years, y)
	}
	sort.Ints(out.Years)
	for _, y := range out.Years {
		if counts[y] > out.PeakCount {
			out.PeakYear, out.PeakCount = y, counts[y]
		}
	}
	return out
}

func familySize(rows *records.Table, res schema.Resolution) FamilySize {
	familyCol, _ := res.Column(schema.FamilyID)
	indCol, hasInd := res.Column(schema.IndividualID)
	groupCol, hasGroup := res.Column(schema.GroupID)
	if !hasInd || !hasGroup {
		return FamilySize{Outcome: skipped(schema.NotFound(res.Missing(schema.IndividualID, schema.GroupID), "average family size"))}
	}

	counts := map[string]int{}
	for i := 0; i < rows.Len(); i++ {
		if f := rows.Value(i, familyCol); f != "" {
			counts[f]++
		}
	}
	ids := sortedKeys(counts)
	top := ""
	for _, id := range ids {
		if top == "" || counts[id] > counts[top] {
			top = id
		}
	}
	if top == "" {
		return FamilySize{Outcome: skipped("No family data available for calculation.")}
	}

	out := FamilySize{FamilyID: top, Records: counts[top]}
	groups := map[string]struct{}{}
	for i := 0; i < rows.Len(); i++ {
		if rows.Value(i, familyCol) != top {
			continue
		}
		if rows.Value(i, indCol) != "" {
			out.Individuals++
		}
		if g := rows.Value(i, groupCol); g != "" {
			groups[g] = struct{}{}
		}
	}
	out.DistinctGroups = len(groups)
	if out.DistinctGroups == 0 {
		out.Outcome = skipped("No valid Group IDs found for calculation.")
		return out
	}
	out.Outcome = computed()
	out.Average = int(math.RoundToEven(float64(out.Individuals) / float64(out.DistinctGroups)))
	return out
}

func origin(rows *records.Table, res schema.Resolution, d datedRows) Origin {
	earliest := -1
	seen := ""
	if d.valid > 0 {
		for i := range d.at {
			if d.ok[i] && (earliest < 0 || d.at[i].Before(d.at[earliest])) {
				earliest = i
			}
		}
		seen = normalize.FormatDate(d.at[earliest])
	} else {
		ys, ok, n := years(rows, res)
		if n > 0 {
			for i := range ys {
				if ok[i] && (earliest < 0 || ys[i] < ys[earliest]) {
					earliest = i
				}
			}
			seen = strconv.Itoa(ys[earliest])
		}
	}
	if earliest < 0 {
		return Origin{Outcome: skipped("No valid date data available to determine origin location.")}
	}
	for _, col := range schema.LocationCandidates {
		if v := rows.Value(earliest, col); v != "" {
			return Origin{Outcome: computed(), Location: v, Column: col, Seen: seen}
		}
	}
	return Origin{Outcome: skipped("Origin location not found in the data."), Seen: seen}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
