// Package report renders an analysis result as keyed text sections, builds
// the narration prompt for each, and writes the combined report as text or
// JSON.
package report

import (
	"fmt"
	"strings"

	"github.com/vinodismyname/ritualstats/internal/analysis"
)

// Keys lists report sections in output order.
var Keys = []string{
	"individuals", "families", "gender", "villages", "castes",
	"years", "rituals", "seasonal", "repeated", "group_timeline",
}

// Section is the raw summary text of one key. Computed is false when the
// summary is a placeholder note.
type Section struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Computed bool   `json:"computed"`
}

// Sections renders every summary of res in Keys order.
func Sections(res *analysis.Result) []Section {
	return []Section{
		countSection("individuals", "Total Individuals", res.Individuals),
		countSection("families", "Total Families", res.Families),
		{Key: "gender", Summary: Gender(res.Gender), Computed: res.Gender.Computed},
		{Key: "villages", Summary: Ranking("Top Villages :", res.Villages), Computed: res.Villages.Computed},
		{Key: "castes", Summary: Ranking("Top 5 Castes based on number of families:", res.Castes), Computed: res.Castes.Computed},
		{Key: "years", Summary: Ranking("Top Years :", res.Years), Computed: res.Years.Computed},
		{Key: "rituals", Summary: Rituals(res.Rituals), Computed: res.Rituals.Computed},
		{Key: "seasonal", Summary: Seasonal(res.Seasonal), Computed: res.Seasonal.Computed},
		countSection("repeated", "Repeated families", res.Repeated),
		{Key: "group_timeline", Summary: Timeline(res.Timeline), Computed: res.Timeline.Computed},
	}
}

func countSection(key, label string, c analysis.Count) Section {
	if !c.Computed {
		return Section{Key: key, Summary: c.Note}
	}
	return Section{Key: key, Summary: fmt.Sprintf("%s: %d", label, c.Value), Computed: true}
}

// Gender renders the distribution with two-decimal percentages.
func Gender(g analysis.GenderDistribution) string {
	if !g.Computed {
		return g.Note
	}
	var b strings.Builder
	b.WriteString("Gender Distribution :")
	labels := map[string]string{"male": "Males  ", "female": "Females"}
	for _, s := range g.Shares {
		fmt.Fprintf(&b, "\n  %s - %d | Percentage: %.2f%%", labels[s.Gender], s.Count, s.Percent)
		if s.PeakYear != "" {
			fmt.Fprintf(&b, "; Year with highest %s count: %s (%d %s)", s.Gender, s.PeakYear, s.PeakCount, s.Token)
		}
	}
	return b.String()
}

// Ranking renders "TopN : key (families)" lines under title.
func Ranking(title string, r analysis.Ranking) string {
	if !r.Computed {
		return r.Note
	}
	var b strings.Builder
	b.WriteString(title)
	for i, e := range r.Entries {
		fmt.Fprintf(&b, "\n  Top%d : %s (%d)", i+1, e.Key, e.Families)
	}
	return b.String()
}

// Rituals renders the distinct ritual list.
func Rituals(r analysis.RitualList) string {
	if !r.Computed {
		return r.Note
	}
	return "Unique Rituals are : " + r.Joined()
}

// Seasonal renders the busiest and average months.
func Seasonal(s analysis.Seasonality) string {
	if !s.Computed {
		return s.Note
	}
	return fmt.Sprintf("Seasonal Frequency: %s\nThe month that came as average is: %s", s.MostActive, s.Average)
}

const rule = "============================================================"

// Timeline renders the merged family group insight block.
func Timeline(gt analysis.GroupTimeline) string {
	if !gt.Computed {
		return gt.Note
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nMOST REPEATED FAMILY GROUP INSIGHTS\n%s\n", rule, rule)
	if gt.Pinned {
		fmt.Fprintf(&b, "Selected GROUP is %s with %d distinct families.\n", gt.GroupID, len(gt.FamilyIDs))
	} else {
		fmt.Fprintf(&b, "Most repeated GROUP is %s with %d distinct families.\n", gt.GroupID, len(gt.FamilyIDs))
	}
	fmt.Fprintf(&b, "Sample family IDs in group: %s\n", strings.Join(sample(gt.FamilyIDs, 5), ", "))
	fmt.Fprintf(&b, "Found %d records for these families in the mapped dataset\n", gt.Records)

	switch a := gt.Appearance; {
	case !a.Computed:
		b.WriteString(a.Note + "\n")
	case a.Basis == "year":
		fmt.Fprintf(&b, "First Appearance (Year): %s\nLast Appearance (Year): %s\n", a.First, a.Last)
	default:
		fmt.Fprintf(&b, "First Appearance: %s\nLast Appearance: %s\n", a.First, a.Last)
	}

	b.WriteString("\n")
	if s := gt.Seasonal; s.Computed {
		b.WriteString("Month distribution for this group:\n")
		for _, m := range s.Distribution {
			fmt.Fprintf(&b, "%s: %d\n", m.Month, m.Families)
		}
		fmt.Fprintf(&b, "Most common month for this group: %s (%d out of %d records, %.1f%%)\n",
			s.MostActive, s.MostActiveCount, s.Total, s.Percent)
		fmt.Fprintf(&b, "Seasonal Frequency: %s\nThe month that came as average is: %s\n", s.MostActive, s.Average)
	} else {
		b.WriteString(s.Note + "\n")
	}

	b.WriteString("\n")
	if y := gt.Timeline; y.Computed {
		fmt.Fprintf(&b, "Most appeared year: %d\nTimeline: %s\n", y.PeakYear, y.Joined())
	} else {
		b.WriteString(y.Note + "\n")
	}

	b.WriteString("\n")
	fs := gt.FamilySize
	switch {
	case fs.Computed:
		fmt.Fprintf(&b, "Total individuals in most repeated family: %d\nNumber of distinct Group IDs: %d\nAverage Family Size: %d\n",
			fs.Individuals, fs.DistinctGroups, fs.Average)
	default:
		b.WriteString(fs.Note + "\n")
	}

	b.WriteString("\n")
	if o := gt.Origin; o.Computed {
		fmt.Fprintf(&b, "Origin (Ancestral Location): %s\nFirst Appearance: %s", o.Location, o.Seen)
	} else {
		b.WriteString(o.Note)
	}
	return b.String()
}

func sample(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}
