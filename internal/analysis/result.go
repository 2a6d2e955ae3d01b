package analysis

import (
	"strings"
)

// Outcome is embedded in every summary. A summary whose columns are absent
// is not computed and carries a note explaining why.
type Outcome struct {
	Computed bool   `json:"computed"`
	Note     string `json:"note,omitempty"`
}

func computed() Outcome { return Outcome{Computed: true} }

func skipped(note string) Outcome { return Outcome{Note: note} }

// Count is a scalar summary.
type Count struct {
	Outcome
	Value int `json:"value"`
}

// GenderShare is one recognized gender token's slice of the individuals.
type GenderShare struct {
	Gender    string  `json:"gender"`
	Token     string  `json:"token"`
	Count     int     `json:"count"`
	Percent   float64 `json:"percent"`
	PeakYear  string  `json:"peak_year,omitempty"`
	PeakCount int     `json:"peak_count,omitempty"`
}

// GenderDistribution reports male and female shares over the individual
// count, plus per-gender peak years when a year column exists.
type GenderDistribution struct {
	Outcome
	Shares     []GenderShare `json:"shares,omitempty"`
	YearColumn string        `json:"year_column,omitempty"`
}

// RankEntry is a category with its distinct-family count.
type RankEntry struct {
	Key      string `json:"key"`
	Families int    `json:"families"`
}

// Ranking is a top-N list of categories by distinct families.
type Ranking struct {
	Outcome
	Dimension string      `json:"dimension"`
	Entries   []RankEntry `json:"entries,omitempty"`
}

// RitualList holds distinct ritual names in first-seen order.
type RitualList struct {
	Outcome
	Names []string `json:"names,omitempty"`
}

// Joined renders the names comma-separated.
func (r RitualList) Joined() string {
	return strings.Join(r.Names, ", ")
}

// MonthCount is one month's distinct-family count.
type MonthCount struct {
	Month    string `json:"month"`
	Families int    `json:"families"`
}

// Seasonality summarizes family recurrence by month. Distribution is in
// calendar order; Average is the existing month closest to the mean count.
type Seasonality struct {
	Outcome
	Distribution    []MonthCount `json:"distribution,omitempty"`
	MostActive      string       `json:"most_active,omitempty"`
	MostActiveCount int          `json:"most_active_count,omitempty"`
	Average         string       `json:"average,omitempty"`
	Mean            float64      `json:"mean,omitempty"`
}

// Result is the immutable output of one analysis run.
type Result struct {
	Individuals Count              `json:"individuals"`
	Families    Count              `json:"families"`
	Gender      GenderDistribution `json:"gender"`
	Villages    Ranking            `json:"villages"`
	Castes      Ranking            `json:"castes"`
	Years       Ranking            `json:"years"`
	Rituals     RitualList         `json:"rituals"`
	Seasonal    Seasonality        `json:"seasonal"`
	Repeated    Count              `json:"repeated"`
	Timeline    GroupTimeline      `json:"group_timeline"`
}
