package analysis

import (
	"math"
	"sort"

	"github.com/vinodismyname/ritualstats/internal/normalize"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

// Seasonal counts distinct families per normalized month. Rows whose month
// is not recognized, or that have no group id, are left out.
func Seasonal(t *records.Table, res schema.Resolution) Seasonality {
	monthCol, ok1 := res.Column(schema.Month)
	groupCol, ok2 := res.Column(schema.GroupID)
	if !ok1 || !ok2 {
		return Seasonality{Outcome: skipped(schema.NotFound(res.Missing(schema.Month, schema.GroupID), "seasonal ritual trends"))}
	}

	families := map[string]map[string]struct{}{}
	for i := 0; i < t.Len(); i++ {
		m, ok := normalize.Month(t.Raw(i, monthCol))
		if !ok {
			continue
		}
		g := t.Value(i, groupCol)
		if g == "" {
			continue
		}
		if families[m] == nil {
			families[m] = map[string]struct{}{}
		}
		families[m][g] = struct{}{}
	}

	counts := make(map[string]int, len(families))
	for m, fams := range families {
		counts[m] = len(fams)
	}
	return summarizeMonths(counts)
}

// summarizeMonths picks the most active month and the month whose count is
// closest to the mean count. Both break ties by month name, alphabetically.
func summarizeMonths(counts map[string]int) Seasonality {
	if len(counts) == 0 {
		return Seasonality{Outcome: skipped("No valid month data available to calculate seasonal trends.")}
	}

	names := make([]string, 0, len(counts))
	total := 0
	for m, n := range counts {
		names = append(names, m)
		total += n
	}
	sort.Strings(names)

	out := Seasonality{Outcome: computed()}
	out.Mean = float64(total) / float64(len(counts))

	bestDev := math.Inf(1)
	for _, m := range names {
		if counts[m] > out.MostActiveCount {
			out.MostActive, out.MostActiveCount = m, counts[m]
		}
		if dev := math.Abs(float64(counts[m]) - out.Mean); dev < bestDev {
			out.Average, bestDev = m, dev
		}
	}

	calendar := make([]string, len(names))
	copy(calendar, names)
	sort.SliceStable(calendar, func(i, j int) bool {
		return normalize.MonthNumber(calendar[i]) < normalize.MonthNumber(calendar[j])
	})
	for _, m := range calendar {
		out.Distribution = append(out.Distribution, MonthCount{Month: m, Families: counts[m]})
	}
	return out
}
