package analysis

import (
	"sort"

	"github.com/vinodismyname/ritualstats/internal/normalize"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

// CountIndividuals counts rows with a non-empty individual identifier.
func CountIndividuals(t *records.Table, res schema.Resolution) Count {
	col, ok := res.Column(schema.IndividualID)
	if !ok {
		return Count{Outcome: skipped(schema.NotFound(res.Missing(schema.IndividualID), "total individuals"))}
	}
	n := 0
	for i := 0; i < t.Len(); i++ {
		if t.Value(i, col) != "" {
			n++
		}
	}
	return Count{Outcome: computed(), Value: n}
}

// CountFamilies counts distinct non-empty group identifiers.
func CountFamilies(t *records.Table, res schema.Resolution) Count {
	col, ok := res.Column(schema.GroupID)
	if !ok {
		return Count{Outcome: skipped(schema.NotFound(res.Missing(schema.GroupID), "total families"))}
	}
	seen := map[string]struct{}{}
	for i := 0; i < t.Len(); i++ {
		if g := t.Value(i, col); g != "" {
			seen[g] = struct{}{}
		}
	}
	return Count{Outcome: computed(), Value: len(seen)}
}

// Genders computes male/female counts and percentages over individuals.
// When the individual column is present only rows with an id are counted,
// so the shares never exceed the individual total. Percentages are 0 when
// there are no individuals.
func Genders(t *records.Table, res schema.Resolution, individuals int) GenderDistribution {
	col, ok := res.Column(schema.Gender)
	if !ok {
		return GenderDistribution{Outcome: skipped(schema.NotFound(res.Missing(schema.Gender), "gender distribution"))}
	}
	yearCol, hasYear := res.Column(schema.Year)
	idCol, hasID := res.Column(schema.IndividualID)

	genders := []normalize.Gender{normalize.GenderMale, normalize.GenderFemale}
	counts := map[normalize.Gender]int{}
	byYear := map[normalize.Gender]map[string]int{}
	for _, g := range genders {
		byYear[g] = map[string]int{}
	}
	for i := 0; i < t.Len(); i++ {
		if hasID && t.Value(i, idCol) == "" {
			continue
		}
		g := normalize.ParseGender(t.Raw(i, col))
		if g == normalize.GenderUnknown {
			continue
		}
		counts[g]++
		if hasYear {
			if y := normalize.YearKey(t.Raw(i, yearCol)); y != "" {
				byYear[g][y]++
			}
		}
	}

	out := GenderDistribution{Outcome: computed()}
	if hasYear {
		out.YearColumn = yearCol
	}
	for _, g := range genders {
		share := GenderShare{Gender: g.String(), Token: g.Token(), Count: counts[g]}
		if individuals > 0 {
			share.Percent = 100 * float64(counts[g]) / float64(individuals)
		}
		if hasYear {
			share.PeakYear, share.PeakCount = peak(byYear[g])
		}
		out.Shares = append(out.Shares, share)
	}
	return out
}

// Rank builds a top-N ranking of field values by distinct families.
// Families are deduplicated to their first row; when perValue is set a
// family counts once per distinct value instead (used for years).
// Ties are ordered by key ascending.
func Rank(t *records.Table, res schema.Resolution, field schema.Field, what string, perValue bool, topN int) Ranking {
	keyCol, ok1 := res.Column(field)
	groupCol, ok2 := res.Column(schema.GroupID)
	if !ok1 || !ok2 {
		return Ranking{Dimension: field.Canonical(), Outcome: skipped(schema.NotFound(res.Missing(field, schema.GroupID), what))}
	}

	type pair struct{ group, key string }
	seenGroup := map[string]struct{}{}
	seenPair := map[pair]struct{}{}
	families := map[string]map[string]struct{}{}

	for i := 0; i < t.Len(); i++ {
		g := t.Value(i, groupCol)
		if g == "" {
			continue
		}
		key := t.Value(i, keyCol)
		if field == schema.Year {
			key = normalize.YearKey(t.Raw(i, keyCol))
		}
		if perValue {
			p := pair{g, key}
			if _, dup := seenPair[p]; dup {
				continue
			}
			seenPair[p] = struct{}{}
		} else {
			if _, dup := seenGroup[g]; dup {
				continue
			}
			seenGroup[g] = struct{}{}
		}
		if key == "" {
			continue
		}
		if families[key] == nil {
			families[key] = map[string]struct{}{}
		}
		families[key][g] = struct{}{}
	}

	entries := make([]RankEntry, 0, len(families))
	for k, fams := range families {
		entries = append(entries, RankEntry{Key: k, Families: len(fams)})
	}
	sortEntries(entries)
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return Ranking{Outcome: computed(), Dimension: keyCol, Entries: entries}
}

// UniqueRituals lists distinct ritual names in the order first seen.
func UniqueRituals(t *records.Table, res schema.Resolution) RitualList {
	col, ok := res.Column(schema.RitualName)
	if !ok {
		return RitualList{Outcome: skipped(schema.NotFound(res.Missing(schema.RitualName), "unique rituals"))}
	}
	seen := map[string]struct{}{}
	out := RitualList{Outcome: computed()}
	for i := 0; i < t.Len(); i++ {
		v := t.Value(i, col)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out.Names = append(out.Names, v)
	}
	return out
}

func sortEntries(entries []RankEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Families != entries[j].Families {
			return entries[i].Families > entries[j].Families
		}
		return normalize.LessKey(entries[i].Key, entries[j].Key)
	})
}

// peak returns the key with the highest count; ties go to the key that
// sorts first.
func peak(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return normalize.LessKey(keys[i], keys[j]) })
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best, bestN
}
