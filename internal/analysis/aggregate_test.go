package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

func primaryTable() *records.Table {
	return records.NewTable(
		[]string{"Individual ID", "Group ID", "Gender", "Caste", "Year", "Month", "Ritual Name 1"},
		[][]string{
			{"A", "F1", "पुरुष", "Jat", "1990", "January", "Mundan"},
			{"B", "F1", "महिला", "Jat", "1990", "जनवरी", "Mundan"},
			{"C", "F1", "पुरुष ", "Meena", "1991.0", "February", "Janeu"},
		},
	)
}

func TestAnalyze_GenderShares(t *testing.T) {
	out := Analyze(primaryTable(), nil, Options{})

	require.True(t, out.Individuals.Computed)
	require.Equal(t, 3, out.Individuals.Value)
	require.Equal(t, 1, out.Families.Value)

	require.True(t, out.Gender.Computed)
	require.Len(t, out.Gender.Shares, 2)
	male, female := out.Gender.Shares[0], out.Gender.Shares[1]
	require.Equal(t, "male", male.Gender)
	require.Equal(t, 2, male.Count)
	require.InDelta(t, 66.67, male.Percent, 0.01)
	require.Equal(t, 1, female.Count)
	require.InDelta(t, 33.33, female.Percent, 0.01)

	// 1990 and 1991 tie for men; the earlier year wins
	require.Equal(t, "1990", male.PeakYear)
	require.Equal(t, 1, male.PeakCount)
	require.Equal(t, "Year", out.Gender.YearColumn)
}

func TestAnalyze_MissingVillageDoesNotStopOthers(t *testing.T) {
	out := Analyze(primaryTable(), nil, Options{})

	require.False(t, out.Villages.Computed)
	require.Contains(t, out.Villages.Note, "not found")
	require.Equal(t, "Village/City column not found; cannot compute top villages.", out.Villages.Note)

	require.True(t, out.Castes.Computed)
	// first row per family decides the caste
	require.Equal(t, []RankEntry{{Key: "Jat", Families: 1}}, out.Castes.Entries)

	require.True(t, out.Years.Computed)
	require.Equal(t, []RankEntry{{Key: "1990", Families: 1}, {Key: "1991", Families: 1}}, out.Years.Entries)

	require.Equal(t, "Mundan, Janeu", out.Rituals.Joined())

	require.True(t, out.Seasonal.Computed)
	require.Equal(t, []MonthCount{{"January", 1}, {"February", 1}}, out.Seasonal.Distribution)

	require.False(t, out.Repeated.Computed)
	require.Equal(t, "Mapped data not available.", out.Timeline.Note)
}

func TestRank_DistinctFamiliesTopN(t *testing.T) {
	tbl := records.NewTable(
		[]string{"Group ID", "Village/City"},
		[][]string{
			{"F1", "Amer"},
			{"F1", "Sikar"},
			{"F2", "Amer"},
			{"F3", "Bikaner"},
			{"F4", "Bikaner"},
			{"F5", "Churu"},
			{"F6", "Dausa"},
			{"F7", "Ajmer"},
			{"F8", "Kota"},
			{"", "Nagaur"},
		},
	)
	res := schema.Resolve(tbl.Headers())
	r := Rank(tbl, res, schema.Village, "top villages", false, 5)

	require.True(t, r.Computed)
	require.Equal(t, "Village/City", r.Dimension)
	require.Equal(t, []RankEntry{
		{Key: "Amer", Families: 2},
		{Key: "Bikaner", Families: 2},
		{Key: "Ajmer", Families: 1},
		{Key: "Churu", Families: 1},
		{Key: "Dausa", Families: 1},
	}, r.Entries)
}

func TestRank_YearsCountFamilyPerYear(t *testing.T) {
	tbl := records.NewTable(
		[]string{"Group ID", "Ritual Year"},
		[][]string{
			{"F1", "2001"},
			{"F1", "2001.0"},
			{"F1", "1999"},
			{"F2", "1999"},
			{"F3", ""},
		},
	)
	res := schema.Resolve(tbl.Headers())
	r := Rank(tbl, res, schema.Year, "top years", true, 5)

	require.Equal(t, []RankEntry{{Key: "1999", Families: 2}, {Key: "2001", Families: 1}}, r.Entries)
}

func TestGenders_NoIndividuals(t *testing.T) {
	tbl := records.NewTable([]string{"Gender"}, [][]string{{"पुरुष"}})
	g := Genders(tbl, schema.Resolve(tbl.Headers()), 0)
	require.True(t, g.Computed)
	require.Equal(t, 1, g.Shares[0].Count)
	require.Zero(t, g.Shares[0].Percent)
	require.Empty(t, g.YearColumn)
}

func TestGenders_SkipsRowsWithoutIndividual(t *testing.T) {
	tbl := records.NewTable([]string{"Individual ID", "Group ID", "Gender"}, [][]string{
		{"A", "F1", "पुरुष"},
		{"", "F1", "पुरुष"},
		{"", "F1", "महिला"},
	})
	res := schema.Resolve(tbl.Headers())
	individuals := CountIndividuals(tbl, res)
	require.Equal(t, 1, individuals.Value)

	g := Genders(tbl, res, individuals.Value)
	require.Equal(t, 1, g.Shares[0].Count)
	require.InDelta(t, 100.0, g.Shares[0].Percent, 1e-9)
	require.Zero(t, g.Shares[1].Count)

	sum := 0.0
	for _, s := range g.Shares {
		sum += s.Percent
	}
	require.LessOrEqual(t, sum, 100.0)
}

func TestSummarizeMonths_ClosestToMean(t *testing.T) {
	s := summarizeMonths(map[string]int{"January": 5, "February": 10, "March": 15})

	require.True(t, s.Computed)
	require.Equal(t, "March", s.MostActive)
	require.Equal(t, 15, s.MostActiveCount)
	require.InDelta(t, 10.0, s.Mean, 1e-9)
	require.Equal(t, "February", s.Average)
	require.Equal(t, []MonthCount{{"January", 5}, {"February", 10}, {"March", 15}}, s.Distribution)
}

func TestSummarizeMonths_TiesAndEmpty(t *testing.T) {
	s := summarizeMonths(map[string]int{"May": 2, "April": 2})
	require.Equal(t, "April", s.MostActive)
	require.Equal(t, "April", s.Average)

	empty := summarizeMonths(nil)
	require.False(t, empty.Computed)
	require.Equal(t, "No valid month data available to calculate seasonal trends.", empty.Note)
}

func TestSeasonal_SkipsUnknownMonths(t *testing.T) {
	tbl := records.NewTable(
		[]string{"Group ID", "Month"},
		[][]string{
			{"F1", "Smarch"},
			{"F1", "अगस्त"},
			{"F2", "August"},
			{"F2", "August"},
		},
	)
	s := Seasonal(tbl, schema.Resolve(tbl.Headers()))
	require.Equal(t, []MonthCount{{"August", 2}}, s.Distribution)
}
