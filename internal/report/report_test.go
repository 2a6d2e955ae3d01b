package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
	"github.com/vinodismyname/ritualstats/internal/records"
)

func sampleResult() *analysis.Result {
	primary := records.NewTable(
		[]string{"Individual ID", "Group ID", "Gender", "Year", "Month", "Ritual Name 1"},
		[][]string{
			{"A", "F1", "पुरुष", "1990", "January", "Mundan"},
			{"B", "F1", "महिला", "1990", "January", "Mundan"},
			{"C", "F1", "पुरुष", "1991", "March", "Janeu"},
		},
	)
	mapped := records.NewTable(
		[]string{"Final Merged Family Id", "Family Id", "Individual ID", "Group ID", "Date of Ritual", "Village/City"},
		[][]string{
			{"GROUP1", "f1", "i1", "g1", "5 January 1990", "Amer"},
			{"GROUP1", "f2", "i2", "g2", "15 March 1995", "Tonk"},
		},
	)
	return analysis.Analyze(primary, mapped, analysis.Options{})
}

func TestSections_OrderAndText(t *testing.T) {
	secs := Sections(sampleResult())
	keys := make([]string, len(secs))
	for i, s := range secs {
		keys[i] = s.Key
	}
	require.Equal(t, Keys, keys)

	require.Equal(t, "Total Individuals: 3", secs[0].Summary)
	require.Equal(t, "Total Families: 1", secs[1].Summary)
	require.Equal(t,
		"Gender Distribution :\n"+
			"  Males   - 2 | Percentage: 66.67%; Year with highest male count: 1990 (1 पुरुष)\n"+
			"  Females - 1 | Percentage: 33.33%; Year with highest female count: 1990 (1 महिला)",
		secs[2].Summary)
	require.False(t, secs[3].Computed)
	require.Equal(t, "Village/City column not found; cannot compute top villages.", secs[3].Summary)
	require.Equal(t, "Top Years :\n  Top1 : 1990 (1)\n  Top2 : 1991 (1)", secs[5].Summary)
	require.Equal(t, "Unique Rituals are : Mundan, Janeu", secs[6].Summary)
	require.Equal(t, "Repeated families: 1", secs[8].Summary)

	tl := secs[9].Summary
	require.Contains(t, tl, "Most repeated GROUP is GROUP1 with 2 distinct families.")
	require.Contains(t, tl, "First Appearance: 05 January 1990\nLast Appearance: 15 March 1995")
	require.Contains(t, tl, "Timeline: 1990 - 1995")
	require.Contains(t, tl, "Origin (Ancestral Location): Amer")
}

func TestItems_OnlyComputedSections(t *testing.T) {
	res := sampleResult()
	items := Items(Sections(res), res)
	for _, it := range items {
		require.NotEqual(t, "villages", it.Key)
		require.NotEqual(t, "castes", it.Key)
	}
	require.Equal(t, "individuals", items[0].Key)
	require.Equal(t, "Write a short, friendly description of Total Individuals: 3.", items[0].Prompt)

	var repeated string
	for _, it := range items {
		if it.Key == "repeated" {
			repeated = it.Prompt
		}
	}
	require.Contains(t, repeated, "There are 1 repeated families found.")
}

func TestWrite_TextAndJSON(t *testing.T) {
	res := sampleResult()
	rep := Build("run-1", res, []narration.Narration{
		{Key: "individuals", Text: "Three people took part."},
		{Key: "families", Text: "[Could not generate description: down]", Failed: true},
	})

	var text bytes.Buffer
	require.NoError(t, Write(&text, rep, FormatText))
	require.Contains(t, text.String(), "Total Individuals: 3\nDescription: Three people took part.\n\n")
	require.Contains(t, text.String(), "Description: [Could not generate description: down]")

	var js bytes.Buffer
	require.NoError(t, Write(&js, rep, FormatJSON))
	var decoded struct {
		RunID   string `json:"run_id"`
		Entries []struct {
			Key       string `json:"key"`
			Narration string `json:"narration"`
			Failed    bool   `json:"narration_failed"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Entries, len(Keys))
	require.Equal(t, "Three people took part.", decoded.Entries[0].Narration)
	require.True(t, decoded.Entries[1].Failed)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)
	_, err = ParseFormat("yaml")
	require.Error(t, err)
}
