package report

import (
	"fmt"

	"github.com/vinodismyname/ritualstats/internal/analysis"
	"github.com/vinodismyname/ritualstats/internal/narration"
)

const (
	shortDesc = "Write a short, friendly description of "
	fewDesc   = "Write a short, friendly description (a few sentences) "
)

// Prompt builds the narration prompt for a section.
func Prompt(sec Section, res *analysis.Result) string {
	switch sec.Key {
	case "individuals", "families":
		return shortDesc + sec.Summary + "."
	case "gender":
		return shortDesc + "this gender distribution:\n" + sec.Summary
	case "villages":
		return fewDesc + "about the importance of these top 5 villages:\n" + sec.Summary
	case "castes":
		return fewDesc + "about the importance of these top 5 castes:\n" + sec.Summary
	case "years":
		return fewDesc + "about the importance of these top 5 years:\n" + sec.Summary
	case "rituals":
		return fewDesc + "about the cultural importance of these unique rituals:\n" + sec.Summary
	case "seasonal":
		return fewDesc + "explaining the seasonal ritual trend:\n" + sec.Summary
	case "repeated":
		return fmt.Sprintf("%sabout repeated families in ritual records. There are %d repeated families found. "+
			"Explain why identifying repeated families matters.", fewDesc, res.Repeated.Value)
	case "group_timeline":
		return fewDesc + "about the ritual history of this family group:\n" + sec.Summary
	}
	return shortDesc + sec.Summary
}

// Items returns narration items for the computed sections only.
func Items(secs []Section, res *analysis.Result) []narration.Item {
	items := make([]narration.Item, 0, len(secs))
	for _, s := range secs {
		if !s.Computed {
			continue
		}
		items = append(items, narration.Item{Key: s.Key, Prompt: Prompt(s, res)})
	}
	return items
}
