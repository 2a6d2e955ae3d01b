// Package analysis computes aggregate summaries over a primary ledger and
// reconstructs merged family group timelines from a mapped ledger. Every
// function here is pure: same tables in, same Result out.
package analysis

import (
	"github.com/vinodismyname/ritualstats/config"
	"github.com/vinodismyname/ritualstats/internal/records"
	"github.com/vinodismyname/ritualstats/internal/schema"
)

// Options tune a run. Zero values fall back to the package defaults.
type Options struct {
	TopN        int
	GroupPrefix string
	// GroupID pins the timeline to one merged group instead of the most
	// repeated one.
	GroupID string
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = config.DefaultTopN
	}
	if o.GroupPrefix == "" {
		o.GroupPrefix = config.DefaultGroupPrefix
	}
	return o
}

// Analyze runs every computation. A nil mapped table marks the mapped
// summaries as not available rather than failing the run.
func Analyze(primary, mapped *records.Table, opts Options) *Result {
	opts = opts.withDefaults()
	res := schema.Resolve(primary.Headers())

	out := &Result{}
	out.Individuals = CountIndividuals(primary, res)
	out.Families = CountFamilies(primary, res)
	out.Gender = Genders(primary, res, out.Individuals.Value)
	out.Villages = Rank(primary, res, schema.Village, "top villages", false, opts.TopN)
	out.Castes = Rank(primary, res, schema.Caste, "top castes", false, opts.TopN)
	out.Years = Rank(primary, res, schema.Year, "top years", true, opts.TopN)
	out.Rituals = UniqueRituals(primary, res)
	out.Seasonal = Seasonal(primary, res)

	if mapped == nil {
		out.Repeated = Count{Outcome: skipped("Mapped data not available.")}
		out.Timeline = GroupTimeline{Outcome: skipped("Mapped data not available.")}
		return out
	}
	mres := schema.Resolve(mapped.Headers())
	out.Repeated = CountRepeated(mapped, mres, opts.GroupPrefix)
	out.Timeline = BuildTimeline(mapped, mres, opts.GroupPrefix, opts.GroupID)
	return out
}

// Timeline runs only the group timeline over a mapped table.
func Timeline(mapped *records.Table, opts Options) GroupTimeline {
	opts = opts.withDefaults()
	return BuildTimeline(mapped, schema.Resolve(mapped.Headers()), opts.GroupPrefix, opts.GroupID)
}
