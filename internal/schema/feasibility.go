package schema

// Computation names a summary the engine can produce.
type Computation string

const (
	Individuals    Computation = "individuals"
	Families       Computation = "families"
	GenderSplit    Computation = "gender"
	GenderByYear   Computation = "gender_by_year"
	TopVillages    Computation = "villages"
	TopCastes      Computation = "castes"
	TopYears       Computation = "years"
	Rituals        Computation = "rituals"
	Seasonal       Computation = "seasonal"
	RepeatedGroups Computation = "repeated"
	GroupTimeline  Computation = "group_timeline"
)

// Requirement lists the fields a computation needs and the phrase used when
// it cannot run.
type Requirement struct {
	Computation Computation
	Fields      []Field
	Describe    string
}

// PrimaryRequirements covers computations over the primary table.
var PrimaryRequirements = []Requirement{
	{Individuals, []Field{IndividualID}, "total individuals"},
	{Families, []Field{GroupID}, "total families"},
	{GenderSplit, []Field{Gender}, "gender distribution"},
	{GenderByYear, []Field{Gender, Year}, "year-wise gender peaks"},
	{TopVillages, []Field{Village, GroupID}, "top villages"},
	{TopCastes, []Field{Caste, GroupID}, "top castes"},
	{TopYears, []Field{Year, GroupID}, "top years"},
	{Rituals, []Field{RitualName}, "unique rituals"},
	{Seasonal, []Field{Month, GroupID}, "seasonal ritual trends"},
}

// MappedRequirements covers computations over the mapped table.
var MappedRequirements = []Requirement{
	{RepeatedGroups, []Field{MergedID}, "repeated families"},
	{GroupTimeline, []Field{MergedID, FamilyID}, "most repeated family group insights"},
}

// Feasibility is the per-computation verdict for one table.
type Feasibility struct {
	Computation Computation `json:"computation"`
	Feasible    bool        `json:"feasible"`
	Note        string      `json:"note,omitempty"`
}

// Check evaluates requirements against a resolution.
func (r Resolution) Check(reqs []Requirement) []Feasibility {
	out := make([]Feasibility, 0, len(reqs))
	for _, req := range reqs {
		missing := r.Missing(req.Fields...)
		f := Feasibility{Computation: req.Computation, Feasible: len(missing) == 0}
		if !f.Feasible {
			f.Note = NotFound(missing, req.Describe)
		}
		out = append(out, f)
	}
	return out
}
