package domain

// Stage identifies one ordered step of the generation pipeline.
type Stage string

const (
	StageOutline Stage = "outline"
	StageExpand  Stage = "expand"
	StageEnrich  Stage = "enrich"
	StagePolish  Stage = "polish"
)

// statusForStage maps a stage to the registry status recorded while it runs.
var statusForStage = map[Stage]Status{
	StageOutline: StatusOutlining,
	StageExpand:  StatusExpanding,
	StageEnrich:  StatusEnriching,
	StagePolish:  StatusPolishing,
}

// RunningStatus returns the registry status recorded while the stage runs.
func (s Stage) RunningStatus() Status {
	return statusForStage[s]
}

// StageForStatus returns the stage to (re)enter for a mid-pipeline status.
// planned maps to outline; terminal states map to nothing.
func StageForStatus(s Status) (Stage, bool) {
	switch s {
	case StatusPlanned, StatusOutlining:
		return StageOutline, true
	case StatusExpanding:
		return StageExpand, true
	case StatusEnriching:
		return StageEnrich, true
	case StatusPolishing:
		return StagePolish, true
	}
	return "", false
}

// SectionPlan is one entry of the outline: a heading plus the writer intent
// the expansion prompt is steered with.
type SectionPlan struct {
	Title   string   `json:"title"`
	Intent  string   `json:"intent,omitempty"`
	Bullets []string `json:"bullet_points,omitempty"`
}

// Outline is the artifact produced by the outline stage.
type Outline struct {
	NicheSlug string        `json:"niche_slug"`
	Sections  []SectionPlan `json:"sections"`
	FAQs      []string      `json:"faqs,omitempty"`
	Products  []string      `json:"products,omitempty"`
}

// Section is one expanded body of prose, positioned by outline index.
type Section struct {
	Index   int    `json:"index"`
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Citation is a resolved supporting reference attached during enrichment.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ImageRef points at a fetched media asset for a section.
type ImageRef struct {
	URL    string `json:"url"`
	Query  string `json:"query,omitempty"`
	Credit string `json:"credit,omitempty"`
}

// EnrichedSection carries a section plus whatever supporting data the
// enrichment stage managed to attach. All annotation fields are optional;
// an unenriched section is still publishable.
type EnrichedSection struct {
	Section
	Stats     []string   `json:"stats,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	Image     *ImageRef  `json:"image,omitempty"`
}

// Sections is the artifact produced by the expansion stage.
type Sections struct {
	NicheSlug string    `json:"niche_slug"`
	Outline   Outline   `json:"outline"`
	Items     []Section `json:"items"`
}

// Enriched is the artifact produced by the enrichment stage.
type Enriched struct {
	NicheSlug string            `json:"niche_slug"`
	Outline   Outline           `json:"outline"`
	Items     []EnrichedSection `json:"items"`
}

// Document is the final polished artifact handed to the output sink.
type Document struct {
	NicheSlug string `json:"niche_slug"`
	Markdown  string `json:"markdown"`
}
