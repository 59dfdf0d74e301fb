package casestudies

import (
	"slices"
	"time"

	"casehub-backend/internal/workflow"
)

var Categories = []string{"Cloud", "Data", "Integration", "Security", "Quality", "Enablement"}

var Industries = []string{"Pharma", "Healthcare", "Logistics", "Manufacturing", "Retail", "Finance", "Public"}

type Quote struct {
	TextDe string `bson:"text_de,omitempty" json:"textDe,omitempty"`
	TextEn string `bson:"text_en,omitempty" json:"textEn,omitempty"`
	Author string `bson:"author,omitempty" json:"author,omitempty"`
}

// CaseRecord is one case study as edited in the CMS and served to the site.
type CaseRecord struct {
	Slug       string `bson:"slug" json:"slug"`
	TitleDe    string `bson:"title_de,omitempty" json:"titleDe,omitempty"`
	TitleEn    string `bson:"title_en,omitempty" json:"titleEn,omitempty"`
	SubtitleDe string `bson:"subtitle_de,omitempty" json:"subtitleDe,omitempty"`
	SubtitleEn string `bson:"subtitle_en,omitempty" json:"subtitleEn,omitempty"`
	Category   string `bson:"category,omitempty" json:"category,omitempty"`
	Industry   string `bson:"industry,omitempty" json:"industry,omitempty"`
	HeroImage  string `bson:"hero_image,omitempty" json:"heroImage,omitempty"`
	HeroMedia  string `bson:"hero_media,omitempty" json:"heroMedia,omitempty"`
	HeroPoster string `bson:"hero_poster,omitempty" json:"heroPoster,omitempty"`

	GoalsDe    []string `bson:"goals_de,omitempty" json:"goalsDe,omitempty"`
	GoalsEn    []string `bson:"goals_en,omitempty" json:"goalsEn,omitempty"`
	SolutionDe []string `bson:"solution_de,omitempty" json:"solutionDe,omitempty"`
	SolutionEn []string `bson:"solution_en,omitempty" json:"solutionEn,omitempty"`
	ResultsDe  []string `bson:"results_de,omitempty" json:"resultsDe,omitempty"`
	ResultsEn  []string `bson:"results_en,omitempty" json:"resultsEn,omitempty"`
	Tech       []string `bson:"tech,omitempty" json:"tech,omitempty"`

	Quote *Quote `bson:"quote,omitempty" json:"quote,omitempty"`

	Status      workflow.Status `bson:"status" json:"status"`
	Owner       string          `bson:"owner,omitempty" json:"owner,omitempty"`
	Reviewers   []string        `bson:"reviewers,omitempty" json:"reviewers,omitempty"`
	PublishedAt *time.Time      `bson:"published_at,omitempty" json:"publishedAt,omitempty"`
}

// Title returns the title for lang, falling back to the other language.
func (c CaseRecord) Title(lang string) string {
	if lang == "en" {
		if c.TitleEn != "" {
			return c.TitleEn
		}
		return c.TitleDe
	}
	if c.TitleDe != "" {
		return c.TitleDe
	}
	return c.TitleEn
}

// Clone returns a deep copy so snapshots never share slices with live records.
func (c CaseRecord) Clone() CaseRecord {
	out := c
	out.GoalsDe = slices.Clone(c.GoalsDe)
	out.GoalsEn = slices.Clone(c.GoalsEn)
	out.SolutionDe = slices.Clone(c.SolutionDe)
	out.SolutionEn = slices.Clone(c.SolutionEn)
	out.ResultsDe = slices.Clone(c.ResultsDe)
	out.ResultsEn = slices.Clone(c.ResultsEn)
	out.Tech = slices.Clone(c.Tech)
	out.Reviewers = slices.Clone(c.Reviewers)
	if c.Quote != nil {
		q := *c.Quote
		out.Quote = &q
	}
	if c.PublishedAt != nil {
		t := *c.PublishedAt
		out.PublishedAt = &t
	}
	return out
}

func CloneAll(items []CaseRecord) []CaseRecord {
	out := make([]CaseRecord, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

type PublicListFilter struct {
	Category string
	Industry string
}
