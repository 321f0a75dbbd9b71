package layout

import "github.com/joelkehle/hmrc-complaints/internal/extract"

type ComponentType string

const (
	TypeHero            ComponentType = "hero"
	TypeStatsGrid       ComponentType = "stats_grid"
	TypeQuoteBlock      ComponentType = "quote_block"
	TypeBulletList      ComponentType = "bullet_list"
	TypeNumberedSteps   ComponentType = "numbered_steps"
	TypeTimeline        ComponentType = "timeline"
	TypeComparisonCards ComponentType = "comparison_cards"
)

// Content is the per-type payload of a component.
type Content interface {
	componentType() ComponentType
}

type HeroContent struct {
	Title     string                 `json:"title"`
	Subtitle  string                 `json:"subtitle,omitempty"`
	Highlight *extract.KeyPercentage `json:"highlight,omitempty"`
}

type StatsContent struct {
	Stats []extract.Stat `json:"stats"`
}

type QuoteContent struct {
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
}

// ListContent is one chunk of a source list. Part and Parts are 1-based and
// only exceed 1 when a long list was split.
type ListContent struct {
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered"`
	Part    int      `json:"part"`
	Parts   int      `json:"parts"`
}

type TimelineContent struct {
	Entries []extract.TimelineEntry `json:"entries"`
}

type ComparisonContent struct {
	Pairs []extract.Comparison `json:"pairs"`
}

func (HeroContent) componentType() ComponentType       { return TypeHero }
func (StatsContent) componentType() ComponentType      { return TypeStatsGrid }
func (QuoteContent) componentType() ComponentType      { return TypeQuoteBlock }
func (TimelineContent) componentType() ComponentType   { return TypeTimeline }
func (ComparisonContent) componentType() ComponentType { return TypeComparisonCards }

func (c ListContent) componentType() ComponentType {
	if c.Ordered {
		return TypeNumberedSteps
	}
	return TypeBulletList
}

type Style struct {
	Background string `json:"background"`
	TextColor  string `json:"text_color"`
	Columns    int    `json:"columns"`
}

type Image struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type Component struct {
	Type    ComponentType `json:"type"`
	Content Content       `json:"content"`
	Style   *Style        `json:"style,omitempty"`
	Image   *Image        `json:"image,omitempty"`
	Section int           `json:"section"`
}

type Layout struct {
	Components []Component `json:"components"`
	Sections   int         `json:"sections"`
}

const (
	DefaultSectionSize      = 3
	DefaultMaxListItems     = 8
	DefaultMaxImageSections = 3
	DefaultImageConcurrency = 2
	MaxStatsPerGrid         = 4
	MaxComparisonsPerGroup  = 3
)

type Options struct {
	Title            string `yaml:"title"`
	Subtitle         string `yaml:"subtitle"`
	SectionSize      int    `yaml:"section_size"`
	MaxListItems     int    `yaml:"max_list_items"`
	EnableImages     bool   `yaml:"enable_images"`
	MaxImageSections int    `yaml:"max_image_sections"`
	ImageConcurrency int    `yaml:"image_concurrency"`
}

func (o Options) withDefaults() Options {
	if o.SectionSize <= 0 {
		o.SectionSize = DefaultSectionSize
	}
	if o.MaxListItems <= 0 {
		o.MaxListItems = DefaultMaxListItems
	}
	if o.MaxImageSections <= 0 {
		o.MaxImageSections = DefaultMaxImageSections
	}
	if o.ImageConcurrency <= 0 {
		o.ImageConcurrency = DefaultImageConcurrency
	}
	return o
}

var (
	heroStyle   = Style{Background: "#0b3d91", TextColor: "#ffffff", Columns: 1}
	themeStyles = []Style{
		{Background: "#ffffff", TextColor: "#1f2937"},
		{Background: "#f3f4f6", TextColor: "#111827"},
	}
)
