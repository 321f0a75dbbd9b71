package extract

import "time"

const (
	DefaultLabelWindow     = 6
	DefaultMinQuoteLength  = 12
	DefaultMinLargeInteger = 1000
)

// Config tunes the extractor. Zero values fall back to the defaults above.
type Config struct {
	// LabelWindow is the maximum number of words taken as a stat label.
	LabelWindow int `yaml:"label_window"`
	// MinQuoteLength is the minimum quoted text length in runes.
	MinQuoteLength int `yaml:"min_quote_length"`
	// MinLargeInteger is the smallest bare number treated as a statistic.
	MinLargeInteger int `yaml:"min_large_integer"`
}

type Stat struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Raw    string  `json:"raw"`
	Offset int     `json:"offset"`
}

type Quote struct {
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
	Offset      int    `json:"offset"`
}

type List struct {
	Ordered bool     `json:"ordered"`
	Items   []string `json:"items"`
	Offset  int      `json:"offset"`
}

type TimelineEntry struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Offset      int       `json:"offset"`
}

type Comparison struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Offset int    `json:"offset"`
}

type KeyPercentage struct {
	Value   float64 `json:"value"`
	Context string  `json:"context"`
	Offset  int     `json:"offset"`
}

// Result holds every entity found in one pass. Offsets are byte positions in
// the newline-normalized input and define source order.
type Result struct {
	Stats          []Stat          `json:"stats"`
	Quotes         []Quote         `json:"quotes"`
	Lists          []List          `json:"lists"`
	Timeline       []TimelineEntry `json:"timeline"`
	Comparisons    []Comparison    `json:"comparisons"`
	KeyPercentages []KeyPercentage `json:"key_percentages"`
}

func (r Result) Empty() bool {
	return len(r.Stats) == 0 && len(r.Quotes) == 0 && len(r.Lists) == 0 &&
		len(r.Timeline) == 0 && len(r.Comparisons) == 0 && len(r.KeyPercentages) == 0
}

func emptyResult() Result {
	return Result{
		Stats:          []Stat{},
		Quotes:         []Quote{},
		Lists:          []List{},
		Timeline:       []TimelineEntry{},
		Comparisons:    []Comparison{},
		KeyPercentages: []KeyPercentage{},
	}
}
