// Package layout maps extracted article entities to an ordered list of
// presentation components, optionally decorated with generated imagery.
package layout

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/hmrc-complaints/internal/extract"
)

// ImageGenerator returns a URL for a prompt. Failures are tolerated.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Mapper struct {
	images ImageGenerator
	logger *slog.Logger
}

func NewMapper(images ImageGenerator, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{images: images, logger: logger}
}

type entityKind int

const (
	kindStat entityKind = iota
	kindQuote
	kindList
	kindTimeline
	kindComparison
)

type entity struct {
	offset int
	kind   entityKind
	index  int
}

// Map is deterministic apart from image URLs. Component order follows the
// source offsets of the originating entities.
func (m *Mapper) Map(ctx context.Context, res extract.Result, opts Options) Layout {
	opts = opts.withDefaults()

	var components []Component
	hasHero := strings.TrimSpace(opts.Title) != ""
	if hasHero {
		hero := HeroContent{Title: strings.TrimSpace(opts.Title), Subtitle: strings.TrimSpace(opts.Subtitle)}
		if len(res.KeyPercentages) > 0 {
			kp := res.KeyPercentages[0]
			hero.Highlight = &kp
		}
		style := heroStyle
		components = append(components, Component{Type: TypeHero, Content: hero, Style: &style})
	}

	content := contentComponents(res, opts)
	sections := 0
	for i := range content {
		section := i/opts.SectionSize + 1
		style := themeStyles[(section-1)%len(themeStyles)]
		style.Columns = columnsFor(content[i].Content)
		content[i].Style = &style
		content[i].Section = section
		sections = section
	}
	components = append(components, content...)

	if opts.EnableImages && m.images != nil {
		m.attachImages(ctx, components, hasHero, opts)
	}
	if components == nil {
		components = []Component{}
	}
	return Layout{Components: components, Sections: sections}
}

func contentComponents(res extract.Result, opts Options) []Component {
	var entities []entity
	for i, s := range res.Stats {
		entities = append(entities, entity{s.Offset, kindStat, i})
	}
	for i, q := range res.Quotes {
		entities = append(entities, entity{q.Offset, kindQuote, i})
	}
	for i, l := range res.Lists {
		entities = append(entities, entity{l.Offset, kindList, i})
	}
	if len(res.Timeline) > 0 {
		// The timeline is date-ordered; it sits where its earliest line was.
		first := res.Timeline[0].Offset
		for _, e := range res.Timeline {
			if e.Offset < first {
				first = e.Offset
			}
		}
		entities = append(entities, entity{first, kindTimeline, 0})
	}
	for i, c := range res.Comparisons {
		entities = append(entities, entity{c.Offset, kindComparison, i})
	}
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].offset < entities[j].offset })

	var out []Component
	var stats []extract.Stat
	var pairs []extract.Comparison
	flush := func() {
		if len(stats) > 0 {
			out = append(out, newComponent(StatsContent{Stats: stats}))
			stats = nil
		}
		if len(pairs) > 0 {
			out = append(out, newComponent(ComparisonContent{Pairs: pairs}))
			pairs = nil
		}
	}
	for _, e := range entities {
		if e.kind != kindStat && len(stats) > 0 {
			flush()
		}
		if e.kind != kindComparison && len(pairs) > 0 {
			flush()
		}
		switch e.kind {
		case kindStat:
			stats = append(stats, res.Stats[e.index])
			if len(stats) == MaxStatsPerGrid {
				flush()
			}
		case kindComparison:
			pairs = append(pairs, res.Comparisons[e.index])
			if len(pairs) == MaxComparisonsPerGroup {
				flush()
			}
		case kindQuote:
			q := res.Quotes[e.index]
			out = append(out, newComponent(QuoteContent{Text: q.Text, Attribution: q.Attribution}))
		case kindList:
			out = append(out, splitList(res.Lists[e.index], opts.MaxListItems)...)
		case kindTimeline:
			out = append(out, newComponent(TimelineContent{Entries: res.Timeline}))
		}
	}
	flush()
	return out
}

func newComponent(c Content) Component {
	return Component{Type: c.componentType(), Content: c}
}

func splitList(l extract.List, max int) []Component {
	parts := (len(l.Items) + max - 1) / max
	if parts == 0 {
		return nil
	}
	out := make([]Component, 0, parts)
	for p := 0; p < parts; p++ {
		end := (p + 1) * max
		if end > len(l.Items) {
			end = len(l.Items)
		}
		items := append([]string(nil), l.Items[p*max:end]...)
		out = append(out, newComponent(ListContent{Items: items, Ordered: l.Ordered, Part: p + 1, Parts: parts}))
	}
	return out
}

func columnsFor(c Content) int {
	switch v := c.(type) {
	case StatsContent:
		return len(v.Stats)
	case ComparisonContent:
		return 2
	default:
		return 1
	}
}

// attachImages decorates the hero and the first MaxImageSections content
// components. Each request is independent; a failure leaves that component
// without an image.
func (m *Mapper) attachImages(ctx context.Context, components []Component, hasHero bool, opts Options) {
	var targets []int
	limit := opts.MaxImageSections
	for i := range components {
		if i == 0 && hasHero {
			targets = append(targets, i)
			continue
		}
		if limit == 0 {
			break
		}
		targets = append(targets, i)
		limit--
	}

	images := make([]*Image, len(components))
	var g errgroup.Group
	g.SetLimit(opts.ImageConcurrency)
	for _, idx := range targets {
		idx := idx
		prompt := imagePrompt(components[idx], opts.Title)
		g.Go(func() error {
			url, err := m.images.GenerateImage(ctx, prompt)
			if err != nil {
				m.logger.Warn("image generation failed", "component", idx, "type", string(components[idx].Type), "error", err)
				return nil
			}
			if strings.TrimSpace(url) == "" {
				m.logger.Warn("image generation returned no url", "component", idx)
				return nil
			}
			images[idx] = &Image{URL: url, Prompt: prompt}
			return nil
		})
	}
	_ = g.Wait()
	for i, img := range images {
		if img != nil {
			components[i].Image = img
		}
	}
}

const imageStyle = "Flat editorial illustration for a UK tax and accountancy article, muted palette, no text or numbers in the image."

const maxSubjectRunes = 300

func imagePrompt(c Component, title string) string {
	var subject string
	switch v := c.Content.(type) {
	case HeroContent:
		subject = v.Title
	case StatsContent:
		labels := make([]string, 0, len(v.Stats))
		for _, s := range v.Stats {
			if s.Label != "" {
				labels = append(labels, s.Label)
			}
		}
		subject = "statistics about " + strings.Join(labels, ", ")
	case QuoteContent:
		subject = "a quotation: " + v.Text
	case ListContent:
		if len(v.Items) > 0 {
			subject = "a checklist starting with " + v.Items[0]
		}
	case TimelineContent:
		if len(v.Entries) > 0 {
			subject = "a sequence of events beginning with " + v.Entries[0].Description
		}
	case ComparisonContent:
		if len(v.Pairs) > 0 {
			subject = fmt.Sprintf("a contrast between %s and %s", v.Pairs[0].Left, v.Pairs[0].Right)
		}
	}
	if subject == "" {
		subject = title
	}
	if r := []rune(subject); len(r) > maxSubjectRunes {
		subject = string(r[:maxSubjectRunes])
	}
	return fmt.Sprintf("%s Subject: %s.", imageStyle, strings.TrimSpace(subject))
}
