package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

func TestExtractStatsScenario(t *testing.T) {
	res := New(Config{}).Extract("HMRC upheld 41% of complaints in 2023-24, with 92,000 complaints received.")
	var gotPercent, gotCount bool
	for _, s := range res.Stats {
		if s.Value == 41 && s.Unit == "%" {
			gotPercent = true
			if s.Label != "HMRC upheld" {
				t.Fatalf("unexpected label for 41%%: %q", s.Label)
			}
		}
		if s.Value == 92000 && s.Unit == "" {
			gotCount = true
			if s.Label != "complaints received" {
				t.Fatalf("unexpected label for 92,000: %q", s.Label)
			}
		}
		if s.Value == 2023 {
			t.Fatal("year should not be extracted as a statistic")
		}
	}
	if !gotPercent || !gotCount {
		t.Fatalf("missing expected stats: %+v", res.Stats)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	text := `HMRC took 94 days to reply, compared to the 15 working days promised.
"We apologise for the delay," said Mark Jones.
- Late filing penalty of £1,600
- Interest of £212.50

14 March 2024: Complaint acknowledged
2 January 2024: Complaint submitted`
	e := New(Config{})
	first := e.Extract(text)
	second := e.Extract(text)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Extract not idempotent (-first +second):\n%s", diff)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   \n\t  "} {
		res := New(Config{}).Extract(in)
		if !res.Empty() {
			t.Fatalf("expected empty result for %q, got %+v", in, res)
		}
		if res.Stats == nil || res.Quotes == nil || res.Lists == nil || res.Timeline == nil || res.Comparisons == nil || res.KeyPercentages == nil {
			t.Fatal("expected non-nil empty slices")
		}
	}
}

func TestExtractStatsPreferLongestLeftmost(t *testing.T) {
	res := New(Config{}).Extract("The tax-geared penalty of £1,200,000 was reduced to £2.5m after review.")
	want := []struct {
		value float64
		unit  string
	}{{1200000, "£"}, {2.5e6, "£"}}
	if len(res.Stats) != len(want) {
		t.Fatalf("expected %d stats, got %+v", len(want), res.Stats)
	}
	for i, w := range want {
		if res.Stats[i].Value != w.value || res.Stats[i].Unit != w.unit {
			t.Fatalf("stat %d: got %v%s want %v%s", i, res.Stats[i].Value, res.Stats[i].Unit, w.value, w.unit)
		}
	}
	if res.Stats[0].Label != "tax-geared penalty" {
		t.Fatalf("unexpected label %q", res.Stats[0].Label)
	}
}

func TestExtractDurations(t *testing.T) {
	res := New(Config{}).Extract("HMRC took 45 days. The Charter promises a reply within 15 working days.")
	if len(res.Stats) != 2 {
		t.Fatalf("expected 2 stats, got %+v", res.Stats)
	}
	if res.Stats[0].Unit != "days" || res.Stats[0].Value != 45 || res.Stats[0].Label != "HMRC took" {
		t.Fatalf("unexpected first stat %+v", res.Stats[0])
	}
	if res.Stats[1].Unit != "working days" || res.Stats[1].Value != 15 {
		t.Fatalf("unexpected second stat %+v", res.Stats[1])
	}
}

func TestExtractQuotesWithAndWithoutAttribution(t *testing.T) {
	text := `The adjudicator wrote: "HMRC failed to follow its own guidance." — Jane Smith
"We apologise for the delay," said Mark Jones.
He called it "a systemic failure of process" in his note.
She said "ok" and left.`
	res := New(Config{}).Extract(text)
	want := []Quote{
		{Text: "HMRC failed to follow its own guidance.", Attribution: "Jane Smith"},
		{Text: "We apologise for the delay", Attribution: "Mark Jones"},
		{Text: "a systemic failure of process"},
	}
	if diff := cmp.Diff(want, res.Quotes, cmpIgnoreOffsets()); diff != "" {
		t.Fatalf("quotes mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractBlockQuote(t *testing.T) {
	text := "Intro paragraph.\n> Delays of this length are unacceptable\n> and must be remedied.\n— The Adjudicator\n"
	res := New(Config{}).Extract(text)
	if len(res.Quotes) != 1 {
		t.Fatalf("expected one quote, got %+v", res.Quotes)
	}
	q := res.Quotes[0]
	if q.Text != "Delays of this length are unacceptable and must be remedied." {
		t.Fatalf("unexpected text %q", q.Text)
	}
	if q.Attribution != "The Adjudicator" {
		t.Fatalf("unexpected attribution %q", q.Attribution)
	}
	if q.Offset != len("Intro paragraph.\n") {
		t.Fatalf("unexpected offset %d", q.Offset)
	}
}

func TestExtractListsGrouping(t *testing.T) {
	text := `Steps:
1. Gather records
2. Submit complaint
3. Escalate to Tier 2

- alpha
- beta
Not a list line
* gamma`
	res := New(Config{}).Extract(text)
	want := []List{
		{Ordered: true, Items: []string{"Gather records", "Submit complaint", "Escalate to Tier 2"}},
		{Ordered: false, Items: []string{"alpha", "beta"}},
		{Ordered: false, Items: []string{"gamma"}},
	}
	if diff := cmp.Diff(want, res.Lists, cmpIgnoreOffsets()); diff != "" {
		t.Fatalf("lists mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(res.Lists); i++ {
		if res.Lists[i].Offset <= res.Lists[i-1].Offset {
			t.Fatal("expected list offsets in source order")
		}
	}
}

func TestExtractTimelineSortsAndDropsMalformedDates(t *testing.T) {
	text := `HMRC took 45 days to respond.
14 March 2024: Complaint acknowledged
2nd Jan 2024: Complaint submitted
Febuary 30th, not-a-year: something
30 February 2024: impossible date`
	res := New(Config{}).Extract(text)
	if len(res.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %+v", res.Timeline)
	}
	if !res.Timeline[0].Date.Equal(time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first date %v", res.Timeline[0].Date)
	}
	if res.Timeline[1].Description != "Complaint acknowledged" {
		t.Fatalf("unexpected second entry %+v", res.Timeline[1])
	}
	if len(res.Stats) != 1 || res.Stats[0].Value != 45 {
		t.Fatalf("malformed dates should not affect stats, got %+v", res.Stats)
	}
}

func TestExtractComparisons(t *testing.T) {
	text := "Self Assessment penalties vs. PAYE penalties differ. Complaints rose 12% in 2023, whereas appeals fell."
	res := New(Config{}).Extract(text)
	want := []Comparison{
		{Left: "Self Assessment penalties", Right: "PAYE penalties differ"},
		{Left: "Complaints rose 12% in 2023", Right: "appeals fell"},
	}
	if diff := cmp.Diff(want, res.Comparisons, cmpIgnoreOffsets()); diff != "" {
		t.Fatalf("comparisons mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractKeyPercentagesDedupKeepsFirst(t *testing.T) {
	text := "Upheld rate was 41%. Upheld rate  was 41%. Another figure: 41% of appeals succeeded."
	res := New(Config{}).Extract(text)
	if len(res.KeyPercentages) != 2 {
		t.Fatalf("expected 2 key percentages, got %+v", res.KeyPercentages)
	}
	if res.KeyPercentages[0].Offset != len("Upheld rate was ") {
		t.Fatalf("expected first occurrence kept, offset=%d", res.KeyPercentages[0].Offset)
	}
	if res.KeyPercentages[1].Context != "Another figure: 41% of appeals succeeded." {
		t.Fatalf("unexpected context %q", res.KeyPercentages[1].Context)
	}
}

func TestExtractHTML(t *testing.T) {
	html := `<html><body><h1>Title</h1><p>HMRC upheld 41% of complaints.</p>
<ul><li>First point</li><li>Second point</li></ul>
<ol><li>Step one</li><li>Step two</li></ol>
<blockquote><p>We accept that our service fell short.</p></blockquote>
<script>var x = "ignored script content";</script></body></html>`
	res, err := New(Config{}).ExtractHTML(html)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if len(res.Lists) != 2 || res.Lists[0].Ordered || !res.Lists[1].Ordered {
		t.Fatalf("unexpected lists %+v", res.Lists)
	}
	if len(res.Quotes) != 1 || res.Quotes[0].Text != "We accept that our service fell short." {
		t.Fatalf("unexpected quotes %+v", res.Quotes)
	}
	if len(res.Stats) != 1 || res.Stats[0].Value != 41 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
}

func TestExtractHTMLInlineMarkupKeepsSentences(t *testing.T) {
	sentence := "HMRC upheld 41% of complaints in 2023-24, with 92,000 complaints received."
	html := `<div>HMRC upheld <strong>41%</strong> of complaints in 2023-24, with <em>92,000</em> complaints received.</div>`
	x := New(Config{})
	got, err := x.ExtractHTML(html)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if diff := cmp.Diff(x.Extract(sentence), got); diff != "" {
		t.Fatalf("inline markup changed the result (-plain +html):\n%s", diff)
	}
	if len(got.KeyPercentages) != 1 || got.KeyPercentages[0].Context != sentence {
		t.Fatalf("unexpected key percentages %+v", got.KeyPercentages)
	}
}

func TestHTMLToTextContainers(t *testing.T) {
	html := `<section>Complaint <a href="/x">reference</a> <span>CFS-1</span><br>Lodged <b>twice</b>
<table><tr><td>Penalty of <code>£100</code> charged</td></tr></table>
<p>Closing paragraph.</p> trailing <i>text</i></section>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "Complaint reference CFS-1\nLodged twice\n\nPenalty of £100 charged\n\nClosing paragraph.\n\ntrailing text"
	if got := HTMLToText(doc.Selection); got != want {
		t.Fatalf("HTMLToText = %q, want %q", got, want)
	}
}

func TestExtractStatLabelDropsInvalidBytes(t *testing.T) {
	res := New(Config{}).Extract("\xff\xfe 12,345")
	if len(res.Stats) != 1 {
		t.Fatalf("expected one stat, got %+v", res.Stats)
	}
	if res.Stats[0].Label != "" {
		t.Fatalf("expected empty label, got %q", res.Stats[0].Label)
	}
}

func cmpIgnoreOffsets() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		sf, ok := p.Last().(cmp.StructField)
		return ok && sf.Name() == "Offset"
	}, cmp.Ignore())
}
