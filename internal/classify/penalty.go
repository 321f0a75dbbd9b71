package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AppealWindow is the statutory period for appealing a penalty notice.
const AppealWindow = 30 * 24 * time.Hour

var (
	schedulePattern   = regexp.MustCompile(`(?i)\bschedule\s*(24|41|55|56)\b`)
	taxYearPattern    = regexp.MustCompile(`\b(20\d{2})\s?[-/–]\s?(20\d{2}|\d{2})\b`)
	amountPattern     = regexp.MustCompile(`£\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)
	noticeDatePattern = regexp.MustCompile(`(?i)\b(?:notice|letter|assessment)\s+(?:was\s+)?(?:dated|issued(?:\s+on)?|sent(?:\s+on)?)\s+(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+),?\s+(\d{4})\b`)
	penaltyWord       = regexp.MustCompile(`(?i)\bpenalt(?:y|ies)\b|\bsurcharge\b`)
)

var statutes = map[string]string{
	"24": "Schedule 24 Finance Act 2007",
	"41": "Schedule 41 Finance Act 2008",
	"55": "Schedule 55 Finance Act 2009",
	"56": "Schedule 56 Finance Act 2009",
}

var scheduleTypes = map[string]string{
	"24": "inaccuracy",
	"41": "failure_to_notify",
	"55": "late_filing",
	"56": "late_payment",
}

var typePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"late_filing", regexp.MustCompile(`(?i)\blate (?:filing|submission)\b|\bfil(?:ed|ing) late\b`)},
	{"late_payment", regexp.MustCompile(`(?i)\blate payment\b|\bpaid late\b|\bsurcharge\b`)},
	{"inaccuracy", regexp.MustCompile(`(?i)\binaccura(?:cy|cies|te)\b|\bcareless\b`)},
	{"failure_to_notify", regexp.MustCompile(`(?i)\bfailure to notify\b`)},
}

var regimePatterns = []struct {
	regime string
	re     *regexp.Regexp
}{
	{"Self Assessment", regexp.MustCompile(`(?i:\bself[- ]assessment\b)|\bSA\s?\d{3}\b|\bSA\b`)},
	{"VAT", regexp.MustCompile(`\bVAT\b`)},
	{"PAYE", regexp.MustCompile(`\bPAYE\b|\bRTI\b`)},
	{"Corporation Tax", regexp.MustCompile(`(?i)\bcorporation tax\b|\bCT600\b`)},
	{"CIS", regexp.MustCompile(`\bCIS\b|(?i:\bconstruction industry scheme\b)`)},
}

func extractPenalty(text string) *PenaltyDetails {
	p := &PenaltyDetails{}
	if m := schedulePattern.FindStringSubmatch(text); m != nil {
		p.Statute = statutes[m[1]]
		p.PenaltyType = scheduleTypes[m[1]]
	}
	if p.PenaltyType == "" {
		for _, tp := range typePatterns {
			if tp.re.MatchString(text) {
				p.PenaltyType = tp.kind
				break
			}
		}
	}
	for _, rp := range regimePatterns {
		if rp.re.MatchString(text) {
			p.Regime = rp.regime
			break
		}
	}
	p.Amount = penaltyAmount(text)
	p.TaxYears = taxYears(text)
	if notice, ok := noticeDate(text); ok {
		deadline := notice.Add(AppealWindow)
		p.NoticeDate = &notice
		p.AppealDeadline = &deadline
	}
	return p
}

// penaltyAmount takes the first £ figure in a sentence that mentions a
// penalty; amounts elsewhere in the narrative are usually fees or tax.
func penaltyAmount(text string) *float64 {
	for _, sentence := range splitSentences(text) {
		if !penaltyWord.MatchString(sentence) {
			continue
		}
		m := amountPattern.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		return &v
	}
	return nil
}

func taxYears(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range taxYearPattern.FindAllStringSubmatch(text, -1) {
		start, _ := strconv.Atoi(m[1])
		end := m[2]
		if len(end) == 4 {
			end = end[2:]
		}
		e, _ := strconv.Atoi(end)
		if e != (start+1)%100 {
			continue
		}
		year := m[1] + "-" + end
		if !seen[year] {
			seen[year] = true
			out = append(out, year)
		}
	}
	return out
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

func noticeDate(text string) (time.Time, bool) {
	m := noticeDatePattern.FindStringSubmatch(text)
	if m == nil || len(m[2]) < 3 {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2][:3])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' || ((c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n')) {
			if s := strings.TrimSpace(text[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
