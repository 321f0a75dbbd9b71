package lettergen

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var gbpPattern = regexp.MustCompile(`(?i)£\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)(?:\s?(bn|billion|million|m|k)\b)?`)

// FormatGBP renders pence as £1,234.56.
func FormatGBP(pence int64) string {
	neg := pence < 0
	if neg {
		pence = -pence
	}
	pounds := strconv.FormatInt(pence/100, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("£")
	for i, r := range pounds {
		if i > 0 && (len(pounds)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	cents := pence % 100
	if cents < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(cents, 10))
	return b.String()
}

type amount struct {
	raw   string
	pence int64
}

func findAmounts(text string) []amount {
	var out []amount
	for _, m := range gbpPattern.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k":
			v *= 1e3
		case "m", "million":
			v *= 1e6
		case "bn", "billion":
			v *= 1e9
		}
		out = append(out, amount{raw: strings.TrimSpace(m[0]), pence: int64(math.Round(v * 100))})
	}
	return out
}

// validateAmounts fails when the letter mentions a £ amount that the caller
// did not supply.
func validateAmounts(letter string, allowed map[int64]bool) error {
	var bad []string
	for _, a := range findAmounts(letter) {
		if !allowed[a.pence] {
			bad = append(bad, a.raw)
		}
	}
	if len(bad) > 0 {
		return &CurrencyError{Amounts: bad}
	}
	return nil
}

func allowedAmounts(req Request) map[int64]bool {
	allowed := map[int64]bool{}
	for _, a := range findAmounts(req.Analysis) {
		allowed[a.pence] = true
	}
	if fees, ok := req.Metadata.feesPence(); ok {
		allowed[fees] = true
		allowed[int64(math.Round(req.Metadata.ChargeOutRate*100))] = true
	}
	return allowed
}
