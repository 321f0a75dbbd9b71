package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHTML flattens an HTML article into the line-oriented text Extract
// understands (list items become "- " or "N. " lines, blockquotes become
// "> " lines) and extracts from that.
func (e *Extractor) ExtractHTML(html string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return emptyResult(), err
	}
	return e.Extract(HTMLToText(doc.Selection)), nil
}

func HTMLToText(sel *goquery.Selection) string {
	var sb strings.Builder
	root := sel.Find("body")
	if root.Length() == 0 {
		root = sel
	}
	writeBlocks(&sb, root)
	return strings.TrimSpace(sb.String())
}

// inline elements flow into the surrounding paragraph instead of starting
// their own.
var inline = map[string]bool{
	"a": true, "abbr": true, "b": true, "cite": true, "code": true, "em": true,
	"i": true, "mark": true, "q": true, "s": true, "small": true, "span": true,
	"strong": true, "sub": true, "sup": true, "time": true, "u": true,
}

func writeBlocks(sb *strings.Builder, sel *goquery.Selection) {
	var run strings.Builder
	flush := func(end string) {
		if text := collapseSpaces(run.String()); text != "" {
			sb.WriteString(text)
			sb.WriteString(end)
		}
		run.Reset()
	}
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text" || inline[name]:
			run.WriteString(c.Text())
			return
		case name == "br":
			flush("\n")
			return
		}
		flush("\n\n")
		switch name {
		case "script", "style", "noscript", "nav", "footer", "#comment":
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "figcaption", "pre":
			if text := collapseSpaces(c.Text()); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n\n")
			}
		case "ul", "ol":
			ordered := name == "ol"
			c.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
				text := collapseSpaces(li.Text())
				if text == "" {
					return
				}
				if ordered {
					sb.WriteString(strconv.Itoa(i+1) + ". ")
				} else {
					sb.WriteString("- ")
				}
				sb.WriteString(text)
				sb.WriteString("\n")
			})
			sb.WriteString("\n")
		case "blockquote":
			var inner strings.Builder
			writeBlocks(&inner, c)
			for _, l := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
				if strings.TrimSpace(l) == "" {
					continue
				}
				sb.WriteString("> ")
				sb.WriteString(strings.TrimSpace(l))
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		default:
			writeBlocks(sb, c)
		}
	})
	flush("\n\n")
}
