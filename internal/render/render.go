// Package render turns letter markdown into HTML and print-ready PDF.
package render

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var (
	reSubjectHeading = regexp.MustCompile(`(?i)<h([1-3])([^>]*)>\s*((?:Re|Subject):[^<]*)\s*</h[1-3]>`)
	reFeeTable       = regexp.MustCompile(`<table>`)
)

// HTML converts letter markdown to an HTML fragment.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return applyLetterHooks(buf.String()), nil
}

func applyLetterHooks(contentHTML string) string {
	out := reSubjectHeading.ReplaceAllString(contentHTML, `<h$1$2 data-letter-subject="true">$3</h$1>`)
	// Fee breakdowns are the only tables a letter carries.
	return reFeeTable.ReplaceAllString(out, `<table class="fee-table">`)
}
