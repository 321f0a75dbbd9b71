package render

import (
	"context"
	"encoding/base64"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const letterCSS = `body{font-family:Georgia,serif;font-size:11pt;line-height:1.45;color:#111;margin:0;}` +
	`.letter{max-width:180mm;margin:0 auto;}` +
	`.letter-meta{font-size:9pt;color:#444;margin-bottom:8mm;}` +
	`h1,h2,h3{font-size:12pt;margin:6mm 0 3mm;}` +
	`h1[data-letter-subject="true"],h2[data-letter-subject="true"],h3[data-letter-subject="true"]{text-decoration:underline;}` +
	`table.fee-table{border-collapse:collapse;width:100%;font-size:10pt;}` +
	`table.fee-table th,table.fee-table td{border:1px solid #999;padding:2mm;text-align:left;}` +
	`@media print{@page{size:A4;margin:20mm;}}`

// Document is what gets printed.
type Document struct {
	Title         string
	CaseReference string
	Markdown      string
	GeneratedAt   time.Time
}

type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

func NewChromiumPDFRenderer(chromePath string) *ChromiumPDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	return &ChromiumPDFRenderer{chromePath: chromePath, timeout: 30 * time.Second}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	htmlDoc, err := BuildHTMLDocument(doc)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, allocatorOptions(r.chromePath)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := letterPrintParams(doc.CaseReference).Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

// allocatorOptions runs headless Chromium inside containers.
func allocatorOptions(chromePath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	return opts
}

// letterPrintParams prints on A4 with the case reference and page count in
// the footer.
func letterPrintParams(caseRef string) *page.PrintToPDFParams {
	footer := `<div style="width:100%;text-align:center;font-size:8px;color:#666;">`
	if ref := strings.TrimSpace(caseRef); ref != "" {
		footer += html.EscapeString(ref) + ` · `
	}
	footer += `Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(`<div></div>`).
		WithFooterTemplate(footer).
		WithPaperWidth(8.27).
		WithPaperHeight(11.69).
		WithMarginTop(0.8).
		WithMarginBottom(0.8).
		WithMarginLeft(0.8).
		WithMarginRight(0.8)
}

// BuildHTMLDocument wraps the converted letter in a standalone page.
func BuildHTMLDocument(doc Document) (string, error) {
	body, err := HTML(doc.Markdown)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Letter"
	}
	var meta strings.Builder
	if ref := strings.TrimSpace(doc.CaseReference); ref != "" {
		meta.WriteString("<div><strong>Our reference:</strong> " + html.EscapeString(ref) + "</div>")
	}
	if !doc.GeneratedAt.IsZero() {
		meta.WriteString("<div><strong>Date:</strong> " + doc.GeneratedAt.Format("2 January 2006") + "</div>")
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + letterCSS + "</style></head><body>" +
		"<div class='letter'><div class='letter-meta'>" + meta.String() + "</div>" +
		"<div class='letter-body'>" + body + "</div></div>" +
		"</body></html>", nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
