// Package markup renders tracker rich text two ways: markdown for files
// written to disk, and undecorated text for the scanner.
//
// Jira bodies use wiki markup and are rewritten line by line. Confluence
// bodies use the XHTML storage format; for markdown they are sanitized,
// converted with html-to-markdown, and fall back to a plain-text walk of
// the tree when conversion yields nothing. The scanner only ever sees the
// text form.
package markup

import (
	"html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Converter is safe for concurrent use.
type Converter struct {
	md     *converter.Converter
	policy *bluemonday.Policy
}

// New creates a Converter.
func New() *Converter {
	policy := bluemonday.UGCPolicy()
	// Code macros and panels keep their class hints.
	policy.AllowAttrs("class").OnElements("pre", "code", "div", "span")
	return &Converter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: policy,
	}
}

var cdataRe = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

// Storage converts a Confluence storage-format body to markdown. Links are
// resolved against domain. CDATA sections (code and noformat macros) are
// kept as text.
func (c *Converter) Storage(body, domain string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	body = cdataRe.ReplaceAllStringFunc(body, func(m string) string {
		inner := cdataRe.FindStringSubmatch(m)[1]
		return "<pre>" + html.EscapeString(inner) + "</pre>"
	})
	clean := c.policy.Sanitize(body)
	result, err := c.md.ConvertString(clean, converter.WithDomain(domain))
	if err != nil || strings.TrimSpace(result) == "" {
		return PlainText(body)
	}
	return postProcess(result)
}

// Jira converts Jira wiki markup to markdown.
func (c *Converter) Jira(body string) string {
	return JiraToMarkdown(body)
}

func postProcess(s string) string {
	s = strings.ReplaceAll(s, "{**}", "`")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br>", "\n")
	return strings.TrimSpace(s)
}
