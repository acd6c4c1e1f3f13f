package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText returns the visible text of an HTML fragment, one space
// between text nodes. Script and style content is skipped.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

var blankRuns = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)

// StorageText flattens a Confluence storage body for scanning. Text is
// copied as written with entities decoded, block elements and macros end
// a line, CDATA bodies are kept, and link targets (href, src, ri:value)
// are added as words of their own. Nothing is escaped or decorated.
func StorageText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	body = cdataRe.ReplaceAllStringFunc(body, func(m string) string {
		return html.EscapeString(cdataRe.FindStringSubmatch(m)[1])
	})
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			block := isBlock(n)
			if block {
				sb.WriteByte('\n')
			}
			for _, a := range n.Attr {
				switch a.Key {
				case "href", "src", "ri:value":
					sb.WriteString(" " + a.Val + " ")
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				sb.WriteByte('\n')
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(blankRuns.ReplaceAllString(sb.String(), "\n"))
}

// isBlock reports whether n starts its own line. Confluence macro
// elements (ac:*, ri:*) are unknown to the parser and count as blocks.
func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case 0:
		return true
	case atom.P, atom.Div, atom.Br, atom.Hr, atom.Li, atom.Ul, atom.Ol,
		atom.Table, atom.Tr, atom.Td, atom.Th, atom.Pre, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
