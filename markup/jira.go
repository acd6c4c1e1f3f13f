package markup

import (
	"regexp"
	"strings"
)

var (
	jiraBlockTag    = regexp.MustCompile(`\{(code|noformat)(?::([^}]*))?\}`)
	jiraHeading     = regexp.MustCompile(`^h([1-6])\.\s+`)
	jiraQuote       = regexp.MustCompile(`^bq\.\s+`)
	jiraBullet      = regexp.MustCompile(`^(\*+|-)\s+`)
	jiraNumbered    = regexp.MustCompile(`^(#+)\s+`)
	jiraTableHeader = regexp.MustCompile(`^\|\|(.*?)\|\|\s*$`)
	jiraMono        = regexp.MustCompile(`\{\{(.+?)\}\}`)
	jiraNamedLink   = regexp.MustCompile(`\[([^|\[\]]+)\|([^\[\]]+)\]`)
	jiraBareLink    = regexp.MustCompile(`\[((?:https?|ftp|mailto):[^|\[\]]+)\]`)
	jiraBold        = regexp.MustCompile(`(^|[\s(])\*(\S(?:[^*\n]*\S)?)\*`)
	jiraColor       = regexp.MustCompile(`\{color(?::[^}]*)?\}`)
)

// JiraToMarkdown converts Jira wiki markup to markdown. Code and noformat
// blocks are copied verbatim inside fences; everything else is rewritten
// line by line.
func JiraToMarkdown(s string) string {
	if s == "" {
		return ""
	}
	out := walkJira(s, jiraProse, func(lang, body string) string {
		return "\n```" + lang + "\n" + body + "\n```\n"
	})
	return postProcess(out)
}

// JiraToText strips Jira wiki markup without adding any, so the result
// can be scanned. Monospace, bold and color markers are dropped, links
// become "text url", and code blocks keep their content verbatim.
func JiraToText(s string) string {
	if s == "" {
		return ""
	}
	out := walkJira(s, jiraPlain, func(_, body string) string {
		return "\n" + body + "\n"
	})
	return strings.TrimSpace(out)
}

// walkJira splits s into prose and {code}/{noformat} blocks. The closing
// tag of a block is the next tag of the same kind; an unclosed block runs
// to the end of s.
func walkJira(s string, prose func(string) string, block func(lang, body string) string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	tags := jiraBlockTag.FindAllStringSubmatchIndex(s, -1)
	pos := 0
	for i := 0; i < len(tags); i++ {
		open := tags[i]
		kind := s[open[2]:open[3]]
		b.WriteString(prose(s[pos:open[0]]))

		lang := ""
		if open[4] >= 0 {
			if p := s[open[4]:open[5]]; !strings.Contains(p, "=") {
				lang = p
			}
		}

		j := i + 1
		for j < len(tags) && s[tags[j][2]:tags[j][3]] != kind {
			j++
		}
		end, next := len(s), len(s)
		if j < len(tags) {
			end, next = tags[j][0], tags[j][1]
		}
		b.WriteString(block(lang, strings.Trim(s[open[1]:end], "\n")))
		pos = next
		i = j
	}
	if pos < len(s) {
		b.WriteString(prose(s[pos:]))
	}
	return b.String()
}

func jiraProse(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = jiraInline(jiraLine(line))
	}
	return strings.Join(lines, "\n")
}

func jiraLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if m := jiraHeading.FindStringSubmatch(trimmed); m != nil {
		n := int(m[1][0] - '0')
		return strings.Repeat("#", n) + " " + trimmed[len(m[0]):]
	}
	if m := jiraQuote.FindString(trimmed); m != "" {
		return "> " + trimmed[len(m):]
	}
	if m := jiraTableHeader.FindStringSubmatch(trimmed); m != nil {
		cells := strings.Split(m[1], "||")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		sep := make([]string, len(cells))
		for i := range sep {
			sep[i] = "---"
		}
		return "| " + strings.Join(cells, " | ") + " |\n| " + strings.Join(sep, " | ") + " |"
	}
	if m := jiraBullet.FindStringSubmatch(trimmed); m != nil {
		depth := len(m[1])
		if m[1] == "-" {
			depth = 1
		}
		return strings.Repeat("  ", depth-1) + "- " + trimmed[len(m[0]):]
	}
	if m := jiraNumbered.FindStringSubmatch(trimmed); m != nil {
		return strings.Repeat("  ", len(m[1])-1) + "1. " + trimmed[len(m[0]):]
	}
	return line
}

func jiraPlain(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if m := jiraHeading.FindString(trimmed); m != "" {
			line = trimmed[len(m):]
		} else if m := jiraQuote.FindString(trimmed); m != "" {
			line = trimmed[len(m):]
		}
		line = jiraMono.ReplaceAllString(line, "$1")
		line = jiraNamedLink.ReplaceAllString(line, "$1 $2")
		line = jiraBareLink.ReplaceAllString(line, "$1")
		line = jiraBold.ReplaceAllString(line, "$1$2")
		lines[i] = jiraColor.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

func jiraInline(s string) string {
	s = jiraMono.ReplaceAllString(s, "`$1`")
	s = jiraNamedLink.ReplaceAllString(s, "[$1]($2)")
	s = jiraBareLink.ReplaceAllString(s, "<$1>")
	s = jiraBold.ReplaceAllString(s, "$1**$2**")
	s = jiraColor.ReplaceAllString(s, "")
	return s
}
