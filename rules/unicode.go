package rules

import "strings"

// Class bodies matching what Python str patterns mean by \w, \d and \s.
const (
	wordClass  = `\p{L}\p{N}_`
	digitClass = `\p{Nd}`
	spaceClass = `\t-\r\x1c-\x1f\x85\p{Z}`
)

// widenClasses rewrites \w, \d, \s and their negations into Unicode
// classes. Inside a bracket expression \W and \S have no union form and
// keep their ASCII meaning. \Q...\E literals and POSIX classes are copied
// untouched.
func widenClasses(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			next := pattern[i+1]
			if next == 'Q' {
				end := strings.Index(pattern[i+2:], `\E`)
				if end < 0 {
					b.WriteString(pattern[i:])
					return b.String()
				}
				b.WriteString(pattern[i : i+2+end+2])
				i += 2 + end + 1
				continue
			}
			if w, ok := widenEscape(next, inClass); ok {
				b.WriteString(w)
			} else {
				b.WriteString(pattern[i : i+2])
			}
			i++
		case inClass && c == '[' && i+1 < len(pattern) && pattern[i+1] == ':':
			end := strings.Index(pattern[i+2:], ":]")
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(pattern[i : i+2+end+2])
			i += 2 + end + 1
		case inClass && c == ']':
			inClass = false
			b.WriteByte(c)
		case !inClass && c == '[':
			inClass = true
			b.WriteByte(c)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			// A leading ] is a literal.
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func widenEscape(c byte, inClass bool) (string, bool) {
	switch c {
	case 'w':
		if inClass {
			return wordClass, true
		}
		return "[" + wordClass + "]", true
	case 'W':
		if inClass {
			return `\W`, true
		}
		return "[^" + wordClass + "]", true
	case 'd':
		return digitClass, true
	case 'D':
		return `\P{Nd}`, true
	case 's':
		if inClass {
			return spaceClass, true
		}
		return "[" + spaceClass + "]", true
	case 'S':
		if inClass {
			return `\S`, true
		}
		return "[^" + spaceClass + "]", true
	}
	return "", false
}
