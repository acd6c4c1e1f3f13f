// Package rules compiles named regular expressions into an immutable rule
// set and applies it to free text. Patterns that fail to compile are
// dropped and reported, never fatal.
//
// \w, \d and \s match Unicode letters, digits and spaces. \b stays ASCII.
// A pattern with one capture group reports the group, not the whole match.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Rule is a named, compiled pattern. Source is the pattern as written.
type Rule struct {
	Name    string
	Source  string
	Pattern *regexp.Regexp
}

// CompileError reports a pattern that was dropped during Compile.
type CompileError struct {
	Name    string
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rules: %q dropped: %v", e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuleSet is safe for concurrent use. It is never modified after Compile.
type RuleSet struct {
	rules []Rule
}

// Compile builds a RuleSet from base merged with override. On a name
// collision the override pattern wins. Entries whose pattern does not
// compile are left out and returned as errors, sorted by rule name.
func Compile(base, override map[string]string) (*RuleSet, []*CompileError) {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	rs := &RuleSet{rules: make([]Rule, 0, len(names))}
	var errs []*CompileError
	for _, name := range names {
		re, err := regexp.Compile(widenClasses(merged[name]))
		if err != nil {
			errs = append(errs, &CompileError{Name: name, Pattern: merged[name], Err: err})
			continue
		}
		rs.rules = append(rs.rules, Rule{Name: name, Source: merged[name], Pattern: re})
	}
	return rs, errs
}

// Len returns the number of usable rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rules returns the rules ordered by name. The slice is a copy.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Names returns the rule names in sorted order.
func (rs *RuleSet) Names() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Name
	}
	return out
}

// Scan returns every distinct substring matched by any rule, sorted.
// The result carries no rule attribution. Empty text yields nil.
func (rs *RuleSet) Scan(text string) []string {
	set := make(map[string]struct{})
	rs.Collect(text, set)
	return sortedKeys(set)
}

// Collect adds the matches found in text to set. It lets callers
// accumulate across several texts without sorting each time.
func (rs *RuleSet) Collect(text string, set map[string]struct{}) {
	if text == "" {
		return
	}
	text = norm.NFC.String(text)
	for _, r := range rs.rules {
		for _, m := range findAll(r.Pattern, text) {
			if m == "" {
				continue
			}
			set[m] = struct{}{}
		}
	}
}

// ScanByRule returns the distinct matches of each rule that matched,
// keyed by rule name.
func (rs *RuleSet) ScanByRule(text string) map[string][]string {
	out := make(map[string][]string)
	if text == "" {
		return out
	}
	text = norm.NFC.String(text)
	for _, r := range rs.rules {
		set := make(map[string]struct{})
		for _, m := range findAll(r.Pattern, text) {
			if m != "" {
				set[m] = struct{}{}
			}
		}
		if len(set) > 0 {
			out[r.Name] = sortedKeys(set)
		}
	}
	return out
}

// findAll reports each match of re in text: the whole match when re has
// no capture group, group 1 when it has one, and the non-empty groups
// joined by a space when it has several.
func findAll(re *regexp.Regexp, text string) []string {
	n := re.NumSubexp()
	if n == 0 {
		return re.FindAllString(text, -1)
	}
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if n == 1 {
			out = append(out, m[1])
			continue
		}
		groups := make([]string, 0, n)
		for _, g := range m[1:] {
			if g != "" {
				groups = append(groups, g)
			}
		}
		out = append(out, strings.Join(groups, " "))
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
