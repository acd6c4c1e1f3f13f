package tracker

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Query is an opaque search request. Text is a free-text keyword, Scope a
// project or space key. At least one of them must be set.
type Query struct {
	Text   string
	Scope  string
	Fields []string
}

// Label names the query for presentation: the keyword if any, else the
// scope.
func (q Query) Label() string {
	if q.Text != "" {
		return q.Text
	}
	return q.Scope
}

// Item is one search hit.
type Item struct {
	ID      string
	Summary string
	Status  string
}

// Page is one page of search hits. HasTotal is false when the server did
// not report a usable total.
type Page struct {
	Items    []Item
	Total    int
	HasTotal bool
}

// Attachment describes a file attached to a document.
type Attachment struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// Document is the fetched content of one search hit. PrimaryText is the
// issue description or page body, SecondaryTexts the comments (Jira) or
// attachment references (Confluence) in source order. Both hold the text
// that is scanned.
//
// Markdown and SecondaryMarkdown render the same content for files on
// disk. They are empty when no rendering was made.
type Document struct {
	ID             string
	Summary        string
	PrimaryText    string
	SecondaryTexts []string

	Markdown          string
	SecondaryMarkdown []string

	Space       string
	URL         string
	Status      string
	Created     string
	Updated     string
	Attachments []Attachment
}

// Project is a Jira project or a Confluence space.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// parseTotal accepts a JSON number or numeric string.
func parseTotal(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
