package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hazyhaar/recon/markup"
)

const jiraDocumentFields = "summary,description,comment,created,updated,status,attachment,project"

// Option configures an adapter.
type Option func(*adapter)

// WithRawMarkup scans document bodies exactly as the server returns them,
// markup included. Downloads are still rendered as markdown.
func WithRawMarkup() Option {
	return func(a *adapter) { a.raw = true }
}

// WithConverter sets the markup converter. Default: markup.New().
func WithConverter(c *markup.Converter) Option {
	return func(a *adapter) { a.conv = c }
}

type adapter struct {
	c    *Client
	conv *markup.Converter
	raw  bool
}

func newAdapter(c *Client, opts []Option) adapter {
	a := adapter{c: c}
	for _, o := range opts {
		o(&a)
	}
	if a.conv == nil {
		a.conv = markup.New()
	}
	return a
}

// Jira searches issues with JQL and fetches them through REST API v2.
type Jira struct {
	adapter
}

// NewJira wraps c.
func NewJira(c *Client, opts ...Option) *Jira {
	return &Jira{adapter: newAdapter(c, opts)}
}

// Name returns "Jira".
func (j *Jira) Name() string { return "Jira" }

// Host returns the instance host name.
func (j *Jira) Host() string { return j.c.Host() }

// Login verifies the credentials. Jira always requires them.
func (j *Jira) Login(ctx context.Context) (string, error) {
	if !j.c.Authenticated() {
		return "", ErrNoCredentials
	}
	return j.c.Login(ctx, "/rest/api/2/myself")
}

// JQL renders q as a JQL expression.
func JQL(q Query) (string, error) {
	switch {
	case q.Text != "" && q.Scope != "":
		return "project = " + quote(q.Scope) + " AND text ~ " + quote(q.Text), nil
	case q.Text != "":
		return "text ~ " + quote(q.Text), nil
	case q.Scope != "":
		return "project = " + quote(q.Scope), nil
	}
	return "", ErrEmptyQuery
}

type jiraSearchResponse struct {
	Total  json.RawMessage `json:"total"`
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issues"`
}

// Search returns one page of issues matching q.
func (j *Jira) Search(ctx context.Context, q Query, offset, size int) (*Page, error) {
	jql, err := JQL(q)
	if err != nil {
		return nil, err
	}
	fields := "summary,status"
	if len(q.Fields) > 0 {
		fields = strings.Join(q.Fields, ",")
	}
	params := url.Values{
		"jql":        {jql},
		"startAt":    {strconv.Itoa(offset)},
		"maxResults": {strconv.Itoa(size)},
		"fields":     {fields},
	}

	var resp jiraSearchResponse
	if err := j.c.GetJSON(ctx, "/rest/api/2/search", params, &resp); err != nil {
		return nil, err
	}
	page := &Page{Items: make([]Item, 0, len(resp.Issues))}
	page.Total, page.HasTotal = parseTotal(resp.Total)
	for _, is := range resp.Issues {
		if is.Key == "" {
			continue
		}
		page.Items = append(page.Items, Item{
			ID:      is.Key,
			Summary: is.Fields.Summary,
			Status:  is.Fields.Status.Name,
		})
	}
	return page, nil
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string  `json:"summary"`
		Description *string `json:"description"`
		Created     string  `json:"created"`
		Updated     string  `json:"updated"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		Comment struct {
			Comments []struct {
				Body string `json:"body"`
			} `json:"comments"`
		} `json:"comment"`
		Attachment []struct {
			Filename string `json:"filename"`
			Content  string `json:"content"`
			MimeType string `json:"mimeType"`
			Size     int64  `json:"size"`
		} `json:"attachment"`
	} `json:"fields"`
}

// FetchDocument loads one issue. The description becomes the primary
// text, each comment body a secondary text.
func (j *Jira) FetchDocument(ctx context.Context, key string) (*Document, error) {
	path := "/rest/api/2/issue/" + url.PathEscape(key)
	var is jiraIssue
	if err := j.c.GetJSON(ctx, path, url.Values{"fields": {jiraDocumentFields}}, &is); err != nil {
		return nil, err
	}
	if is.Key == "" {
		is.Key = key
	}

	f := is.Fields
	doc := &Document{
		ID:      is.Key,
		Summary: f.Summary,
		Space:   f.Project.Key,
		URL:     j.c.BaseURL() + "/browse/" + url.PathEscape(is.Key),
		Status:  f.Status.Name,
		Created: f.Created,
		Updated: f.Updated,
	}
	if f.Description != nil {
		doc.PrimaryText = j.scanText(*f.Description)
		doc.Markdown = j.conv.Jira(*f.Description)
	}
	for _, cm := range f.Comment.Comments {
		doc.SecondaryTexts = append(doc.SecondaryTexts, j.scanText(cm.Body))
		doc.SecondaryMarkdown = append(doc.SecondaryMarkdown, j.conv.Jira(cm.Body))
	}
	for _, a := range f.Attachment {
		doc.Attachments = append(doc.Attachments, Attachment{
			Name:     a.Filename,
			URL:      a.Content,
			MimeType: a.MimeType,
			Size:     a.Size,
		})
	}
	return doc, nil
}

func (j *Jira) scanText(s string) string {
	if j.raw {
		return s
	}
	return markup.JiraToText(s)
}

// Projects lists every project visible to the caller.
func (j *Jira) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := j.c.GetJSON(ctx, "/rest/api/2/project", nil, &out); err != nil {
		return nil, fmt.Errorf("tracker: list projects: %w", err)
	}
	return out, nil
}
