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

// Confluence searches pages with CQL and fetches their storage body and
// attachments.
type Confluence struct {
	adapter
}

// NewConfluence wraps c.
func NewConfluence(c *Client, opts ...Option) *Confluence {
	return &Confluence{adapter: newAdapter(c, opts)}
}

// Name returns "Confluence".
func (cf *Confluence) Name() string { return "Confluence" }

// Host returns the instance host name.
func (cf *Confluence) Host() string { return cf.c.Host() }

// Login verifies the credentials. Without credentials Confluence is used
// anonymously and "anonymous" is returned.
func (cf *Confluence) Login(ctx context.Context) (string, error) {
	if !cf.c.Authenticated() {
		return "anonymous", nil
	}
	return cf.c.Login(ctx, "/rest/api/user/current", "/wiki/rest/api/user/current")
}

// CQL renders a keyword query as a CQL expression.
func CQL(q Query) (string, error) {
	switch {
	case q.Text != "" && q.Scope != "":
		return "text ~ " + quote(q.Text) + " AND space = " + quote(q.Scope), nil
	case q.Text != "":
		return "text ~ " + quote(q.Text), nil
	}
	return "", ErrEmptyQuery
}

type confluenceList struct {
	Results []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	} `json:"results"`
	TotalSize json.RawMessage `json:"totalSize"`
}

// Search returns one page of content. A keyword runs a CQL search; a
// scope alone lists the pages of that space.
func (cf *Confluence) Search(ctx context.Context, q Query, offset, size int) (*Page, error) {
	params := url.Values{
		"start": {strconv.Itoa(offset)},
		"limit": {strconv.Itoa(size)},
	}
	path := "/rest/api/content/search"
	switch {
	case q.Text != "":
		cql, err := CQL(q)
		if err != nil {
			return nil, err
		}
		params.Set("cql", cql)
	case q.Scope != "":
		path = "/rest/api/content"
		params.Set("spaceKey", q.Scope)
		params.Set("type", "page")
	default:
		return nil, ErrEmptyQuery
	}

	var resp confluenceList
	if err := cf.c.GetJSON(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	page := &Page{Items: make([]Item, 0, len(resp.Results))}
	page.Total, page.HasTotal = parseTotal(resp.TotalSize)
	for _, r := range resp.Results {
		if r.ID == "" {
			continue
		}
		page.Items = append(page.Items, Item{ID: r.ID, Summary: r.Title, Status: r.Status})
	}
	return page, nil
}

type confluencePage struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Body   struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type confluenceAttachments struct {
	Results []struct {
		Title      string `json:"title"`
		Extensions struct {
			MediaType string `json:"mediaType"`
			FileSize  int64  `json:"fileSize"`
		} `json:"extensions"`
		Links struct {
			Download string `json:"download"`
		} `json:"_links"`
	} `json:"results"`
}

// FetchDocument loads one page. The flattened storage body becomes the
// primary text and its markdown rendering the Markdown field. Each
// attachment contributes "<title> <download URL>" as a secondary text. A
// failed attachment listing is logged and leaves the page without
// secondary texts.
func (cf *Confluence) FetchDocument(ctx context.Context, id string) (*Document, error) {
	path := "/rest/api/content/" + url.PathEscape(id)
	var p confluencePage
	if err := cf.c.GetJSON(ctx, path, url.Values{"expand": {"body.storage,version,space"}}, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = id
	}

	doc := &Document{
		ID:      p.ID,
		Summary: p.Title,
		Space:   p.Space.Key,
		Status:  p.Status,
		Updated: p.Version.When,
	}
	if p.Links.WebUI != "" {
		doc.URL = cf.c.BaseURL() + p.Links.WebUI
	}
	storage := p.Body.Storage.Value
	if cf.raw {
		doc.PrimaryText = storage
	} else {
		doc.PrimaryText = markup.StorageText(storage)
	}
	doc.Markdown = cf.conv.Storage(storage, cf.c.BaseURL())

	var atts confluenceAttachments
	if err := cf.c.GetJSON(ctx, path+"/child/attachment", nil, &atts); err != nil {
		cf.c.logger.WarnContext(ctx, "tracker: attachment listing failed", "id", id, "error", err)
		return doc, nil
	}
	for _, a := range atts.Results {
		att := Attachment{
			Name:     a.Title,
			MimeType: a.Extensions.MediaType,
			Size:     a.Extensions.FileSize,
		}
		if a.Links.Download != "" {
			att.URL = cf.c.BaseURL() + a.Links.Download
		}
		doc.Attachments = append(doc.Attachments, att)
		doc.SecondaryTexts = append(doc.SecondaryTexts, strings.TrimSpace(att.Name+" "+att.URL))
	}
	return doc, nil
}

// Spaces lists every space visible to the caller, following pagination.
func (cf *Confluence) Spaces(ctx context.Context) ([]Project, error) {
	const limit = 100
	var out []Project
	for start := 0; ; start += limit {
		var resp struct {
			Results []Project `json:"results"`
		}
		params := url.Values{"start": {strconv.Itoa(start)}, "limit": {strconv.Itoa(limit)}}
		if err := cf.c.GetJSON(ctx, "/rest/api/space", params, &resp); err != nil {
			return out, fmt.Errorf("tracker: list spaces: %w", err)
		}
		out = append(out, resp.Results...)
		if len(resp.Results) < limit {
			return out, nil
		}
	}
}

// Projects is Spaces, so both adapters list their scopes the same way.
func (cf *Confluence) Projects(ctx context.Context) ([]Project, error) {
	return cf.Spaces(ctx)
}
