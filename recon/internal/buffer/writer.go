// Package buffer writes fetched documents as markdown files with YAML
// frontmatter, one file per document under <dir>/<service>/<host>/.
//
// Files are written atomically (write .tmp then rename) so a reader never
// sees a partial document.
package buffer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/recon/tracker"
)

// Metadata is the frontmatter of a written document.
type Metadata struct {
	ID          string               `yaml:"id"`
	Title       string               `yaml:"title"`
	Service     string               `yaml:"service"`
	Host        string               `yaml:"host"`
	Space       string               `yaml:"space,omitempty"`
	URL         string               `yaml:"url,omitempty"`
	Status      string               `yaml:"status,omitempty"`
	Created     string               `yaml:"created,omitempty"`
	Updated     string               `yaml:"updated,omitempty"`
	Attachments []tracker.Attachment `yaml:"attachments,omitempty"`
	FetchedAt   time.Time            `yaml:"fetched_at"`
}

// Writer deposits .md files under a root directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a Writer rooted at dir. Directories are created on
// first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the root directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores doc as <dir>/<service>/<host>/<id>.md and returns the path.
// The markdown rendering is written when the document has one, the
// scanned text otherwise. Comments (or attachment references) follow the
// body under their own heading.
func (w *Writer) Write(ctx context.Context, service, host string, doc *tracker.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(w.dir, SanitizeFilename(service), SanitizeFilename(host))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("buffer: mkdir %s: %w", dir, err)
	}

	meta := Metadata{
		ID:          doc.ID,
		Title:       doc.Summary,
		Service:     service,
		Host:        host,
		Space:       doc.Space,
		URL:         doc.URL,
		Status:      doc.Status,
		Created:     doc.Created,
		Updated:     doc.Updated,
		Attachments: doc.Attachments,
		FetchedAt:   w.now().UTC().Truncate(time.Second),
	}
	fm, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("buffer: frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	if doc.Summary != "" {
		b.WriteString("# " + doc.Summary + "\n\n")
	}
	body := doc.Markdown
	if body == "" {
		body = doc.PrimaryText
	}
	b.WriteString(body)
	b.WriteString("\n")
	secondary := doc.SecondaryMarkdown
	if len(secondary) != len(doc.SecondaryTexts) {
		secondary = doc.SecondaryTexts
	}
	if len(secondary) > 0 {
		heading := "Comments"
		if service == "Confluence" {
			heading = "Attachments"
		}
		b.WriteString("\n## " + heading + "\n")
		for i, s := range secondary {
			fmt.Fprintf(&b, "\n### %d\n\n%s\n", i+1, s)
		}
	}

	target := filepath.Join(dir, SanitizeFilename(doc.ID)+".md")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("buffer: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("buffer: rename: %w", err)
	}
	return target, nil
}

// SanitizeFilename drops the characters \ / * ? : " < > | and control
// characters, and caps the result at 200 runes. An empty result becomes
// "untitled".
func SanitizeFilename(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if strings.ContainsRune(`\/*?:"<>|`, r) || r < 0x20 || r == 0x7f {
			continue
		}
		if n == 200 {
			break
		}
		b.WriteRune(r)
		n++
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "untitled"
	}
	return out
}
