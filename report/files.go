package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/recon/recon"
)

const separator = "----------------------------------------"

// WriteResults writes the plain-text results of a secrets run: a header,
// then one block per matching document in ID order.
func WriteResults(w io.Writer, rep *recon.Report) error {
	label := docLabel(rep.Service)
	primary, secondary := "Description Matches", "Comment Matches"
	if strings.EqualFold(rep.Service, "confluence") {
		primary, secondary = "Body Matches", "Attachment Matches"
	}
	blocks := make([]string, 0, len(rep.Results))
	for _, id := range rep.Results.IDs() {
		m := rep.Results[id]
		blocks = append(blocks, fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n%s",
			label, id, primary, joinOrDash(m.Primary), secondary, joinOrDash(m.Secondary), separator))
	}
	_, err := io.WriteString(w, "Recon Scan Results\n====================\n\n"+strings.Join(blocks, "\n\n"))
	return err
}

// WriteExtraction writes the URLs then the IPs of an extract run.
func WriteExtraction(w io.Writer, ext *recon.ExtractionResult) error {
	var urls, ips []string
	if ext != nil {
		urls, ips = ext.URLs, ext.IPs
	}
	_, err := fmt.Fprintf(w, "# Extracted URLs\n%s\n\n# Extracted IPs\n%s",
		strings.Join(urls, "\n"), strings.Join(ips, "\n"))
	return err
}

// SaveFile writes path atomically through fn, creating parent directories.
func SaveFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdir: %w", err)
		}
	}
	var b strings.Builder
	if err := fn(&b); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("report: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: rename: %w", err)
	}
	return nil
}
