package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hazyhaar/recon/recon"
	"github.com/hazyhaar/recon/tracker"
)

// DisplayLimit caps the match text shown in one table cell, in runes.
const DisplayLimit = 500

// MaxListed caps the rows of listing tables.
const MaxListed = 500

// docLabel names the document kind of a service for column headers.
func docLabel(service string) string {
	if strings.EqualFold(service, "confluence") {
		return "Page"
	}
	return "Issue"
}

func joinOrDash(ms []string) string {
	if len(ms) == 0 {
		return "--"
	}
	return strings.Join(ms, "\n")
}

// Secrets writes the findings table of a secrets run. It writes a single
// line when nothing matched.
func Secrets(w io.Writer, rep *recon.Report) error {
	if len(rep.Results) == 0 {
		_, err := fmt.Fprintln(w, "No secrets found in the scanned documents.")
		return err
	}
	primary, secondary := "Description Matches", "Comment Matches"
	if strings.EqualFold(rep.Service, "confluence") {
		primary, secondary = "Body Matches", "Attachment Matches"
	}
	t := NewTable("Secrets Found", docLabel(rep.Service)+" ID", primary, secondary)
	t.Lines = true
	for _, id := range rep.Results.IDs() {
		m := rep.Results[id]
		t.AddRow(id, Truncate(joinOrDash(m.Primary), DisplayLimit), Truncate(joinOrDash(m.Secondary), DisplayLimit))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Total documents with secrets: %d\n", len(rep.Results))
	return err
}

// Scanned writes one row per fetched document.
func Scanned(w io.Writer, rep *recon.Report) error {
	if len(rep.Documents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rep.Documents))
	for id := range rep.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	label := docLabel(rep.Service)
	t := NewTable(fmt.Sprintf("Scanned %ss (%d)", label, len(ids)), label+" Key", "Summary")
	for _, id := range ids {
		summary := rep.Documents[id].Summary
		if summary == "" {
			summary = "N/A"
		}
		t.AddRow(id, summary)
	}
	return t.Render(w)
}

// Candidates writes the enumerated candidates with the keyword that
// surfaced each one, capped at MaxListed rows.
func Candidates(w io.Writer, rep *recon.Report) error {
	if len(rep.Candidates) == 0 {
		_, err := fmt.Fprintln(w, "No matching documents found.")
		return err
	}
	label := docLabel(rep.Service)
	t := NewTable(fmt.Sprintf("%ss Found (%d)", label, len(rep.Candidates)), label+" Key", "Summary", "Status", "Matched Keyword")
	for i, c := range rep.Candidates {
		if i == MaxListed {
			t.AddRow("...", fmt.Sprintf("... %d more ...", len(rep.Candidates)-MaxListed), "...", "...")
			break
		}
		t.AddRow(c.ID, c.Summary, c.Status, c.Keyword)
	}
	return t.Render(w)
}

// KeywordHits writes how many candidates each keyword surfaced first,
// most productive keyword first.
func KeywordHits(w io.Writer, rep *recon.Report) error {
	hits := rep.KeywordHits()
	if len(hits) == 0 {
		return nil
	}
	keys := make([]string, 0, len(hits))
	for k := range hits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if hits[keys[i]] != hits[keys[j]] {
			return hits[keys[i]] > hits[keys[j]]
		}
		return keys[i] < keys[j]
	})
	t := NewTable("Keyword Hits", "Keyword", "Documents")
	for _, k := range keys {
		label := k
		if label == "" {
			label = "(listing)"
		}
		t.AddRow(label, fmt.Sprint(hits[k]))
	}
	return t.Render(w)
}

// Projects writes a project or space listing.
func Projects(w io.Writer, title string, ps []tracker.Project) error {
	t := NewTable(fmt.Sprintf("%s (%d)", title, len(ps)), "Key", "Name")
	for _, p := range ps {
		t.AddRow(p.Key, p.Name)
	}
	return t.Render(w)
}

// Rules writes the compiled rule names and patterns.
func Rules(w io.Writer, infos []recon.RuleInfo) error {
	t := NewTable(fmt.Sprintf("Rules (%d)", len(infos)), "Name", "Pattern")
	for _, r := range infos {
		t.AddRow(r.Name, r.Pattern)
	}
	return t.Render(w)
}

// Summary writes the run counts on one line each.
func Summary(w io.Writer, rep *recon.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s on %s\n", rep.Service, rep.Mode, rep.Host)
	fmt.Fprintf(&b, "  found:   %d\n", rep.Found)
	fmt.Fprintf(&b, "  fetched: %d\n", rep.Fetched)
	fmt.Fprintf(&b, "  scanned: %d\n", rep.Scanned)
	fmt.Fprintf(&b, "  matched: %d\n", rep.Matched)
	if len(rep.RuleWarnings) > 0 {
		fmt.Fprintf(&b, "  rules dropped: %d\n", len(rep.RuleWarnings))
	}
	if rep.RunID != "" {
		fmt.Fprintf(&b, "  run id:  %s\n", rep.RunID)
	}
	if rep.Cancelled {
		b.WriteString("  (interrupted, partial results)\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
