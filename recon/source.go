package recon

import (
	"context"
	"strings"

	"github.com/hazyhaar/recon/recon/internal/enumerate"
	"github.com/hazyhaar/recon/recon/internal/scan"
	"github.com/hazyhaar/recon/recon/internal/store"
	"github.com/hazyhaar/recon/tracker"
)

// Source is a searchable document collection. tracker.Jira and
// tracker.Confluence implement it.
type Source interface {
	Search(ctx context.Context, q tracker.Query, offset, size int) (*tracker.Page, error)
	FetchDocument(ctx context.Context, id string) (*tracker.Document, error)
}

// Named is implemented by sources that know their product and host; they
// name download directories and stored runs.
type Named interface {
	Name() string
	Host() string
}

// Scoper is implemented by sources that can list their projects or spaces.
type Scoper interface {
	Projects(ctx context.Context) ([]tracker.Project, error)
}

type (
	// Candidate is a discovered document ID with the first keyword that found it.
	Candidate = enumerate.Candidate
	// MatchSet holds the distinct matches of one document.
	MatchSet = scan.MatchSet
	// ScanResult maps document ID to its matches.
	ScanResult = scan.ScanResult
	// ExtractionResult lists distinct URLs and IPs.
	ExtractionResult = scan.ExtractionResult
	// Store persists runs.
	Store = store.Store
	// StoredRun is a run read back from a Store.
	StoredRun = store.Run
	// Finding is one stored match.
	Finding = store.Finding
)

// OpenStore opens the SQLite run store at path.
func OpenStore(path string) (*Store, error) {
	return store.Open(path)
}

// KeywordQueries builds one query per non-blank keyword, optionally
// restricted to scope. Duplicate keywords are dropped.
func KeywordQueries(keywords []string, scope string) []tracker.Query {
	seen := make(map[string]bool, len(keywords))
	var out []tracker.Query
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, tracker.Query{Text: k, Scope: scope})
	}
	return out
}

// ScopeQueries builds one listing query per project or space key.
func ScopeQueries(scopes []string) []tracker.Query {
	var out []tracker.Query
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, tracker.Query{Scope: s})
		}
	}
	return out
}
