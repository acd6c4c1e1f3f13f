// Package enumerate walks paginated search results into a deduplicated
// candidate set.
package enumerate

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/recon/tracker"
)

// Searcher returns one page of hits for a query.
type Searcher interface {
	Search(ctx context.Context, q tracker.Query, offset, size int) (*tracker.Page, error)
}

// Candidate is a discovered document not yet fetched. Keyword is the
// label of the first query that surfaced it.
type Candidate struct {
	ID      string
	Summary string
	Status  string
	Keyword string
}

// CandidateSet is a set of candidates keyed by ID, safe for concurrent use.
type CandidateSet struct {
	mu    sync.Mutex
	items map[string]Candidate
}

// NewCandidateSet returns an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{items: make(map[string]Candidate)}
}

// Add inserts it unless its ID is already present. It reports whether
// the set grew.
func (s *CandidateSet) Add(it tracker.Item, keyword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return false
	}
	s.items[it.ID] = Candidate{ID: it.ID, Summary: it.Summary, Status: it.Status, Keyword: keyword}
	return true
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns the candidate with the given ID.
func (s *CandidateSet) Get(id string) (Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	return c, ok
}

// IDs returns the candidate IDs in sorted order.
func (s *CandidateSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Candidates returns every candidate ordered by ID.
func (s *CandidateSet) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Candidate, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Config bounds enumeration.
type Config struct {
	PageSize    int // items per request. Default: 100.
	MaxResults  int // stop once this many hits were requested for one query. 0 = unbounded.
	Concurrency int // queries run in parallel by EnumerateAll. Default: 10.
}

func (c *Config) defaults() {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.Concurrency < 1 {
		c.Concurrency = 10
	}
}

// Enumerator pages through search results.
type Enumerator struct {
	src    Searcher
	cfg    Config
	logger *slog.Logger
}

// New creates an Enumerator.
func New(src Searcher, cfg Config, logger *slog.Logger) *Enumerator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{src: src, cfg: cfg, logger: logger}
}

// Enumerate walks every page of q and returns the hits as a set.
func (e *Enumerator) Enumerate(ctx context.Context, q tracker.Query) *CandidateSet {
	set := NewCandidateSet()
	e.Into(ctx, q, set)
	return set
}

// Into walks every page of q, adding hits to set. It stops on an empty
// page, once the offset reaches the reported total or MaxResults, when
// a page brings nothing new for this query, on a search error, or when
// ctx is done. Errors are logged; whatever was gathered stays in set.
// It returns the number of distinct hits seen for q.
func (e *Enumerator) Into(ctx context.Context, q tracker.Query, set *CandidateSet) int {
	return e.into(ctx, q, set, nil)
}

// into is Into with a callback run after every search request. last is
// true on the request that ends the walk.
func (e *Enumerator) into(ctx context.Context, q tracker.Query, set *CandidateSet, onPage func(last bool)) int {
	label := q.Label()
	seen := make(map[string]struct{})
	pageDone := func(last bool) {
		if onPage != nil {
			onPage(last)
		}
	}
	offset := 0
	for {
		if ctx.Err() != nil {
			e.logger.Debug("enumerate: cancelled", "query", label, "offset", offset)
			return len(seen)
		}
		size := e.cfg.PageSize
		if e.cfg.MaxResults > 0 {
			size = min(size, e.cfg.MaxResults-offset)
		}

		page, err := e.src.Search(ctx, q, offset, size)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Warn("enumerate: search failed", "query", label, "offset", offset, "error", err)
			}
			pageDone(true)
			return len(seen)
		}
		if len(page.Items) == 0 {
			pageDone(true)
			return len(seen)
		}

		fresh := 0
		for _, it := range page.Items {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			fresh++
			set.Add(it, label)
		}
		if fresh == 0 {
			e.logger.Warn("enumerate: page repeated, stopping", "query", label, "offset", offset)
			pageDone(true)
			return len(seen)
		}

		offset += len(page.Items)
		last := (page.HasTotal && offset >= page.Total) ||
			(e.cfg.MaxResults > 0 && offset >= e.cfg.MaxResults)
		pageDone(last)
		if last {
			return len(seen)
		}
	}
}

// EnumerateAll runs every query, at most Concurrency at a time, and
// unions the hits. A candidate found by several queries appears once.
//
// progress, if not nil, is called after each search request with the
// pages read so far and, as total, that count plus the queries still
// walking. The two meet on the last page of the last query. Calls are
// serialized.
func (e *Enumerator) EnumerateAll(ctx context.Context, qs []tracker.Query, progress func(done, total int)) *CandidateSet {
	set := NewCandidateSet()

	var mu sync.Mutex
	pages, finished := 0, 0
	onPage := func(last bool) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pages++
		if last {
			finished++
		}
		progress(pages, pages+len(qs)-finished)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, q := range qs {
		g.Go(func() error {
			n := e.into(gctx, q, set, onPage)
			e.logger.Debug("enumerate: query done", "query", q.Label(), "hits", n)
			return nil
		})
	}
	_ = g.Wait()
	return set
}
