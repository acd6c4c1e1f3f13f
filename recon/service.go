// Package recon searches an issue tracker for leaked secrets, URLs and IP
// addresses.
//
// A run enumerates candidate documents through the tracker's paginated
// search, fetches them with a bounded worker pool, and scans the fetched
// text with a rule set (secrets mode) or with the URL/IPv4 extractor
// (extract mode). Per-item failures are logged and skipped; only
// configuration errors stop a run.
package recon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hazyhaar/recon/recon/internal/buffer"
	"github.com/hazyhaar/recon/recon/internal/enumerate"
	"github.com/hazyhaar/recon/recon/internal/fetch"
	"github.com/hazyhaar/recon/recon/internal/scan"
	"github.com/hazyhaar/recon/recon/internal/store"
	"github.com/hazyhaar/recon/rules"
	"github.com/hazyhaar/recon/tracker"
)

// Mode selects what a run looks for.
type Mode string

const (
	ModeSecrets Mode = "secrets"
	ModeExtract Mode = "extract"
)

// Plan describes one run.
type Plan struct {
	Mode    Mode
	Queries []tracker.Query
}

// Report is the outcome of a run. Documents holds every fetched document;
// Results is set in secrets mode, Extraction in extract mode.
type Report struct {
	RunID   string
	Service string
	Host    string
	Mode    Mode
	Queries []string

	Found   int // distinct candidates enumerated
	Fetched int // documents fetched completely
	Scanned int // documents scanned
	Matched int // documents with a match (secrets) or distinct URLs+IPs (extract)

	Candidates   []Candidate
	Documents    map[string]*tracker.Document
	Results      ScanResult
	Extraction   *ExtractionResult
	RuleWarnings []string
	Cancelled    bool

	StartedAt time.Time
	Duration  time.Duration
}

// KeywordHits counts candidates per keyword that first surfaced them.
func (r *Report) KeywordHits() map[string]int {
	out := make(map[string]int)
	for _, c := range r.Candidates {
		out[c.Keyword]++
	}
	return out
}

// Candidate returns the candidate with the given ID.
func (r *Report) Candidate(id string) (Candidate, bool) {
	i := sort.Search(len(r.Candidates), func(i int) bool { return r.Candidates[i].ID >= id })
	if i < len(r.Candidates) && r.Candidates[i].ID == id {
		return r.Candidates[i], true
	}
	return Candidate{}, false
}

// Service runs the search, fetch and scan pipeline against one source.
type Service struct {
	src          Source
	cfg          *Config
	logger       *slog.Logger
	rules        *rules.RuleSet
	ruleWarnings []string
	extractor    *scan.Extractor
	store        *store.Store
	buffer       *buffer.Writer
	progress     Progress
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists every run to st.
func WithStore(st *Store) Option {
	return func(s *Service) { s.store = st }
}

// WithDownloads writes every fetched document as markdown under dir.
func WithDownloads(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.buffer = buffer.NewWriter(dir)
		}
	}
}

// WithProgress sends progress events to p.
func WithProgress(p Progress) Option {
	return func(s *Service) { s.progress = p }
}

// WithRuleSet replaces the rules built from the configuration.
func WithRuleSet(rs *rules.RuleSet) Option {
	return func(s *Service) { s.rules = rs }
}

// New creates a Service. cfg may be nil for defaults. The rule set is the
// builtin table overridden by cfg.Scan.RulesFile; dropped rules are
// logged and kept in RuleWarnings.
func New(src Source, cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		src:       src,
		cfg:       cfg,
		logger:    logger,
		extractor: scan.NewExtractor(),
		progress:  NopProgress,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.rules == nil {
		rs, warns, err := LoadRules(cfg.Scan.RulesFile, logger)
		if err != nil {
			return nil, err
		}
		svc.rules, svc.ruleWarnings = rs, warns
	}
	return svc, nil
}

// LoadRules compiles the builtin rules overridden by the YAML file at path
// (empty path means builtins only). Skipped entries and dropped rules are
// logged and returned as warnings; only an unreadable file is an error.
func LoadRules(path string, logger *slog.Logger) (*rules.RuleSet, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var override map[string]string
	var warnings []string
	if path != "" {
		var warns []string
		var err error
		override, warns, err = rules.LoadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("recon: rules: %w", err)
		}
		for _, w := range warns {
			logger.Warn("recon: rule entry skipped", "file", path, "reason", w)
			warnings = append(warnings, w)
		}
	}
	rs, errs := rules.Compile(rules.Builtin(), override)
	for _, e := range errs {
		logger.Warn("recon: rule dropped", "rule", e.Name, "error", e.Err)
		warnings = append(warnings, e.Error())
	}
	return rs, warnings, nil
}

// Rules returns the compiled rule set.
func (s *Service) Rules() *rules.RuleSet { return s.rules }

// RuleWarnings lists the rules dropped at construction.
func (s *Service) RuleWarnings() []string { return append([]string(nil), s.ruleWarnings...) }

// Config returns the validated configuration.
func (s *Service) Config() *Config { return s.cfg }

// Scopes lists the source's projects or spaces.
func (s *Service) Scopes(ctx context.Context) ([]tracker.Project, error) {
	sc, ok := s.src.(Scoper)
	if !ok {
		return nil, ErrNoScopes
	}
	return sc.Projects(ctx)
}

// Run executes plan. Cancelling ctx stops enumeration and fetching early;
// the documents already fetched are still scanned and reported, with
// Report.Cancelled set. An error is returned for an invalid plan or when
// the configured store rejects the run; the report is still returned in
// the latter case.
func (s *Service) Run(ctx context.Context, plan Plan) (*Report, error) {
	if plan.Mode == "" {
		plan.Mode = ModeSecrets
	}
	if plan.Mode != ModeSecrets && plan.Mode != ModeExtract {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, plan.Mode)
	}
	if len(plan.Queries) == 0 {
		return nil, ErrNoQueries
	}

	rep := &Report{
		Mode:         plan.Mode,
		StartedAt:    time.Now(),
		RuleWarnings: s.RuleWarnings(),
	}
	if n, ok := s.src.(Named); ok {
		rep.Service, rep.Host = n.Name(), n.Host()
	}
	for _, q := range plan.Queries {
		rep.Queries = append(rep.Queries, q.Label())
	}
	progress := &lockedProgress{p: s.progress}
	log := s.logger.With("service", rep.Service, "mode", string(plan.Mode))

	enum := enumerate.New(s.src, enumerate.Config{
		PageSize:    s.cfg.Scan.PageSize,
		MaxResults:  s.cfg.Scan.MaxResults,
		Concurrency: s.cfg.Scan.Concurrency,
	}, s.logger)
	set := enum.EnumerateAll(ctx, plan.Queries, progress.stage(StageEnumerate))
	rep.Candidates = set.Candidates()
	rep.Found = len(rep.Candidates)
	log.Info("recon: enumeration done", "queries", len(plan.Queries), "found", rep.Found)

	docs := fetch.FetchAll(ctx, s.src, set.IDs(), fetch.Options{
		Concurrency: s.cfg.Scan.Concurrency,
		Logger:      s.logger,
		Progress:    progress.stage(StageFetch),
	})
	rep.Documents = docs
	rep.Fetched = len(docs)
	log.Info("recon: fetch done", "fetched", rep.Fetched, "failed", rep.Found-rep.Fetched)

	if s.buffer != nil {
		s.download(ctx, rep, progress)
	}

	switch plan.Mode {
	case ModeSecrets:
		rep.Results = scan.ScanAllProgress(s.rules, docs, progress.stage(StageScan))
		rep.Matched = len(rep.Results)
	case ModeExtract:
		ext := s.extractor.ExtractAllProgress(docs, progress.stage(StageScan))
		rep.Extraction = &ext
		rep.Matched = len(ext.URLs) + len(ext.IPs)
	}
	rep.Scanned = len(docs)

	rep.Cancelled = ctx.Err() != nil
	rep.Duration = time.Since(rep.StartedAt)
	log.Info("recon: run done",
		"found", rep.Found,
		"fetched", rep.Fetched,
		"scanned", rep.Scanned,
		"matched", rep.Matched,
		"cancelled", rep.Cancelled,
		"duration", rep.Duration)

	if s.store != nil {
		if err := s.save(context.WithoutCancel(ctx), rep); err != nil {
			return rep, fmt.Errorf("recon: save run: %w", err)
		}
	}
	return rep, nil
}

// ScanText applies the rule set to text and returns the matches per rule.
func (s *Service) ScanText(text string) map[string][]string {
	return s.rules.ScanByRule(text)
}

func (s *Service) download(ctx context.Context, rep *Report, progress *lockedProgress) {
	ids := make([]string, 0, len(rep.Documents))
	for id := range rep.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	service, host := rep.Service, rep.Host
	if service == "" {
		service = "Tracker"
	}
	if host == "" {
		host = "unknown"
	}
	written := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.buffer.Write(ctx, service, host, rep.Documents[id]); err != nil {
			s.logger.Warn("recon: download failed", "id", id, "error", err)
		} else {
			written++
		}
		progress.Advance(StageDownload, i+1, len(ids))
	}
	s.logger.Info("recon: downloads written", "dir", s.buffer.Dir(), "count", written)
}

func (s *Service) save(ctx context.Context, rep *Report) error {
	run := &store.Run{
		Service:      rep.Service,
		Host:         rep.Host,
		Mode:         string(rep.Mode),
		Queries:      rep.Queries,
		Found:        rep.Found,
		Fetched:      rep.Fetched,
		Scanned:      rep.Scanned,
		Matched:      rep.Matched,
		RuleWarnings: rep.RuleWarnings,
		StartedAt:    rep.StartedAt,
		Duration:     rep.Duration,
	}
	if err := s.store.SaveRun(ctx, run, Findings(rep), rep.Extraction); err != nil {
		return err
	}
	rep.RunID = run.ID
	return nil
}

// Findings flattens the scan results of rep into one row per distinct
// match per document field, ordered by document.
func Findings(rep *Report) []Finding {
	var out []Finding
	for _, id := range rep.Results.IDs() {
		m := rep.Results[id]
		c, _ := rep.Candidate(id)
		for _, v := range m.Primary {
			out = append(out, Finding{DocID: id, Field: "primary", Match: v, Keyword: c.Keyword, Summary: c.Summary})
		}
		for _, v := range m.Secondary {
			out = append(out, Finding{DocID: id, Field: "secondary", Match: v, Keyword: c.Keyword, Summary: c.Summary})
		}
	}
	return out
}
