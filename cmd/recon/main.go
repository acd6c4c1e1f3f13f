// Command recon searches Jira and Confluence instances for leaked secrets,
// URLs and IP addresses.
//
// Usage:
//
//	recon jira -url https://jira.example.com -u alice -p secret          # keyword secret scan
//	recon jira -url ... -token T -project OPS -mode extract              # URLs and IPs of one project
//	recon confluence -url https://wiki.example.com -list                 # list spaces
//	recon rules [-rules custom.yaml] [text ...]                          # list rules or test text
//	recon serve -db recon.db -addr :8086                                 # read-only API over stored runs
//	recon mcp -db recon.db                                               # MCP tools over stdio
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/recon/recon"
	"github.com/hazyhaar/recon/report"
	"github.com/hazyhaar/recon/tracker"
)

const usage = `usage: recon <command> [flags]

commands:
  jira        scan a Jira instance
  confluence  scan a Confluence instance
  rules       list the compiled rules, or scan the given text with them
  serve       serve stored runs over HTTP
  mcp         serve recon tools over MCP (stdio)

run "recon <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("recon: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "jira", "confluence":
		return runScan(ctx, cmd, args, stdout, stderr)
	case "rules":
		return runRules(args, stdin, stdout, stderr)
	case "serve":
		return runServe(ctx, args, stderr)
	case "mcp":
		return runMCP(ctx, args, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

// source is what the scan command needs from a tracker adapter.
type source interface {
	recon.Source
	recon.Named
	recon.Scoper
	Login(ctx context.Context) (string, error)
}

type scanFlags struct {
	config     string
	url        string
	username   string
	password   string
	token      string
	proxy      string
	project    string
	keywords   string
	mode       string
	threads    int
	pageSize   int
	maxResults int
	rules      string
	db         string
	download   string
	out        string
	extractOut string
	raw        bool
	insecure   bool
	list       bool
	quiet      bool
	logLevel   string
	logFormat  string
}

func runScan(ctx context.Context, service string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(service, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f scanFlags
	fs.StringVar(&f.config, "config", env("RECON_CONFIG", ""), "YAML config file")
	fs.StringVar(&f.url, "url", "", "base URL of the instance")
	fs.StringVar(&f.username, "u", "", "username for basic auth")
	fs.StringVar(&f.password, "p", env("RECON_PASSWORD", ""), "password for basic auth")
	fs.StringVar(&f.token, "token", env("RECON_TOKEN", ""), "bearer token (personal access token)")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP proxy URL")
	fs.StringVar(&f.project, "project", "", "restrict to one project (Jira) or space (Confluence) key")
	fs.StringVar(&f.keywords, "keywords", "", "comma-separated search keywords (default: built-in list)")
	fs.StringVar(&f.mode, "mode", "secrets", "secrets or extract")
	fs.IntVar(&f.threads, "threads", 0, "concurrent requests (default 10)")
	fs.IntVar(&f.pageSize, "page-size", 0, "search page size (default 100)")
	fs.IntVar(&f.maxResults, "max-results", 0, "stop each query after this many hits (0 = no limit)")
	fs.StringVar(&f.rules, "rules", "", "YAML file of extra or overriding rules")
	fs.StringVar(&f.db, "db", env("RECON_DB", ""), "SQLite file to store the run in")
	fs.StringVar(&f.download, "download", "", "write fetched documents as markdown under this directory")
	fs.StringVar(&f.out, "out", "", "write the secrets results file here")
	fs.StringVar(&f.extractOut, "extract-out", "", "write extracted URLs and IPs here (default: stdout)")
	fs.BoolVar(&f.raw, "raw", false, "scan wiki markup / storage XHTML without converting it")
	fs.BoolVar(&f.insecure, "insecure", false, "skip TLS certificate verification")
	fs.BoolVar(&f.list, "list", false, "list projects or spaces and exit")
	fs.BoolVar(&f.quiet, "q", false, "no progress bar")
	fs.StringVar(&f.logLevel, "log-level", env("LOG_LEVEL", ""), "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", env("LOG_FORMAT", ""), "text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := &recon.Config{}
	if f.config != "" {
		var err error
		if cfg, err = recon.LoadConfigFile(f.config); err != nil {
			return err
		}
	}
	f.apply(cfg, fs)
	cfg.Tracker.Service = service
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode := recon.Mode(strings.ToLower(f.mode))
	if mode != recon.ModeSecrets && mode != recon.ModeExtract {
		return fmt.Errorf("%w: %q", recon.ErrInvalidMode, f.mode)
	}

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	slog.SetDefault(logger)

	client, err := tracker.New(cfg.ClientConfig(), logger)
	if err != nil {
		return err
	}
	var opts []tracker.Option
	if cfg.Scan.Raw {
		opts = append(opts, tracker.WithRawMarkup())
	}
	var src source
	if service == "confluence" {
		src = tracker.NewConfluence(client, opts...)
	} else {
		src = tracker.NewJira(client, opts...)
	}

	who, err := src.Login(ctx)
	if err != nil {
		return err
	}
	logger.Info("recon: logged in", "service", src.Name(), "host", src.Host(), "user", who)

	if f.list {
		ps, err := src.Projects(ctx)
		if err != nil {
			return err
		}
		title := "Jira Projects"
		if service == "confluence" {
			title = "Confluence Spaces"
		}
		return report.Projects(stdout, title, ps)
	}

	queries, err := buildQueries(ctx, src, mode, cfg.Scan.Keywords, f.project)
	if err != nil {
		return err
	}

	var svcOpts []recon.Option
	if cfg.Output.DBPath != "" {
		st, err := recon.OpenStore(cfg.Output.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		svcOpts = append(svcOpts, recon.WithStore(st))
	}
	if cfg.Output.DownloadDir != "" {
		svcOpts = append(svcOpts, recon.WithDownloads(cfg.Output.DownloadDir))
	}
	var bar *report.ProgressBar
	if !f.quiet {
		bar = report.NewProgressBar(stderr, 30)
		svcOpts = append(svcOpts, recon.WithProgress(bar))
	}

	svc, err := recon.New(src, cfg, logger, svcOpts...)
	if err != nil {
		return err
	}
	rep, runErr := svc.Run(ctx, recon.Plan{Mode: mode, Queries: queries})
	if bar != nil {
		bar.Done()
	}
	if rep == nil {
		return runErr
	}
	if err := printReport(stdout, rep, cfg.Output); err != nil {
		return err
	}
	return runErr
}

// apply copies the flags that were set on the command line over cfg.
func (f *scanFlags) apply(cfg *recon.Config, fs *flag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	str := func(name, v string, dst *string) {
		if set[name] || (*dst == "" && v != "") {
			*dst = v
		}
	}
	t, s, o := &cfg.Tracker, &cfg.Scan, &cfg.Output
	str("url", f.url, &t.URL)
	str("u", f.username, &t.Username)
	str("p", f.password, &t.Password)
	str("token", f.token, &t.Token)
	str("proxy", f.proxy, &t.Proxy)
	str("rules", f.rules, &s.RulesFile)
	str("db", f.db, &o.DBPath)
	str("download", f.download, &o.DownloadDir)
	str("out", f.out, &o.ResultsFile)
	str("extract-out", f.extractOut, &o.ExtractFile)
	str("log-level", f.logLevel, &cfg.Logging.Level)
	str("log-format", f.logFormat, &cfg.Logging.Format)
	if set["threads"] {
		s.Concurrency = f.threads
	}
	if set["page-size"] {
		s.PageSize = f.pageSize
	}
	if set["max-results"] {
		s.MaxResults = f.maxResults
	}
	if set["keywords"] {
		s.Keywords = splitList(f.keywords)
	}
	if set["raw"] {
		s.Raw = f.raw
	}
	if set["insecure"] {
		t.Insecure = f.insecure
	}
}

// buildQueries turns the command line into search queries. Secrets mode
// searches every keyword, scoped to project when given. Extract mode
// lists the project, or every project when none is given.
func buildQueries(ctx context.Context, src source, mode recon.Mode, keywords []string, project string) ([]tracker.Query, error) {
	if mode != recon.ModeExtract {
		return recon.KeywordQueries(keywords, project), nil
	}
	if project != "" {
		return recon.ScopeQueries([]string{project}), nil
	}
	ps, err := src.Projects(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ps))
	for _, p := range ps {
		keys = append(keys, p.Key)
	}
	if len(keys) == 0 {
		return nil, recon.ErrNoScopes
	}
	return recon.ScopeQueries(keys), nil
}

func printReport(w io.Writer, rep *recon.Report, out recon.OutputConfig) error {
	if err := report.Candidates(w, rep); err != nil {
		return err
	}
	if err := report.KeywordHits(w, rep); err != nil {
		return err
	}
	if err := report.Scanned(w, rep); err != nil {
		return err
	}

	switch rep.Mode {
	case recon.ModeExtract:
		if out.ExtractFile == "" {
			if err := report.WriteExtraction(w, rep.Extraction); err != nil {
				return err
			}
			fmt.Fprintln(w)
		} else if err := report.SaveFile(out.ExtractFile, func(fw io.Writer) error {
			return report.WriteExtraction(fw, rep.Extraction)
		}); err != nil {
			return err
		}
	default:
		if err := report.Secrets(w, rep); err != nil {
			return err
		}
		if out.ResultsFile != "" && len(rep.Results) > 0 {
			if err := report.SaveFile(out.ResultsFile, func(fw io.Writer) error {
				return report.WriteResults(fw, rep)
			}); err != nil {
				return err
			}
		}
	}
	return report.Summary(w, rep)
}

func runRules(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesFile := fs.String("rules", "", "YAML file of extra or overriding rules")
	stdinText := fs.Bool("stdin", false, "scan standard input")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(env("LOG_LEVEL", "warn"), env("LOG_FORMAT", "text"), stderr)
	rs, warnings, err := recon.LoadRules(*rulesFile, logger)
	if err != nil {
		return err
	}

	var text string
	switch {
	case *stdinText:
		data, err := io.ReadAll(bufio.NewReader(stdin))
		if err != nil {
			return err
		}
		text = string(data)
	case fs.NArg() > 0:
		text = strings.Join(fs.Args(), " ")
	default:
		if err := report.Rules(stdout, recon.RuleInfos(rs)); err != nil {
			return err
		}
		if len(warnings) > 0 {
			fmt.Fprintf(stdout, "%d rule(s) dropped\n", len(warnings))
		}
		return nil
	}

	matches := rs.ScanByRule(text)
	if len(matches) == 0 {
		fmt.Fprintln(stdout, "no match")
		return nil
	}
	t := report.NewTable("Matches", "Rule", "Match")
	t.Lines = true
	for _, name := range rs.Names() {
		if ms, ok := matches[name]; ok {
			t.AddRow(name, strings.Join(ms, "\n"))
		}
	}
	return t.Render(stdout)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", env("RECON_DB", "recon.db"), "SQLite run store")
	addr := fs.String("addr", env("RECON_ADDR", ":8086"), "listen address")
	rulesFile := fs.String("rules", "", "YAML file of extra or overriding rules")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(env("LOG_LEVEL", "info"), env("LOG_FORMAT", "json"), stderr)
	slog.SetDefault(logger)

	st, err := recon.OpenStore(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	rs, _, err := recon.LoadRules(*rulesFile, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           recon.NewHandler(st, rs, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("recon: serving", "addr", *addr, "db", *dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("recon: server stopped")
	return nil
}

func runMCP(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", env("RECON_DB", ""), "SQLite run store (run tools are disabled without it)")
	rulesFile := fs.String("rules", "", "YAML file of extra or overriding rules")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr only.
	logger := newLogger(env("LOG_LEVEL", "info"), env("LOG_FORMAT", "json"), stderr)
	slog.SetDefault(logger)

	rs, _, err := recon.LoadRules(*rulesFile, logger)
	if err != nil {
		return err
	}
	var st *recon.Store
	if *dbPath != "" {
		if st, err = recon.OpenStore(*dbPath); err != nil {
			return err
		}
		defer st.Close()
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "recon", Version: "1.0.0"}, nil)
	recon.RegisterMCP(srv, rs, st, logger)
	logger.Info("recon: mcp on stdio", "db", *dbPath, "rules", rs.Len())
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
