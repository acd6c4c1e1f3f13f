package recon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/recon/kit"
	"github.com/hazyhaar/recon/rules"
)

// RegisterMCP registers the recon tools on an MCP server. The rule tools
// use rs; the run tools are registered only when st is not nil.
func RegisterMCP(srv *mcp.Server, rs *rules.RuleSet, st *Store, logger *slog.Logger) {
	mw := kit.Logging(logger)
	registerScanText(srv, rs, mw)
	registerRules(srv, rs, mw)
	if st == nil {
		return
	}
	registerRuns(srv, st, mw)
	registerRun(srv, st, mw)
	registerFindings(srv, st, mw)
	registerExtractions(srv, st, mw)
}

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// RuleInfos lists the rules of rs in name order.
func RuleInfos(rs *rules.RuleSet) []RuleInfo {
	out := make([]RuleInfo, 0, rs.Len())
	for _, r := range rs.Rules() {
		out = append(out, RuleInfo{Name: r.Name, Pattern: r.Source})
	}
	return out
}

func registerScanText(srv *mcp.Server, rs *rules.RuleSet, mw kit.Middleware) {
	type req struct {
		Text string `json:"text"`
	}

	tool := &mcp.Tool{
		Name:        "recon_scan_text",
		Description: "Scan a text blob with the secret rules and return the matches per rule",
		InputSchema: kit.InputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to scan"},
		}, []string{"text"}),
	}

	endpoint := func(_ context.Context, r any) (any, error) {
		p := r.(*req)
		matches := rs.ScanByRule(p.Text)
		total := 0
		for _, m := range matches {
			total += len(m)
		}
		return map[string]any{"matches": matches, "count": total}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func registerRules(srv *mcp.Server, rs *rules.RuleSet, mw kit.Middleware) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "recon_rules",
		Description: "List the compiled secret rules",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"rules": RuleInfos(rs)}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func registerRuns(srv *mcp.Server, st *Store, mw kit.Middleware) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "recon_runs",
		Description: "List stored recon runs, most recent first",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		runs, err := st.ListRuns(ctx, p.Limit)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []*StoredRun{}
		}
		return runs, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

type runReq struct {
	RunID string `json:"run_id"`
}

var runIDSchema = kit.InputSchema(map[string]any{
	"run_id": map[string]any{"type": "string", "description": "Run ID"},
}, []string{"run_id"})

func lookupRun(ctx context.Context, st *Store, id string) (*StoredRun, error) {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func registerRun(srv *mcp.Server, st *Store, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "recon_run",
		Description: "Get one stored recon run with its counts",
		InputSchema: runIDSchema,
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return lookupRun(ctx, st, r.(*runReq).RunID)
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[runReq]())
}

func registerFindings(srv *mcp.Server, st *Store, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "recon_findings",
		Description: "List the secret matches stored for a run",
		InputSchema: runIDSchema,
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		id := r.(*runReq).RunID
		if _, err := lookupRun(ctx, st, id); err != nil {
			return nil, err
		}
		findings, err := st.Findings(ctx, id)
		if err != nil {
			return nil, err
		}
		if findings == nil {
			findings = []Finding{}
		}
		return findings, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[runReq]())
}

func registerExtractions(srv *mcp.Server, st *Store, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "recon_extractions",
		Description: "List the URLs and IP addresses stored for an extract run",
		InputSchema: runIDSchema,
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		id := r.(*runReq).RunID
		if _, err := lookupRun(ctx, st, id); err != nil {
			return nil, err
		}
		return st.Extractions(ctx, id)
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[runReq]())
}
