package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"roadnerd/internal/analytics"
	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/storage"
)

type tools struct {
	pipeline Pipeline
	db       *sql.DB
	log      *zap.Logger
}

func (t *tools) register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("classify_issue",
		mcp.WithDescription("Classify a free-text IT issue into a problem category (wifi, dns, network, power, ...) with a confidence score."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The issue description, log excerpt or error text"),
		),
	), t.classify)

	s.AddTool(mcp.NewTool("brainstorm_candidates",
		mcp.WithDescription("Generate root-cause hypotheses for an issue. Each candidate carries read-only checks and suggested fixes."),
		mcp.WithString("issue",
			mcp.Required(),
			mcp.Description("The issue description"),
		),
		mcp.WithString("category_hint",
			mcp.Description("Problem category to focus on (e.g. 'wifi', 'dns')"),
		),
		mcp.WithNumber("creativity",
			mcp.Description("0 (most conservative) to 3 (most exploratory), default 1"),
		),
		mcp.WithNumber("n",
			mcp.Description("Number of candidates to request (default 5)"),
		),
	), t.brainstorm)

	s.AddTool(mcp.NewTool("probe_evidence",
		mcp.WithDescription("Run the candidates' allow-listed read-only checks on this machine and attach the output as evidence. Fixes are never run."),
		mcp.WithArray("candidates",
			mcp.Required(),
			mcp.Description("Candidates as returned by brainstorm_candidates"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithBoolean("run_checks",
			mcp.Description("Actually execute checks (default false: report what would run)"),
		),
	), t.probe)

	s.AddTool(mcp.NewTool("judge_candidates",
		mcp.WithDescription("Rank candidates by safety, likelihood of success, cost and determinism."),
		mcp.WithString("issue",
			mcp.Required(),
			mcp.Description("The issue description"),
		),
		mcp.WithArray("candidates",
			mcp.Required(),
			mcp.Description("Candidates, optionally with evidence attached"),
			mcp.Items(map[string]any{"type": "object"}),
		),
	), t.judge)

	s.AddTool(mcp.NewTool("query_runs",
		mcp.WithDescription("Query the run history: recent runs, a single run by id, or aggregate statistics per backend and category."),
		mcp.WithString("id",
			mcp.Description("Return the full record for this run id"),
		),
		mcp.WithString("operation",
			mcp.Description("Filter by operation: diagnose, brainstorm, probe or judge"),
		),
		mcp.WithString("model",
			mcp.Description("Filter by model name"),
		),
		mcp.WithString("since",
			mcp.Description("Time range like '1h', '30m' or '7d'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20)"),
		),
		mcp.WithBoolean("stats",
			mcp.Description("Return aggregate statistics instead of individual runs"),
		),
	), t.queryRuns)
}

func (t *tools) classify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, _ := args["text"].(string)
	return jsonResult(t.pipeline.Classify(text))
}

func (t *tools) brainstorm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	issue, _ := args["issue"].(string)
	if strings.TrimSpace(issue) == "" {
		return mcp.NewToolResultError("issue is required"), nil
	}
	hint, _ := args["category_hint"].(string)

	res := t.pipeline.Brainstorm(ctx, pipeline.BrainstormRequest{
		Issue:      issue,
		Hint:       strings.TrimSpace(hint),
		Creativity: intArg(args, "creativity", 1),
		Count:      intArg(args, "n", 0),
	})
	return jsonResult(map[string]any{
		"run_id":      res.RunID,
		"candidates":  model.ToWireAll(res.Ideas),
		"diagnostics": res.Diagnostics,
	})
}

func (t *tools) probe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ideas, err := candidatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	runChecks, _ := args["run_checks"].(bool)

	res := t.pipeline.Probe(ctx, ideas, runChecks)
	return jsonResult(map[string]any{
		"run_id":     res.RunID,
		"candidates": model.ToWireAll(res.Ideas),
		"report":     res.Report,
	})
}

func (t *tools) judge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	issue, _ := args["issue"].(string)
	ideas, err := candidatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := t.pipeline.Judge(ctx, issue, ideas)
	v := res.Verdict
	return jsonResult(map[string]any{
		"run_id":           res.RunID,
		"ranked_ids":       v.IDs(),
		"ranked":           v.Ranked,
		"rationale":        v.Rationale(),
		"ranking_degraded": v.Degraded,
		"degraded_reason":  v.DegradedReason,
	})
}

func (t *tools) queryRuns(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.db == nil {
		return mcp.NewToolResultError("run history is not available"), nil
	}
	args := req.GetArguments()

	if id, _ := args["id"].(string); id != "" {
		rec, err := storage.GetRun(t.db, id)
		if err != nil {
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		if rec == nil {
			return mcp.NewToolResultError("no run with id " + id), nil
		}
		return jsonResult(rec)
	}

	opts := storage.QueryOpts{Limit: intArg(args, "limit", 20)}
	opts.Operation, _ = args["operation"].(string)
	opts.Model, _ = args["model"].(string)
	if s, ok := args["since"].(string); ok && s != "" {
		d, err := storage.ParseSince(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Since = d
	}

	if stats, _ := args["stats"].(bool); stats {
		opts.Limit = 0
		summary, err := analytics.NewAnalyzer(t.db).Summary(opts)
		if err != nil {
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		return jsonResult(summary)
	}

	runs, err := storage.GetRecentRuns(t.db, opts)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"runs": runs, "count": len(runs)})
}

// candidatesArg re-decodes the loosely typed argument into wire ideas.
func candidatesArg(args map[string]any) ([]model.Idea, error) {
	raw, ok := args["candidates"]
	if !ok {
		return nil, fmt.Errorf("candidates is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	var wire []model.WireIdea
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("candidates must be an array of objects: %w", err)
	}
	return model.FromWireAll(wire), nil
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
