// Package mcp exposes the troubleshooting pipeline as MCP tools so editor
// agents can classify, brainstorm, probe and rank without the HTTP API.
package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
)

// Pipeline is the slice of pipeline.Service the tools call.
type Pipeline interface {
	Classify(text string) pipeline.ClassifyResult
	Brainstorm(ctx context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult
	Probe(ctx context.Context, ideas []model.Idea, runChecks bool) pipeline.ProbeResult
	Judge(ctx context.Context, issue string, ideas []model.Idea) pipeline.JudgeResult
}

// NewServer registers every tool. db may be nil, in which case query_runs
// reports that no history is available.
func NewServer(p Pipeline, db *sql.DB, version string, log *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"roadnerd",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	t := &tools{pipeline: p, db: db, log: log}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	t.register(s)
	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
