package httpapi_test

import (
	"context"
	"errors"

	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/sysinfo"
)

type mockPipeline struct {
	classifyFn   func(text string) pipeline.ClassifyResult
	brainstormFn func(ctx context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult
	probeFn      func(ctx context.Context, ideas []model.Idea, runChecks bool) pipeline.ProbeResult
	judgeFn      func(ctx context.Context, issue string, ideas []model.Idea) pipeline.JudgeResult
	diagnoseFn   func(ctx context.Context, req pipeline.DiagnoseRequest) *pipeline.Report
}

func (m *mockPipeline) Classify(text string) pipeline.ClassifyResult {
	if m.classifyFn != nil {
		return m.classifyFn(text)
	}
	return pipeline.ClassifyResult{Classification: model.Unknown()}
}

func (m *mockPipeline) Brainstorm(ctx context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult {
	if m.brainstormFn != nil {
		return m.brainstormFn(ctx, req)
	}
	return pipeline.BrainstormResult{}
}

func (m *mockPipeline) Probe(ctx context.Context, ideas []model.Idea, runChecks bool) pipeline.ProbeResult {
	if m.probeFn != nil {
		return m.probeFn(ctx, ideas, runChecks)
	}
	return pipeline.ProbeResult{Ideas: ideas}
}

func (m *mockPipeline) Judge(ctx context.Context, issue string, ideas []model.Idea) pipeline.JudgeResult {
	if m.judgeFn != nil {
		return m.judgeFn(ctx, issue, ideas)
	}
	return pipeline.JudgeResult{}
}

func (m *mockPipeline) Diagnose(ctx context.Context, req pipeline.DiagnoseRequest) *pipeline.Report {
	if m.diagnoseFn != nil {
		return m.diagnoseFn(ctx, req)
	}
	return &pipeline.Report{}
}

type mockBackend struct {
	pingErr error
}

func (m *mockBackend) Identity() model.Backend {
	return model.Backend{Kind: "ollama", Model: "llama3.2:3b", Transport: "completion"}
}

func (m *mockBackend) Ping(context.Context) error {
	return m.pingErr
}

var errRefused = errors.New("connection refused")

var staticSystem = sysinfo.Static{
	Hostname: "field-laptop",
	OS:       "linux",
	Arch:     "amd64",
	Connectivity: &sysinfo.Connectivity{
		DNS:      sysinfo.DNSFailed,
		Gateway:  sysinfo.GatewayConfigured,
		Internet: sysinfo.InternetUnreachable,
	},
}
