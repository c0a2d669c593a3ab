// Package httpapi exposes the pipeline over JSON HTTP. Every endpoint
// answers 200 with a schema-conformant body once the request decodes;
// degraded stages show up as diagnostics, never as error statuses.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/sysinfo"
)

// Pipeline is the slice of pipeline.Service the handlers call.
type Pipeline interface {
	Classify(text string) pipeline.ClassifyResult
	Brainstorm(ctx context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult
	Probe(ctx context.Context, ideas []model.Idea, runChecks bool) pipeline.ProbeResult
	Judge(ctx context.Context, issue string, ideas []model.Idea) pipeline.JudgeResult
	Diagnose(ctx context.Context, req pipeline.DiagnoseRequest) *pipeline.Report
}

// Backend reports which model server the gateway is bound to.
type Backend interface {
	Identity() model.Backend
	Ping(ctx context.Context) error
}

type Handler struct {
	pipeline Pipeline
	backend  Backend
	system   sysinfo.Provider
	version  string
	log      *zap.Logger
}

func NewHandler(p Pipeline, backend Backend, system sysinfo.Provider, version string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{pipeline: p, backend: backend, system: system, version: version, log: log}
}

type StatusResponse struct {
	Server           string                `json:"server"`
	Version          string                `json:"version"`
	Timestamp        time.Time             `json:"timestamp"`
	Backend          *model.Backend        `json:"llm_backend,omitempty"`
	BackendReachable bool                  `json:"backend_reachable"`
	BackendError     string                `json:"backend_error,omitempty"`
	System           *sysinfo.Info         `json:"system,omitempty"`
	Connectivity     *sysinfo.Connectivity `json:"connectivity,omitempty"`
	SafeMode         bool                  `json:"safe_mode"`
}

func (h *Handler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := StatusResponse{
		Server:    "online",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		SafeMode:  true,
	}
	if h.backend != nil {
		id := h.backend.Identity()
		resp.Backend = &id
		if err := h.backend.Ping(ctx); err != nil {
			resp.BackendError = err.Error()
		} else {
			resp.BackendReachable = true
		}
	}
	if h.system != nil {
		if info, err := h.system.Info(ctx); err == nil {
			resp.System = &info
			resp.Connectivity = info.Connectivity
		} else {
			h.log.Debug("system info unavailable", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.pipeline.Classify(req.text()))
}

func (h *Handler) Brainstorm(c *gin.Context) {
	var req BrainstormRequest
	if !h.bind(c, &req) {
		return
	}
	res := h.pipeline.Brainstorm(c.Request.Context(), req.toPipeline())
	c.JSON(http.StatusOK, NewBrainstormResponse(res))
}

func (h *Handler) Probe(c *gin.Context) {
	var req ProbeRequest
	if !h.bind(c, &req) {
		return
	}
	res := h.pipeline.Probe(c.Request.Context(), req.ideas(), req.RunChecks)
	c.JSON(http.StatusOK, NewProbeResponse(res))
}

func (h *Handler) Judge(c *gin.Context) {
	var req JudgeRequest
	if !h.bind(c, &req) {
		return
	}
	res := h.pipeline.Judge(c.Request.Context(), firstNonBlank(req.Issue, req.IssueText), req.ideas())
	c.JSON(http.StatusOK, NewJudgeResponse(res))
}

func (h *Handler) Diagnose(c *gin.Context) {
	var req DiagnoseRequest
	if !h.bind(c, &req) {
		return
	}
	bs := req.toPipeline()
	rep := h.pipeline.Diagnose(c.Request.Context(), pipeline.DiagnoseRequest{
		Issue:          bs.Issue,
		Hint:           bs.Hint,
		Creativity:     bs.Creativity,
		Count:          bs.Count,
		RunChecks:      req.RunChecks,
		Retrieval:      bs.Retrieval,
		Debug:          bs.Debug,
		NoDisambiguate: req.NoDisambiguate,
	})
	c.JSON(http.StatusOK, NewDiagnoseResponse(rep))
}

// bind decodes the JSON body. An undecodable body is the only client error.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
