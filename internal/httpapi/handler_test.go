package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"roadnerd/internal/brainstorm"
	"roadnerd/internal/extract"
	"roadnerd/internal/httpapi"
	"roadnerd/internal/judge"
	"roadnerd/internal/kb"
	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/probe"
)

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var dnsIdea = model.Idea{
	ID:                "aaaa1111",
	Category:          "dns",
	Hypothesis:        "resolv.conf points at a dead server",
	Rationale:         "lookups time out",
	VerificationSteps: []string{"cat /etc/resolv.conf"},
	RemediationSteps:  []string{"sudo systemctl restart systemd-resolved"},
	Risk:              model.RiskLow,
}

var verdict = judge.Verdict{
	Ranked: []judge.Ranked{{
		ID:        dnsIdea.ID,
		Total:     0.8,
		Scores:    map[model.Axis]float64{model.AxisSafety: 0.85},
		Rationale: "risk low",
		Idea:      dnsIdea,
	}},
}

var _ = Describe("Handler", func() {
	var (
		router  *gin.Engine
		svc     *mockPipeline
		backend *mockBackend
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		svc = &mockPipeline{}
		backend = &mockBackend{}
		h := httpapi.NewHandler(svc, backend, staticSystem, "test", nil)
		router = httpapi.NewRouter(h, nil)
	})

	Describe("GET /api/status", func() {
		It("reports the backend and host", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["server"]).To(Equal("online"))
			Expect(resp["backend_reachable"]).To(BeTrue())
			Expect(resp["safe_mode"]).To(BeTrue())
			Expect(resp["llm_backend"]).To(HaveKeyWithValue("model", "llama3.2:3b"))
			Expect(resp["system"]).To(HaveKeyWithValue("hostname", "field-laptop"))
			Expect(resp["system"]).NotTo(HaveKey("connectivity"))
			Expect(resp["connectivity"]).To(HaveKeyWithValue("dns", "failed"))
			Expect(resp["connectivity"]).To(HaveKeyWithValue("gateway", "configured"))
			Expect(resp["connectivity"]).To(HaveKeyWithValue("internet", "unreachable"))
		})

		It("stays 200 when the backend is down", func() {
			backend.pingErr = errRefused
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["backend_reachable"]).To(BeFalse())
			Expect(resp["backend_error"]).To(ContainSubstring("refused"))
		})

		It("sets security headers", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Header().Get("Content-Security-Policy")).To(ContainSubstring("default-src 'self'"))
			Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(w.Header().Get("X-Frame-Options")).To(Equal("DENY"))
		})
	})

	Describe("POST /api/classify", func() {
		It("accepts either text or issue", func() {
			var got string
			svc.classifyFn = func(text string) pipeline.ClassifyResult {
				got = text
				return pipeline.ClassifyResult{Classification: model.Classification{TopLabel: "dns", Confidence: 0.9}}
			}

			w := post(router, "/api/classify", `{"issue":"dns lookups fail"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(Equal("dns lookups fail"))
			Expect(decode(w)["classification"]).To(HaveKeyWithValue("top_label", "dns"))
		})

		It("returns 400 on an undecodable body", func() {
			w := post(router, "/api/classify", `{`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/ideas/brainstorm", func() {
		It("maps request aliases and returns wire candidates", func() {
			var got pipeline.BrainstormRequest
			svc.brainstormFn = func(_ context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult {
				got = req
				return pipeline.BrainstormResult{
					RunID:       "1",
					Ideas:       []model.Idea{dnsIdea},
					Diagnostics: brainstorm.Diagnostics{Requested: 5, Tag: extract.TagPartial},
				}
			}

			w := post(router, "/api/ideas/brainstorm", `{"issue_text":"DNS failing","n":5,"creativity_level":2,"category_hint":" dns "}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.Issue).To(Equal("DNS failing"))
			Expect(got.Count).To(Equal(5))
			Expect(got.Creativity).To(Equal(2))
			Expect(got.Hint).To(Equal("dns"))

			resp := decode(w)
			Expect(resp["candidates"]).To(HaveLen(1))
			first := resp["candidates"].([]any)[0].(map[string]any)
			Expect(first).To(HaveKeyWithValue("why", "lookups time out"))
			Expect(first).To(HaveKey("checks"))
			Expect(first).To(HaveKey("fixes"))
			Expect(resp["diagnostics"]).To(HaveKeyWithValue("tag", "partial"))
		})

		It("defaults creativity to 1 and keeps an explicit 0", func() {
			var got pipeline.BrainstormRequest
			svc.brainstormFn = func(_ context.Context, req pipeline.BrainstormRequest) pipeline.BrainstormResult {
				got = req
				return pipeline.BrainstormResult{Ideas: []model.Idea{dnsIdea}}
			}

			post(router, "/api/ideas/brainstorm", `{"issue":"wifi down"}`)
			Expect(got.Creativity).To(Equal(1))

			post(router, "/api/ideas/brainstorm", `{"issue":"wifi down","creativity":0}`)
			Expect(got.Creativity).To(Equal(0))
		})

		It("answers 200 with an empty issue", func() {
			w := post(router, "/api/ideas/brainstorm", `{}`)
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/ideas/probe", func() {
		It("passes candidates and run_checks through", func() {
			var (
				gotIdeas []model.Idea
				gotRun   bool
			)
			svc.probeFn = func(_ context.Context, ideas []model.Idea, runChecks bool) pipeline.ProbeResult {
				gotIdeas, gotRun = ideas, runChecks
				out := model.CloneAll(ideas)
				out[0].Evidence = []model.Evidence{{Command: "nmcli dev status", StdoutExcerpt: "wlan0 connected"}}
				return pipeline.ProbeResult{RunID: "2", Ideas: out, Report: probe.Report{Executed: 1, Rejected: 1}}
			}

			w := post(router, "/api/ideas/probe", `{"ideas":[{"hypothesis":"test","category":"dns","why":"x","checks":["nmcli dev status","cat /etc/shadow"]}],"run_checks":true}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotRun).To(BeTrue())
			Expect(gotIdeas).To(HaveLen(1))
			Expect(gotIdeas[0].ID).NotTo(BeEmpty(), "missing ids are assigned")
			Expect(gotIdeas[0].Risk).To(Equal(model.RiskMedium))

			resp := decode(w)
			cand := resp["candidates"].([]any)[0].(map[string]any)
			Expect(cand["evidence"]).To(HaveLen(1))
			Expect(resp["report"]).To(HaveKeyWithValue("rejected", BeNumerically("==", 1)))
		})
	})

	Describe("POST /api/ideas/judge", func() {
		It("returns ranked ids, scores and rationale", func() {
			var gotIssue string
			svc.judgeFn = func(_ context.Context, issue string, _ []model.Idea) pipeline.JudgeResult {
				gotIssue = issue
				return pipeline.JudgeResult{RunID: "3", Verdict: verdict}
			}

			w := post(router, "/api/ideas/judge", `{"issue":"dns","candidates":[{"id":"aaaa1111","hypothesis":"h","category":"dns","risk":"low"}]}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotIssue).To(Equal("dns"))
			resp := decode(w)
			Expect(resp["ranked_ids"]).To(Equal([]any{"aaaa1111"}))
			Expect(resp["scores"]).To(HaveKey("aaaa1111"))
			Expect(resp["rationale"]).To(HaveKeyWithValue("aaaa1111", "risk low"))
			Expect(resp["ranking_degraded"]).To(BeFalse())
			ranked := resp["ranked"].([]any)[0].(map[string]any)
			Expect(ranked["idea"]).To(HaveKeyWithValue("risk", "low"))
		})
	})

	Describe("POST /api/diagnose", func() {
		It("runs the full pipeline", func() {
			var got pipeline.DiagnoseRequest
			svc.diagnoseFn = func(_ context.Context, req pipeline.DiagnoseRequest) *pipeline.Report {
				got = req
				return &pipeline.Report{
					RunID:          "4",
					Classification: model.Classification{TopLabel: "dns", Confidence: 0.8},
					Category:       "dns",
					Ideas:          []model.Idea{dnsIdea},
					Verdict:        verdict,
				}
			}

			w := post(router, "/api/diagnose", `{"issue":"cannot resolve hosts","n":3,"run_checks":true,"no_disambiguate":true}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.Issue).To(Equal("cannot resolve hosts"))
			Expect(got.Count).To(Equal(3))
			Expect(got.RunChecks).To(BeTrue())
			Expect(got.NoDisambiguate).To(BeTrue())

			resp := decode(w)
			Expect(resp["run_id"]).To(Equal("4"))
			Expect(resp["category"]).To(Equal("dns"))
			Expect(resp["ranked_ids"]).To(Equal([]any{"aaaa1111"}))
			Expect(resp["candidates"]).To(HaveLen(1))
			Expect(resp).To(HaveKeyWithValue("kb_solution", BeNil()))
			Expect(resp).NotTo(HaveKey("known_fix"))
		})

		It("returns the known fix as kb_solution", func() {
			svc.diagnoseFn = func(context.Context, pipeline.DiagnoseRequest) *pipeline.Report {
				return &pipeline.Report{
					RunID:    "5",
					Category: "dns",
					KnownFix: &kb.Match{
						Entry:    "dns_issues",
						Category: "dns",
						Symptom:  "cannot resolve",
						Solution: kb.Solution{
							Name:     "Restart systemd-resolved",
							Commands: []string{"sudo systemctl restart systemd-resolved"},
							Check:    "systemctl status systemd-resolved",
						},
					},
					Verdict: verdict,
				}
			}

			w := post(router, "/api/diagnose", `{"issue":"cannot resolve hosts"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["kb_solution"]).To(HaveKeyWithValue("name", "Restart systemd-resolved"))
			Expect(resp["kb_solution"]).To(HaveKeyWithValue("check", "systemctl status systemd-resolved"))
			Expect(resp["known_fix"]).To(HaveKeyWithValue("entry", "dns_issues"))
		})
	})

	It("recovers from a panicking handler", func() {
		svc.classifyFn = func(string) pipeline.ClassifyResult { panic("boom") }

		w := post(router, "/api/classify", `{"text":"x"}`)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decode(w)).To(HaveKeyWithValue("error", "internal server error"))
	})
})
