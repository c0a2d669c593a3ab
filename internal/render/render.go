package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"roadnerd/internal/analytics"
	"roadnerd/internal/brainstorm"
	"roadnerd/internal/judge"
	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/probe"
	"roadnerd/internal/safety"
	"roadnerd/internal/storage"
	"roadnerd/internal/textutil"
)

const (
	defaultWidth    = 100
	excerptLines    = 6
	minPanelWidth   = 40
	hypothesisLimit = 400
)

// Printer writes styled output sized to Width.
type Printer struct {
	w     io.Writer
	Width int
	// Verbose adds evidence excerpts and extraction diagnostics.
	Verbose bool
}

func New(w io.Writer, width int) *Printer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Printer{w: w, Width: max(width, minPanelWidth)}
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) Classification(res pipeline.ClassifyResult) {
	c := res.Classification
	line := fmt.Sprintf("%s %s %s", Key.Render("category"), c.TopLabel, Dim.Render(fmt.Sprintf("(%.2f, %s)", c.Confidence, c.Strategy)))
	if res.LowConfidence {
		line += " " + Warn.Render("low confidence")
	}
	p.println(line)
	for _, ls := range c.Candidates {
		p.println(fmt.Sprintf("  %s %.2f", textutil.PadRight(ls.Label, 12), ls.Score))
	}
	if res.Input.Label != "" {
		p.println(Dim.Render(fmt.Sprintf("input looks like %s (%.2f)", res.Input.Label, res.Input.Confidence)))
	}
}

// Ideas prints unranked candidates in the order given.
func (p *Printer) Ideas(ideas []model.Idea) {
	for i, idea := range ideas {
		p.println(p.idea(i+1, idea, nil, nil, false))
	}
}

func (p *Printer) BrainstormDiagnostics(d brainstorm.Diagnostics) {
	parts := []string{
		fmt.Sprintf("tag %s", d.Tag),
		fmt.Sprintf("requested %d", d.Requested),
		fmt.Sprintf("creativity %d", d.Creativity),
	}
	if d.Strategy != "" {
		parts = append(parts, "strategy "+d.Strategy)
	}
	if d.Discarded > 0 {
		parts = append(parts, fmt.Sprintf("discarded %d", d.Discarded))
	}
	if d.RepairFired {
		parts = append(parts, fmt.Sprintf("repair +%d", d.RepairRecovered))
	}
	p.println(Dim.Render(strings.Join(parts, " · ")))
	if d.Backend.Model != "" {
		p.println(Dim.Render(fmt.Sprintf("%s %s via %s, temperature %.2f top_p %.2f max_tokens %d",
			d.Backend.Kind, d.Backend.Model, d.Backend.Transport, d.Sampling.Temperature, d.Sampling.TopP, d.Sampling.MaxTokens)))
	}
	if d.Fallback {
		p.println(Warn.Render("The model gave no structured answer; showing its raw reply as a single candidate."))
	}
	for _, f := range d.Failures {
		p.println(Bad.Render("backend: ") + f)
	}
}

func (p *Printer) ProbeReport(r probe.Report) {
	if r.DryRun {
		p.println(Dim.Render("checks not run (dry run)"))
		return
	}
	p.println(Dim.Render(fmt.Sprintf("checks: %d run, %d rejected, %d timed out, %d truncated, %d skipped",
		r.Executed, r.Rejected, r.TimedOut, r.Truncated, r.Skipped)))
	if !p.Verbose {
		return
	}
	for _, c := range r.Commands {
		line := fmt.Sprintf("  %-9s %s", c.Status, Command.Render(c.Command))
		if c.Reason != "" {
			line += Dim.Render(" (" + c.Reason + ")")
		}
		p.println(line)
	}
}

// Verdict prints ranked candidates, the leader in a highlighted panel.
func (p *Printer) Verdict(v judge.Verdict, previews map[string][]safety.PreviewAction) {
	if v.Degraded {
		reason := v.DegradedReason
		if reason == "" {
			reason = "model assessment unavailable"
		}
		p.println(Warn.Render("Ranking is heuristic only: " + reason))
	}
	for i, r := range v.Ranked {
		var acts []safety.PreviewAction
		if previews != nil {
			acts = previews[r.ID]
		}
		p.println(p.idea(i+1, r.Idea, &r, acts, i == 0))
	}
}

func (p *Printer) Report(rep *pipeline.Report) {
	p.println(Title.Render("RoadNerd diagnosis") + " " + Dim.Render("run "+rep.RunID))
	p.Classification(pipeline.ClassifyResult{Classification: rep.Classification, Input: rep.Input})
	if d := rep.Disambiguation; d != nil {
		p.println(Header.Render("Disambiguation"))
		p.println(fmt.Sprintf("  compared %s", strings.Join(d.Categories, ", ")))
		if len(d.Checks) > 0 {
			p.println("  discriminative checks: " + Command.Render(strings.Join(d.Checks, "; ")))
		}
		p.println(fmt.Sprintf("  committed to %s", Key.Render(d.Committed)))
	}
	if rep.Category != "" {
		p.println(fmt.Sprintf("%s %s", Key.Render("working category"), rep.Category))
	}
	if m := rep.KnownFix; m != nil {
		p.println(Header.Render("Known fix") + " " + m.Solution.Name + " " + Dim.Render("("+m.Entry+")"))
		if m.Solution.Check != "" {
			p.println("  check: " + Command.Render(m.Solution.Check))
		}
		for _, c := range m.Solution.Commands {
			p.println("  fix:   " + Command.Render(c))
		}
	}
	p.BrainstormDiagnostics(rep.Brainstorm)
	p.ProbeReport(rep.Probe)
	p.println("")
	p.Verdict(rep.Verdict, rep.Previews)
	p.println(Dim.Render(fmt.Sprintf("finished in %dms · fixes are suggestions only and were not run", rep.DurationMs)))
}

func (p *Printer) idea(n int, idea model.Idea, ranked *judge.Ranked, previews []safety.PreviewAction, top bool) string {
	inner := p.Width - 4
	var b strings.Builder

	head := fmt.Sprintf("#%d %s", n, Dim.Render(idea.ID))
	if ranked != nil {
		head += fmt.Sprintf("  score %.3f", ranked.Total)
	}
	head += "  " + RiskStyle(string(idea.Risk)).Render("risk "+string(idea.Risk))
	if idea.Category != "" {
		head += "  " + Dim.Render(idea.Category)
	}
	b.WriteString(head + "\n")
	b.WriteString(textutil.WrapText(textutil.TruncateWithEllipsis(idea.Hypothesis, hypothesisLimit), inner) + "\n")
	if idea.Rationale != "" {
		b.WriteString(Dim.Render(textutil.WrapText(idea.Rationale, inner)) + "\n")
	}

	if len(idea.VerificationSteps) > 0 {
		b.WriteString(Header.Render("checks") + "\n")
		for _, step := range idea.VerificationSteps {
			b.WriteString("  " + Command.Render(textutil.TruncateWithEllipsis(step, inner-2)) + "\n")
		}
	}
	for _, ev := range idea.Evidence {
		status := Good.Render("exit 0")
		switch {
		case ev.TimedOut:
			status = Bad.Render("timed out")
		case ev.ExitStatus != 0:
			status = Warn.Render(fmt.Sprintf("exit %d", ev.ExitStatus))
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", Dim.Render("$"), ev.Command, status))
		if p.Verbose && strings.TrimSpace(ev.StdoutExcerpt) != "" {
			b.WriteString(Dim.Render(textutil.WrapIndent(textutil.Excerpt(ev.StdoutExcerpt, excerptLines, inner-4), inner, 4)) + "\n")
		}
	}

	if len(previews) > 0 {
		b.WriteString(Header.Render("suggested fixes (not run)") + "\n")
		for _, a := range previews {
			marker := "  "
			if a.Destructive {
				marker = Bad.Render("!!")
			}
			b.WriteString(fmt.Sprintf("%s %s\n", marker, textutil.TruncateWithEllipsis(a.Command, inner-3)))
		}
	} else if len(idea.RemediationSteps) > 0 {
		b.WriteString(Header.Render("suggested fixes (not run)") + "\n")
		for _, fix := range idea.RemediationSteps {
			b.WriteString("   " + textutil.TruncateWithEllipsis(fix, inner-3) + "\n")
		}
	}

	if ranked != nil && p.Verbose {
		b.WriteString(Dim.Render(scoreLine(ranked.Scores)) + "\n")
		if ranked.Rationale != "" {
			b.WriteString(Dim.Render(textutil.WrapText(ranked.Rationale, inner)) + "\n")
		}
	}

	style := Panel
	if top {
		style = TopPanel
	}
	return style.Width(p.Width - 2).Render(strings.TrimRight(b.String(), "\n"))
}

func scoreLine(scores map[model.Axis]float64) string {
	parts := make([]string, 0, len(model.Axes))
	for _, axis := range model.Axes {
		if v, ok := scores[axis]; ok {
			parts = append(parts, fmt.Sprintf("%s %.2f", axis, v))
		}
	}
	return strings.Join(parts, " · ")
}

// Runs prints a compact history table.
func (p *Printer) Runs(runs []storage.RunSummary) {
	if len(runs) == 0 {
		p.println(Dim.Render("no runs recorded"))
		return
	}
	rows := [][]string{{"ID", "WHEN", "OP", "MODEL", "FILL", "CATEGORY", "FLAGS"}}
	for _, r := range runs {
		var flags []string
		if r.RepairFired {
			flags = append(flags, "repair")
		}
		if r.Fallback {
			flags = append(flags, "fallback")
		}
		if r.Degraded {
			flags = append(flags, "degraded")
		}
		category := r.Category
		if category == "" {
			category = r.Label
		}
		rows = append(rows, []string{
			r.ID,
			r.Timestamp.Local().Format("01-02 15:04"),
			r.Operation,
			r.Model,
			fmt.Sprintf("%d/%d", r.Received, r.Requested),
			category,
			strings.Join(flags, ","),
		})
	}
	p.table(rows)
}

// Run prints one stored record.
func (p *Printer) Run(rec *model.RunRecord) {
	p.println(Title.Render("run "+rec.ID) + " " + Dim.Render(rec.Timestamp.Local().Format("2006-01-02 15:04:05")))
	p.println(fmt.Sprintf("%s %s", Key.Render("operation"), rec.Operation))
	if rec.Issue != "" {
		p.println(fmt.Sprintf("%s %s", Key.Render("issue"), textutil.TruncateWithEllipsis(rec.Issue, p.Width-6)))
	}
	p.println(fmt.Sprintf("%s %s %s via %s", Key.Render("backend"), rec.Backend.Kind, rec.Backend.Model, rec.Backend.Transport))
	p.println(fmt.Sprintf("%s temperature %.2f top_p %.2f max_tokens %d",
		Key.Render("sampling"), rec.Sampling.Temperature, rec.Sampling.TopP, rec.Sampling.MaxTokens))
	p.println(fmt.Sprintf("%s %d/%d %s", Key.Render("candidates"), rec.Received(), rec.RequestedCount, Dim.Render(rec.ExtractionTag)))
	if rec.Classification != nil {
		p.println(fmt.Sprintf("%s %s (%.2f)", Key.Render("classified"), rec.Classification.TopLabel, rec.Classification.Confidence))
	}
	if rec.Degraded {
		p.println(Warn.Render("ranking was degraded"))
	}
	if rec.Fallback {
		p.println(Warn.Render("brainstorm fell back to raw output"))
	}

	byID := make(map[string]model.WireIdea, len(rec.Candidates))
	for _, c := range rec.Candidates {
		byID[c.ID] = c
	}
	order := rec.Ranking
	if len(order) == 0 {
		for _, c := range rec.Candidates {
			order = append(order, c.ID)
		}
	}
	for i, id := range order {
		c := byID[id]
		p.println(fmt.Sprintf("%2d. %s %s %s", i+1, Dim.Render(id), RiskStyle(string(c.Risk)).Render(string(c.Risk)),
			textutil.TruncateWithEllipsis(c.Hypothesis, p.Width-20)))
	}
}

func (p *Printer) Stats(s *analytics.Summary) {
	p.println(Title.Render("run statistics") + " " + Dim.Render(fmt.Sprintf("%d runs", s.TotalRuns)))
	if len(s.Backends) > 0 {
		rows := [][]string{{"BACKEND", "RUNS", "FILL", "REPAIR", "FALLBACK", "DEGRADED", "AVG MS"}}
		for _, b := range s.Backends {
			rows = append(rows, []string{
				b.Backend,
				fmt.Sprint(b.Runs),
				pct(b.AvgFill),
				pct(b.RepairRate),
				pct(b.FallbackRate),
				pct(b.DegradedRate),
				fmt.Sprint(b.AvgDurationMs),
			})
		}
		p.table(rows)
	}
	if len(s.Categories) > 0 {
		p.println("")
		rows := [][]string{{"CATEGORY", "RUNS", "CONFIDENCE", "FALLBACK"}}
		for _, c := range s.Categories {
			rows = append(rows, []string{c.Category, fmt.Sprint(c.Runs), fmt.Sprintf("%.2f", c.AvgConfidence), pct(c.FallbackRate)})
		}
		p.table(rows)
	}
	if len(s.Suggestions) > 0 {
		p.println("")
		sorted := append([]analytics.Suggestion(nil), s.Suggestions...)
		sort.SliceStable(sorted, func(i, j int) bool { return severity(sorted[i].Severity) < severity(sorted[j].Severity) })
		for _, sg := range sorted {
			style := Warn
			if sg.Severity == "high" {
				style = Bad
			}
			p.println(style.Render(strings.ToUpper(sg.Severity)) + " " + textutil.WrapText(sg.Message, p.Width-8))
		}
	}
}

func severity(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	default:
		return 2
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Timeline prints how long each stage of a run took, in start order.
func (p *Printer) Timeline(events []pipeline.Event) {
	started := make(map[string]time.Time)
	var rows [][]string
	for _, e := range events {
		switch e.Type {
		case pipeline.EventStageStart:
			started[e.Stage] = e.Timestamp
		case pipeline.EventStageComplete:
			if t, ok := started[e.Stage]; ok {
				rows = append(rows, []string{e.Stage, e.Timestamp.Sub(t).Round(time.Millisecond).String()})
				delete(started, e.Stage)
			}
		case pipeline.EventStageDegraded:
			rows = append(rows, []string{e.Stage, Warn.Render("degraded: " + e.Detail)})
		}
	}
	if len(rows) == 0 {
		return
	}
	p.table(append([][]string{{"STAGE", "TOOK"}}, rows...))
}

// table left-aligns columns; the header row is styled.
func (p *Printer) table(rows [][]string) {
	widths := make([]int, len(rows[0]))
	col := make([]string, len(rows))
	for i := range widths {
		for r, row := range rows {
			col[r] = row[i]
		}
		widths[i] = textutil.MaxLineWidth(col)
	}
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = textutil.PadRight(cell, widths[i])
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")
		if r == 0 {
			line = Header.Render(line)
		}
		p.println(textutil.TruncateWithEllipsis(line, p.Width))
	}
}
