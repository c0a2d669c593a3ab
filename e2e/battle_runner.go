// Command e2e runs a YAML case suite against a live server and appends one
// JSONL record per case.
//
//	go run ./e2e --base-url http://localhost:8080 --cases e2e/cases.yaml --tag quick
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"roadnerd/internal/render"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultOut := filepath.Join(home, ".roadnerd")
	if env := os.Getenv("RN_LOG_DIR"); env != "" {
		defaultOut = env
	}

	baseURL := flag.String("base-url", "http://localhost:8080", "Server to test")
	casesPath := flag.String("cases", "e2e/cases.yaml", "YAML case file")
	tag := flag.String("tag", "", "Only run cases with this tag; also stored on every record")
	outDir := flag.String("out", defaultOut, "Directory for suite_runs/YYYYMMDD.jsonl")
	timeout := flag.Duration("timeout", 5*time.Minute, "Per-case timeout")
	strict := flag.Bool("strict", false, "Exit non-zero when any case fails")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	passed, total, err := run(ctx, *baseURL, *casesPath, *tag, *outDir, *timeout)
	if err != nil {
		fatal("%v", err)
	}
	if *strict && passed < total {
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL, casesPath, tag, outDir string, timeout time.Duration) (int, int, error) {
	cases, err := LoadCases(casesPath)
	if err != nil {
		return 0, 0, err
	}
	cases = Filter(cases, tag)
	if len(cases) == 0 {
		return 0, 0, fmt.Errorf("no cases in %s match tag %q", casesPath, tag)
	}

	client := &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
	status, err := client.Status(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("server status: %w", err)
	}
	fmt.Println(render.Title.Render("Server status"))
	printJSON(status)

	results, err := NewResultLog(outDir, time.Now())
	if err != nil {
		return 0, 0, err
	}

	passed := 0
	for _, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("\n== Case %s == ", tc.ID)
		rec := RunCase(ctx, client, status, tc, tag)
		if err := results.Append(rec); err != nil {
			return passed, len(cases), fmt.Errorf("write result: %w", err)
		}
		if rec.Eval.Pass {
			passed++
			fmt.Println(render.Good.Render("PASS"))
		} else {
			fmt.Println(render.Bad.Render("FAIL"))
		}
		printJSON(rec.Eval)
	}

	fmt.Printf("\nSummary: %d/%d passed (%.1f%%)\n", passed, len(cases), float64(passed)/float64(len(cases))*100)
	fmt.Println(render.Dim.Render("results: " + results.Path()))
	return passed, len(cases), nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(data))
}

func fatal(format string, args ...any) {
	fmt.Fprintln(os.Stderr, render.Bad.Render("FAIL: "+fmt.Sprintf(format, args...)))
	os.Exit(1)
}
