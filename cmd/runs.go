package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"roadnerd/internal/analytics"
	"roadnerd/internal/render"
	"roadnerd/internal/storage"
)

var (
	runsJSON      bool
	runsLimit     int
	runsOperation string
	runsModel     string
	runsSince     string
	runsLogFile   string
	runsPager     bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	Long: `Every operation writes one run record: the backend and sampling used,
how many candidates were requested and received, the ranking and whether a
repair, fallback or degraded ranking happened. Records are kept in
<log dir>/runs.db and appended to <log dir>/llm_runs/YYYYMMDD.jsonl.`,
	Aliases: []string{"history"},
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Example: `  roadnerd runs list
  roadnerd runs list --op diagnose --since 7d --limit 50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runsQuery()
		if err != nil {
			return err
		}
		db, _, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := storage.GetRecentRuns(db, opts)
		if err != nil {
			return err
		}
		if runsJSON {
			return writeJSON(cmd.OutOrStdout(), runs)
		}
		newPrinter(cmd.OutOrStdout(), false).Runs(runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := storage.GetRun(db, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if runsJSON {
			return writeJSON(cmd.OutOrStdout(), rec)
		}
		return show(cmd.OutOrStdout(), runsPager, "run "+rec.ID, false, func(p *render.Printer) {
			p.Run(rec)
		})
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize fill, repair, fallback and degradation rates",
	Long: `Aggregate recorded runs per backend and per category and suggest
tuning changes where a backend misbehaves.

With --log the statistics are computed from a JSONL run log instead of the
database, for example one copied from another machine.`,
	Example: `  roadnerd runs stats --since 30d
  roadnerd runs stats --log ~/.roadnerd/llm_runs/20260101.jsonl --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var summary *analytics.Summary
		if runsLogFile != "" {
			recs, err := analytics.LoadRunLog(runsLogFile)
			if err != nil {
				return fmt.Errorf("read run log: %w", err)
			}
			s := analytics.SummarizeRecords(recs)
			summary = &s
		} else {
			opts, err := runsQuery()
			if err != nil {
				return err
			}
			opts.Limit = 0
			db, _, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Close()
			if summary, err = analytics.NewAnalyzer(db).Summary(opts); err != nil {
				return err
			}
		}
		if runsJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		newPrinter(cmd.OutOrStdout(), false).Stats(summary)
		return nil
	},
}

func runsQuery() (storage.QueryOpts, error) {
	opts := storage.QueryOpts{Limit: runsLimit, Operation: runsOperation, Model: runsModel}
	if runsSince != "" {
		d, err := storage.ParseSince(runsSince)
		if err != nil {
			return opts, err
		}
		opts.Since = d
	}
	return opts, nil
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsStatsCmd)

	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	for _, c := range []*cobra.Command{runsListCmd, runsStatsCmd} {
		c.Flags().StringVar(&runsOperation, "op", "", "Only this operation (diagnose, brainstorm, probe, judge)")
		c.Flags().StringVar(&runsModel, "model", "", "Only this model")
		c.Flags().StringVar(&runsSince, "since", "", "Only runs newer than this (24h, 7d)")
	}
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "l", 20, "Number of runs to show")
	runsShowCmd.Flags().BoolVar(&runsPager, "pager", false, "Show the record in a scrollable full-screen view")
	runsStatsCmd.Flags().StringVar(&runsLogFile, "log", "", "Read a JSONL run log instead of the database")
}
