package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"roadnerd/internal/httpapi"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/render"
)

var (
	diagnoseHint           string
	diagnoseCount          int
	diagnoseCreativity     int
	diagnoseRunChecks      bool
	diagnoseNoDisambiguate bool
	diagnoseRetrieval      string
	diagnoseJSON           bool
	diagnoseVerbose        bool
	diagnoseDebug          bool
	diagnosePager          bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [issue]",
	Short: "Classify, brainstorm, check and rank causes for an issue",
	Long: `Run the whole pipeline for one issue description.

The issue is classified, the local model proposes candidate causes, their
read-only verification steps are run to gather evidence and the judge ranks
the candidates. When the classifier is unsure and no category is given, the
top categories are brainstormed side by side and a few discriminative checks
decide between them.

Remediation steps are printed as suggestions and are never run.`,
	Example: `  # Describe the issue on the command line
  roadnerd diagnose "wifi keeps dropping every few minutes"

  # Force a category and skip the checks
  roadnerd diagnose --hint dns --run-checks=false "cannot resolve intranet hosts"

  # Read the issue from a file and print JSON
  roadnerd diagnose --json - < issue.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := readIssue(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep := runDiagnose(ctx, a.service, pipeline.DiagnoseRequest{
			Issue:          issue,
			Hint:           diagnoseHint,
			Creativity:     diagnoseCreativity,
			Count:          diagnoseCount,
			RunChecks:      diagnoseRunChecks,
			Retrieval:      diagnoseRetrieval,
			Debug:          diagnoseDebug,
			NoDisambiguate: diagnoseNoDisambiguate,
		})

		if diagnoseJSON {
			return writeJSON(cmd.OutOrStdout(), httpapi.NewDiagnoseResponse(rep))
		}
		return show(cmd.OutOrStdout(), diagnosePager, "RoadNerd diagnosis", diagnoseVerbose, func(p *render.Printer) {
			p.Report(rep)
			if diagnoseVerbose {
				p.Timeline(a.service.Bus().RunEvents(rep.RunID))
			}
		})
	},
}

func runDiagnose(ctx context.Context, s *pipeline.Service, req pipeline.DiagnoseRequest) *pipeline.Report {
	p := startProgress(s.Bus(), "Classifying issue...")
	defer p.Stop()
	return s.Diagnose(ctx, req)
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().StringVar(&diagnoseHint, "hint", "", "Category hint (dns, wifi, network, ...); skips disambiguation")
	diagnoseCmd.Flags().IntVarP(&diagnoseCount, "n", "n", 0, "Number of candidates to request (default from config)")
	diagnoseCmd.Flags().IntVarP(&diagnoseCreativity, "creativity", "c", 1, "Creativity level 0-3")
	diagnoseCmd.Flags().BoolVar(&diagnoseRunChecks, "run-checks", true, "Run allow-listed read-only checks")
	diagnoseCmd.Flags().BoolVar(&diagnoseNoDisambiguate, "no-disambiguate", false, "Never compare competing categories")
	diagnoseCmd.Flags().StringVar(&diagnoseRetrieval, "notes", "", "Reference notes to include in the prompt")
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "Output as JSON")
	diagnoseCmd.Flags().BoolVarP(&diagnoseVerbose, "verbose", "v", false, "Show scores and diagnostics")
	diagnoseCmd.Flags().BoolVar(&diagnoseDebug, "debug", false, "Keep prompts and raw model output in the record")
	diagnoseCmd.Flags().BoolVar(&diagnosePager, "pager", false, "Show the report in a scrollable full-screen view")
}
