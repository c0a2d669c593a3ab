package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"roadnerd/internal/httpapi"
	"roadnerd/internal/pipeline"
)

var (
	brainstormHint       string
	brainstormCount      int
	brainstormCreativity int
	brainstormRetrieval  string
	brainstormJSON       bool
	brainstormVerbose    bool
	brainstormDebug      bool
)

var brainstormCmd = &cobra.Command{
	Use:   "brainstorm [issue]",
	Short: "Ask the model for candidate causes without checking or ranking them",
	Example: `  roadnerd brainstorm -n 3 --hint wifi "laptop sees no networks"

  # Save candidates, check them, then rank them
  roadnerd brainstorm --json "slow dns" > ideas.json
  roadnerd probe -f ideas.json --json > probed.json
  roadnerd judge -f probed.json "slow dns"`,
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

		p := startProgress(a.service.Bus(), "Asking the model for candidate causes...")
		res := a.service.Brainstorm(ctx, pipeline.BrainstormRequest{
			Issue:      issue,
			Hint:       brainstormHint,
			Creativity: brainstormCreativity,
			Count:      brainstormCount,
			Retrieval:  brainstormRetrieval,
			Debug:      brainstormDebug,
		})
		p.Stop()

		if brainstormJSON {
			return writeJSON(cmd.OutOrStdout(), httpapi.NewBrainstormResponse(res))
		}
		out := newPrinter(cmd.OutOrStdout(), brainstormVerbose)
		out.Ideas(res.Ideas)
		if brainstormVerbose {
			out.BrainstormDiagnostics(res.Diagnostics)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(brainstormCmd)

	brainstormCmd.Flags().StringVar(&brainstormHint, "hint", "", "Category hint (dns, wifi, ...)")
	brainstormCmd.Flags().IntVarP(&brainstormCount, "n", "n", 0, "Number of candidates to request (default from config)")
	brainstormCmd.Flags().IntVarP(&brainstormCreativity, "creativity", "c", 1, "Creativity level 0-3")
	brainstormCmd.Flags().StringVar(&brainstormRetrieval, "notes", "", "Reference notes to include in the prompt")
	brainstormCmd.Flags().BoolVar(&brainstormJSON, "json", false, "Output as JSON")
	brainstormCmd.Flags().BoolVarP(&brainstormVerbose, "verbose", "v", false, "Show extraction diagnostics")
	brainstormCmd.Flags().BoolVar(&brainstormDebug, "debug", false, "Keep the prompt and raw model output in the output")
}
