package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"roadnerd/internal/httpapi"
)

var (
	judgeFile    string
	judgeJSON    bool
	judgeVerbose bool
)

var judgeCmd = &cobra.Command{
	Use:   "judge [issue]",
	Short: "Rank saved candidates for an issue",
	Long: `Score and order candidates read as JSON. Evidence already attached to
the candidates, for example by "roadnerd probe", is taken into account.

When the model cannot be reached the ranking is heuristic and says so.`,
	Example: `  roadnerd judge -f probed.json "cannot resolve intranet hosts"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue := strings.Join(args, " ")
		if judgeFile == "" || judgeFile == "-" {
			if issue == "" {
				return errors.New("give the issue as arguments when candidates come from stdin")
			}
		} else if issue == "" {
			var err error
			if issue, err = readIssue(nil, cmd.InOrStdin()); err != nil {
				return err
			}
		}
		ideas, err := readCandidates(judgeFile, cmd.InOrStdin())
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

		p := startProgress(a.service.Bus(), "Ranking candidates...")
		res := a.service.Judge(ctx, issue, ideas)
		p.Stop()

		if judgeJSON {
			return writeJSON(cmd.OutOrStdout(), httpapi.NewJudgeResponse(res))
		}
		newPrinter(cmd.OutOrStdout(), judgeVerbose).Verdict(res.Verdict, nil)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(judgeCmd)

	judgeCmd.Flags().StringVarP(&judgeFile, "file", "f", "", "Candidates JSON file (default stdin)")
	judgeCmd.Flags().BoolVar(&judgeJSON, "json", false, "Output as JSON")
	judgeCmd.Flags().BoolVarP(&judgeVerbose, "verbose", "v", false, "Show per-axis scores")
}
