package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"roadnerd/internal/httpapi"
)

var (
	probeFile      string
	probeRunChecks bool
	probeJSON      bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the read-only verification steps of saved candidates",
	Long: `Read candidates as JSON and run their verification steps to gather
evidence. Only allow-listed read-only diagnostics are run. Everything else
is reported as rejected.

Input is a JSON array of candidates or an object with a "candidates" field,
such as the output of "roadnerd brainstorm --json".`,
	Example: `  roadnerd probe -f ideas.json
  roadnerd brainstorm --json "no route to host" | roadnerd probe --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ideas, err := readCandidates(probeFile, cmd.InOrStdin())
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

		p := startProgress(a.service.Bus(), "Running read-only checks...")
		res := a.service.Probe(ctx, ideas, probeRunChecks)
		p.Stop()

		if probeJSON {
			return writeJSON(cmd.OutOrStdout(), httpapi.NewProbeResponse(res))
		}
		out := newPrinter(cmd.OutOrStdout(), false)
		out.ProbeReport(res.Report)
		out.Ideas(res.Ideas)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&probeFile, "file", "f", "", "Candidates JSON file (default stdin)")
	probeCmd.Flags().BoolVar(&probeRunChecks, "run-checks", true, "Run the checks; false reports a dry run")
	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "Output as JSON")
}
