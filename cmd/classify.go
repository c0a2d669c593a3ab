package cmd

import (
	"github.com/spf13/cobra"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify [issue]",
	Short: "Show the category the classifier assigns to an issue",
	Long: `Classify an issue description without calling the model.

Prints the top category, its confidence, the runner-up labels and whether
the input looks like a problem report, a command or a question.`,
	Example: `  roadnerd classify "dns lookups time out on the vpn"
  echo "no wifi networks listed" | roadnerd classify --json`,
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

		res := a.service.Classify(issue)
		if classifyJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		newPrinter(cmd.OutOrStdout(), false).Classification(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output as JSON")
}
