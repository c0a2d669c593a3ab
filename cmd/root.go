package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X roadnerd/cmd.Version=...".
var Version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "roadnerd",
	Short: "Offline IT troubleshooting with a local model",
	Long: `roadnerd helps an operator without internet access work through an IT
problem. It classifies the issue, asks a local model for candidate causes,
runs read-only checks to gather evidence and ranks the candidates.

Fixes are only ever suggested. Nothing but allow-listed diagnostics is run.`,
	SilenceUsage: true,
	Version:      Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $RN_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
