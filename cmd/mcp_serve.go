package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"roadnerd/internal/mcp"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start an MCP server over stdio",
	Long: `Start a Model Context Protocol (MCP) server that exposes the
troubleshooting pipeline to MCP-compatible agents.

The server provides tools for:
  - Classifying an issue
  - Brainstorming candidate causes
  - Gathering evidence with read-only checks
  - Ranking candidates
  - Querying recorded runs

To use with an MCP client, register the command as a local server:
  {
    "mcp": {
      "roadnerd": {
        "type": "local",
        "command": ["roadnerd", "mcp-serve"],
        "enabled": true
      }
    }
  }`,
	Example: `  # Start MCP server
  roadnerd mcp-serve

  # Test MCP server manually (sends JSON-RPC via stdin)
  echo '{"jsonrpc":"2.0","method":"tools/list","id":1}' | roadnerd mcp-serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := mcp.Serve(mcp.NewServer(a.service, a.db, Version, a.log)); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}
