package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client create, list, update and delete issues with the
same validation as the HTTP API. Configure it with:

  {
    "mcpServers": {
      "issuetracker": { "command": "issuetracker", "args": ["mcp"] }
    }
  }

Available tools: issue_create, issue_list, issue_update, issue_delete.
Logs go to stderr so stdout stays reserved for the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getService()
		if err != nil {
			return err
		}
		return mcp.NewServer(svc, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
