package cli

import (
	"github.com/spf13/cobra"

	"qahub/internal/mcpserver"
)

var mcpDocs []string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the session to MCP clients over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the tools
"ask" and "list_documents".

Example client configuration:
  {
    "mcpServers": {
      "qahub": {
        "command": "/path/to/qahub",
        "args": ["mcp", "--docs", "/path/to/docs"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringSliceVar(&mcpDocs, "docs", nil, "files, directories or storage URLs to index")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd.Context(), cmd.ErrOrStderr(), mcpDocs)
	if err != nil {
		return err
	}
	defer a.Session.Close()

	server, err := mcpserver.NewServer(a.Session)
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
