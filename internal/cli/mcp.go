package cli

import (
	"github.com/spf13/cobra"

	"regdocs-rag/internal/app"
	"regdocs-rag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search and ask as MCP tools over stdio",
	Long: `mcp runs a Model Context Protocol server on stdin/stdout exposing the
search and ask tools. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, app.Options{ProbeEmbedder: true})
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
		}()

		srv, err := mcp.NewServer(a.Queries, app.Version)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
