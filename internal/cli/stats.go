package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"regdocs-rag/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index coverage statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
		}()

		stats, err := a.Pipeline.GetIndexingCoverageStats(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
