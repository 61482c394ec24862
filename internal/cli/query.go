package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"regdocs-rag/internal/app"
	"regdocs-rag/internal/service"
)

var (
	queryLimit  int
	querySource string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the passages closest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
		}()

		res, err := a.Queries.Search(ctx, service.SearchRequest{
			Query:  strings.Join(args, " "),
			Limit:  queryLimit,
			Source: querySource,
		})
		if err != nil {
			return err
		}
		printCandidates(cmd.OutOrStdout(), res)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the corpus with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, app.Options{})
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
		}()

		ans, err := a.Queries.Ask(ctx, service.AskRequest{
			Question: strings.Join(args, " "),
			Limit:    queryLimit,
			Source:   querySource,
		})
		if err != nil {
			return err
		}
		printAnswer(cmd.OutOrStdout(), ans)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().IntVarP(&queryLimit, "limit", "k", 0, "number of passages to retrieve (0 uses the default)")
		c.Flags().StringVarP(&querySource, "source", "s", "", "restrict retrieval to one source document (relative path)")
		rootCmd.AddCommand(c)
	}
}
