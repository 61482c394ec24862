package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"regdocs-rag/internal/app"
	"regdocs-rag/internal/indexer"
)

var (
	ingestForce   bool
	ingestRebuild bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest the corpus, or a single file inside it",
	Long: `Ingest reads every corpus file matched by CORPUS_INCLUDE, converts it to
markdown, splits it into section-aware chunks, embeds them and writes them to the
vector index. Unchanged documents are skipped unless --force is given.

With a path argument only that file is ingested. --rebuild drops the collection
and the catalog first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest documents even if unchanged")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "drop the index and ingest everything")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ingestRebuild && len(args) > 0 {
		return fmt.Errorf("--rebuild cannot be combined with a path")
	}

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	progress := func(res indexer.FileResult) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar != nil {
			bar.Describe(describeFile(res))
			_ = bar.Add(1)
		}
	}

	a, err := openApp(ctx, app.Options{ProbeEmbedder: true, Progress: progress})
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		res, err := a.Pipeline.IngestPath(ctx, args[0], ingestForce)
		report := &indexer.Report{Files: 1}
		report.Add(res, err)
		printReport(out, report)
		return reportError(report)
	}

	files, err := a.Pipeline.Files(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No documents matched in %s\n", a.Config.CorpusDir)
		return nil
	}

	barMu.Lock()
	bar = newProgressBar(len(files))
	barMu.Unlock()

	var report *indexer.Report
	if ingestRebuild {
		report, err = a.Pipeline.Rebuild(ctx)
	} else {
		report, err = a.Pipeline.IngestAll(ctx, ingestForce)
	}
	_ = bar.Finish()
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		return err
	}
	return reportError(report)
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func describeFile(res indexer.FileResult) string {
	switch {
	case res.Err != nil:
		return fmt.Sprintf("[red]%s[reset]", res.Source)
	case res.Skipped:
		return fmt.Sprintf("[yellow]%s[reset]", res.Source)
	default:
		return fmt.Sprintf("[cyan]%s[reset]", res.Source)
	}
}

func reportError(r *indexer.Report) error {
	if n := r.Failed(); n > 0 {
		return fmt.Errorf("%d document(s) failed to ingest", n)
	}
	return nil
}
