package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"regdocs-rag/internal/indexer"
	"regdocs-rag/internal/rag"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	dim     = color.New(color.Faint)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
)

// printReport writes the ingestion summary followed by one line per failed
// document.
func printReport(w io.Writer, r *indexer.Report) {
	fmt.Fprintf(w, "%s %d indexed (%d chunks), %d unchanged, %d failed, %d files\n",
		heading.Sprint("Ingestion:"), r.Indexed, r.Chunks, r.Skipped, r.Failed(), r.Files)

	if r.Failed() == 0 {
		_, _ = success.Fprintln(w, "All documents ingested.")
		return
	}
	_, _ = failure.Fprintln(w, "Failed documents:")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s %v\n", e.Source, warning.Sprintf("[%s]", e.Stage), e.Err)
	}
}

// printCandidates writes ranked search results.
func printCandidates(w io.Writer, res rag.RetrievalResult) {
	if len(res.Candidates) == 0 {
		_, _ = warning.Fprintf(w, "No results for %q\n", res.Query)
		return
	}
	for i, c := range res.Candidates {
		fmt.Fprintf(w, "%s %s %s\n",
			heading.Sprintf("[%d]", i+1),
			citation(c),
			dim.Sprintf("(distance %.4f)", c.Distance),
		)
		fmt.Fprintln(w, indent(strings.TrimSpace(c.Text), "    "))
		fmt.Fprintln(w)
	}
}

// printAnswer writes the generated answer and the numbered sources it was
// generated from.
func printAnswer(w io.Writer, ans rag.Answer) {
	if ans.NoContext {
		_, _ = warning.Fprintln(w, strings.TrimSpace(ans.Text))
		return
	}
	fmt.Fprintln(w, strings.TrimSpace(ans.Text))
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	_, _ = heading.Fprintln(w, "Sources:")
	for i, c := range ans.Sources {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, citation(c))
	}
}

func citation(c rag.Candidate) string {
	title := c.Title
	if title == "" {
		title = c.Source
	}
	if section := c.Section(); section != "" {
		return fmt.Sprintf("%s, %s", title, section)
	}
	return title
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
