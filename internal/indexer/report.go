package indexer

import (
	"errors"
	"fmt"
	"sort"
)

// Ingestion stages reported in IngestionError.
const (
	StageRead    = "read"
	StageConvert = "convert"
	StageSegment = "segment"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageIndex   = "index"
)

// IngestionError is a failure to ingest one document. It never aborts the
// rest of a batch.
type IngestionError struct {
	Source string
	Stage  string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Source, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Source  string
	Indexed bool
	Skipped bool // unchanged since the last ingestion
	Chunks  int
	Err     error
}

// Report summarizes a batch ingestion.
type Report struct {
	Files   int
	Indexed int
	Skipped int
	Chunks  int
	Errors  []*IngestionError
}

// Add records the outcome of one file.
func (r *Report) Add(res FileResult, err error) {
	switch {
	case err != nil:
		var ingestErr *IngestionError
		if !errors.As(err, &ingestErr) {
			ingestErr = &IngestionError{Source: res.Source, Stage: StageRead, Err: err}
		}
		r.Errors = append(r.Errors, ingestErr)
	case res.Skipped:
		r.Skipped++
	case res.Indexed:
		r.Indexed++
		r.Chunks += res.Chunks
	}
}

// sortErrors orders failures by source so reports do not depend on which
// worker finished first.
func (r *Report) sortErrors() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		return r.Errors[i].Source < r.Errors[j].Source
	})
}

// Failed returns the number of files that could not be ingested.
func (r *Report) Failed() int {
	return len(r.Errors)
}
