package rag

import "fmt"

// Retrieval stages.
const (
	StageEmbed  = "embed"
	StageSearch = "search"
)

// RetrievalError means candidates could not be retrieved: the query could
// not be embedded or the index could not be searched. It is distinct from a
// retrieval that found nothing.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// GenerationError means relevant material was retrieved but no answer could
// be generated from it.
type GenerationError struct {
	// Timeout is set when the generation deadline expired.
	Timeout bool
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("answer generation timed out: %v", e.Err)
	}
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
