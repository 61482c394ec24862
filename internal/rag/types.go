package rag

import "strings"

// Query is a search or ask request after validation.
type Query struct {
	// Text is the search query or the question.
	Text string
	// Limit is the number of chunks to retrieve.
	Limit int
	// Source optionally restricts retrieval to one source document.
	Source string
}

// Candidate is a retrieved chunk with its distance to the query.
type Candidate struct {
	ChunkID     string
	DocumentID  string
	Title       string
	Source      string
	SectionPath []string
	Position    int
	Text        string
	// Distance is the cosine distance to the query. Lower is closer.
	Distance float32
}

// Section returns the section path joined for display.
func (c Candidate) Section() string {
	return strings.Join(c.SectionPath, " > ")
}

// RetrievalResult is the ranked result of one retrieval, ordered by
// ascending distance.
type RetrievalResult struct {
	Query      string
	Candidates []Candidate
}

// Answer is a generated answer and the chunks it was generated from.
type Answer struct {
	Question string
	Text     string
	// Sources are exactly the candidates placed in the prompt, in prompt order.
	Sources []Candidate
	// NoContext is set when retrieval found nothing and no generation ran.
	NoContext bool
}
