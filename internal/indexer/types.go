package indexer

// Chunk is a contiguous span of a document body sized for embedding.
//
// Start and End are byte offsets of the chunk's new content in the body.
// Text is body[Start-OverlapLen:End]: the overlap carried from the previous
// chunk followed by the new content. Consecutive chunks tile the body, so
// joining Text[OverlapLen:] over all chunks reproduces it exactly.
type Chunk struct {
	ID          string
	DocumentID  string
	Position    int      // Chunk index within document (starts at 0)
	SectionPath []string // Heading texts, outermost first
	Text        string
	OverlapLen  int
	Start       int
	End         int
	Oversized   bool // a single table or sentence larger than the target
}

// Content returns the chunk text without the carried overlap.
func (c Chunk) Content() string {
	return c.Text[c.OverlapLen:]
}
