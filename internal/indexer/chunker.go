package indexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"regdocs-rag/internal/document"
)

const (
	defaultTargetTokens = 350
	defaultOverlapChars = 120
)

// DefaultChunkerConfig returns the default chunk sizes.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{TargetTokens: defaultTargetTokens, OverlapChars: defaultOverlapChars}
}

// ChunkerConfig controls chunk sizes.
type ChunkerConfig struct {
	// TargetTokens is the preferred upper bound on estimated tokens per chunk.
	TargetTokens int
	// OverlapChars is how much trailing text of a chunk is repeated at the
	// start of the next one when a section is split for size.
	OverlapChars int
}

// Chunker splits segmented documents into embedding-sized chunks.
type Chunker struct {
	target  int
	overlap int
}

// NewChunker creates a chunker. A zero target falls back to the default.
func NewChunker(cfg ChunkerConfig) *Chunker {
	c := &Chunker{target: cfg.TargetTokens, overlap: cfg.OverlapChars}
	if c.target <= 0 {
		c.target = defaultTargetTokens
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	return c
}

// unit is the smallest span the chunker places: a whole block, or a sentence
// or line of a block that is larger than the target.
type unit struct {
	start, end int
	section    string
	path       []string
	table      bool
}

// Chunk splits doc into chunks. Chunks never cross a section boundary, a
// table is always a chunk of its own, and nothing is dropped or truncated:
// a table or sentence larger than the target becomes one oversized chunk.
func (c *Chunker) Chunk(doc *document.Document) []Chunk {
	body := doc.Body()
	units := c.units(doc.Blocks(), len(body))
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	var (
		cur   []unit
		carry int // overlap bytes for the chunk being built
	)

	emit := func(overlap int) {
		start, end := cur[0].start, cur[len(cur)-1].end
		chunks = append(chunks, Chunk{
			DocumentID:  doc.ID,
			Position:    len(chunks),
			SectionPath: cur[0].path,
			Text:        body[start-overlap : end],
			OverlapLen:  overlap,
			Start:       start,
			End:         end,
			Oversized:   document.EstimateTokens(body[start:end]) > c.target,
		})
		cur = cur[:0]
	}

	for _, u := range units {
		if u.table {
			if len(cur) > 0 {
				emit(carry)
			}
			cur = append(cur, u)
			emit(0)
			carry = 0
			continue
		}

		if len(cur) > 0 {
			switch {
			case u.section != cur[0].section:
				emit(carry)
				carry = 0
			case document.EstimateTokens(body[cur[0].start:u.end]) > c.target:
				prevStart := cur[0].start
				emit(carry)
				carry = c.overlapFor(body, prevStart, u.start)
			}
		}
		cur = append(cur, u)
	}
	if len(cur) > 0 {
		emit(carry)
	}

	for i := range chunks {
		chunks[i].ID = ChunkID(doc.ID, chunks[i].Position)
	}
	return chunks
}

// ChunkID returns the stable identifier of the chunk at position in a document.
func ChunkID(documentID string, position int) string {
	return uuid.NewSHA1(document.Namespace(), []byte(documentID+"/"+strconv.Itoa(position))).String()
}

// units lays out blocks as units that tile [0, bodyLen). Separators belong
// to the unit before them.
func (c *Chunker) units(blocks []document.Block, bodyLen int) []unit {
	var units []unit
	for _, b := range blocks {
		section := strings.Join(b.SectionPath, "\x1f")
		if b.Node.Kind == document.KindTable {
			units = append(units, unit{start: b.Start, end: b.End, section: section, path: b.SectionPath, table: true})
			continue
		}
		for _, piece := range c.split(b.Node.Text) {
			units = append(units, unit{
				start:   b.Start + piece[0],
				end:     b.Start + piece[1],
				section: section,
				path:    b.SectionPath,
			})
		}
	}

	for i := range units {
		if i+1 < len(units) {
			units[i].end = units[i+1].start
		} else {
			units[i].end = bodyLen
		}
	}
	if len(units) > 0 {
		units[0].start = 0
	}
	return units
}

// split cuts text larger than the target at sentence boundaries, falling
// back to line breaks for sentences that are still too large. The returned
// [start, end) pairs tile text.
func (c *Chunker) split(text string) [][2]int {
	if document.EstimateTokens(text) <= c.target {
		return [][2]int{{0, len(text)}}
	}

	var pieces [][2]int
	for _, s := range sentenceSpans(text) {
		if document.EstimateTokens(text[s[0]:s[1]]) <= c.target {
			pieces = append(pieces, s)
			continue
		}
		for _, l := range lineSpans(text[s[0]:s[1]]) {
			pieces = append(pieces, [2]int{s[0] + l[0], s[0] + l[1]})
		}
	}
	return pieces
}

// sentenceSpans splits after '.', '!' or '?' followed by whitespace and a
// capital letter, digit or opening punctuation. Whitespace stays with the
// sentence before it.
func sentenceSpans(text string) [][2]int {
	var spans [][2]int
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(text) {
			ws, wsize := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(ws) {
				break
			}
			j += wsize
		}
		if j == i || j == len(text) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[j:])
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) && !strings.ContainsRune("(\"'[", next) {
			continue
		}
		spans = append(spans, [2]int{start, j})
		start = j
		i = j
	}
	return append(spans, [2]int{start, len(text)})
}

// lineSpans splits after each newline.
func lineSpans(text string) [][2]int {
	var spans [][2]int
	start := 0
	for {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 || start+idx+1 >= len(text) {
			break
		}
		end := start + idx + 1
		spans = append(spans, [2]int{start, end})
		start = end
	}
	return append(spans, [2]int{start, len(text)})
}

// overlapFor returns how many bytes before cut are repeated in the next
// chunk: at most the configured number of characters, starting at a word,
// and never reaching before prevStart.
func (c *Chunker) overlapFor(body string, prevStart, cut int) int {
	if c.overlap == 0 {
		return 0
	}

	from := cut
	for n := 0; n < c.overlap && from > prevStart; n++ {
		_, size := utf8.DecodeLastRuneInString(body[prevStart:from])
		from -= size
	}
	if from == prevStart {
		return cut - from
	}

	// Advance to the start of the next word
	for from < cut {
		r, size := utf8.DecodeRuneInString(body[from:])
		if unicode.IsSpace(r) {
			break
		}
		from += size
	}
	for from < cut {
		r, size := utf8.DecodeRuneInString(body[from:])
		if !unicode.IsSpace(r) {
			break
		}
		from += size
	}
	return cut - from
}
