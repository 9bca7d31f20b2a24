// Package chunker splits extracted document text into fixed-size segments
// with configurable overlap, sized for embedding and indexing backends.
package chunker

// DefaultSegmentSize is the number of runes per segment.
const DefaultSegmentSize = 512

// DefaultOverlap is the number of runes shared between adjacent segments.
const DefaultOverlap = 128

// TextChunker splits text into overlapping fixed-size segments.
type TextChunker struct {
	SegmentSize int
	Overlap     int
}

// Segment is one indexable slice of a document's text.
type Segment struct {
	Text       string `json:"text"`
	Index      int    `json:"index"`
	DocumentID string `json:"document_id"`
}

func NewTextChunker() *TextChunker {
	return &TextChunker{
		SegmentSize: DefaultSegmentSize,
		Overlap:     DefaultOverlap,
	}
}

// Split divides text into segments of SegmentSize runes, adjacent segments
// sharing Overlap runes. Splitting is rune-based so multi-byte characters
// are never cut. Empty text yields no segments; text at or under
// SegmentSize yields exactly one. The final segment may run short.
func (tc *TextChunker) Split(text, documentID string) []Segment {
	if len(text) == 0 {
		return nil
	}

	size := tc.SegmentSize
	if size <= 0 {
		size = DefaultSegmentSize
	}
	overlap := tc.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	step := size - overlap

	var segments []Segment
	for start, index := 0, 0; start < len(runes); start, index = start+step, index+1 {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, Segment{
			Text:       string(runes[start:end]),
			Index:      index,
			DocumentID: documentID,
		})
		if end == len(runes) {
			break
		}
	}
	return segments
}
