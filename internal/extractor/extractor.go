// Package extractor defines the document extraction contract: the Extractor
// capability, the ExtractedDocument/ContentChunk data model, the media-type
// Router, and the chunk normalizer applied to every extractor's output.
package extractor

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ChunkType classifies a content chunk.
type ChunkType string

const (
	ChunkHeading   ChunkType = "heading"
	ChunkParagraph ChunkType = "paragraph"
	ChunkTable     ChunkType = "table"
	ChunkList      ChunkType = "list"
	ChunkImage     ChunkType = "image"
)

// ContentChunk is one semantically typed unit of extracted text.
// ID is empty until NormalizeDocument assigns it; extractors must never set it.
type ContentChunk struct {
	ID      string    `json:"id"`
	Type    ChunkType `json:"type"`
	Text    string    `json:"text"`
	Page    int       `json:"page,omitempty"`    // 1-indexed
	Section string    `json:"section,omitempty"` // slide/sheet/image label
}

// ExtractedDocument is the result of extracting one file.
// It is created fresh per Extract call, mutated only by the normalizer,
// and immutable afterwards.
type ExtractedDocument struct {
	DocumentID string            `json:"document_id"`
	FileName   string            `json:"file_name"`
	MimeType   string            `json:"mime_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Chunks     []ContentChunk    `json:"chunks"`
}

// NewDocument creates an ExtractedDocument with a freshly assigned DocumentID.
// The ID is assigned exactly once and never reassigned.
func NewDocument(fileName string) *ExtractedDocument {
	return &ExtractedDocument{
		DocumentID: generateID(),
		FileName:   fileName,
		Metadata:   make(map[string]string),
	}
}

// Extractor is the polymorphic format-extractor capability.
// Extract fails by returning an error, never by silently returning an
// empty success.
type Extractor interface {
	// Supports reports whether this extractor handles the given media type.
	Supports(mediaType string) bool
	// Extract parses the buffer and returns a document with un-normalized chunks.
	Extract(buffer []byte, fileName string) (*ExtractedDocument, error)
}

// generateID returns a 16-char random hex document id.
func generateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; keep a defined result anyway.
		return fmt.Sprintf("doc-%p", &b)
	}
	return hex.EncodeToString(b)
}
