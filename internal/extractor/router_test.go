package extractor

import (
	"errors"
	"testing"
)

// typedExtractor supports exactly one media type and stamps its label into
// the extracted chunk.
type typedExtractor struct {
	mediaType string
	label     string
	err       error
}

func (e *typedExtractor) Supports(mediaType string) bool {
	return mediaType == e.mediaType
}

func (e *typedExtractor) Extract(buffer []byte, fileName string) (*ExtractedDocument, error) {
	if e.err != nil {
		return nil, e.err
	}
	doc := NewDocument(fileName)
	doc.Chunks = append(doc.Chunks, ContentChunk{Type: ChunkParagraph, Text: e.label})
	return doc, nil
}

func TestRoute_FirstRegisteredWins(t *testing.T) {
	r := NewRouter()
	first := &typedExtractor{mediaType: "application/pdf", label: "first"}
	second := &typedExtractor{mediaType: "application/pdf", label: "second"}
	r.Register(first)
	r.Register(second)

	e, err := r.Route("application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if e != Extractor(first) {
		t.Error("Route did not return the first registered extractor")
	}
}

func TestRoute_Unsupported(t *testing.T) {
	r := NewRouter()
	r.Register(&typedExtractor{mediaType: "application/pdf"})

	_, err := r.Route("video/mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnsupportedMediaType) {
		t.Errorf("error %v does not wrap ErrUnsupportedMediaType", err)
	}
}

func TestProcess_SetsMimeTypeAndNormalizes(t *testing.T) {
	r := NewRouter()
	r.Register(&typedExtractor{mediaType: "text/plain", label: "  spaced   text  "})

	doc, err := r.Process([]byte("x"), "a.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if doc.MimeType != "text/plain" {
		t.Errorf("MimeType = %q", doc.MimeType)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("got %d chunks", len(doc.Chunks))
	}
	if doc.Chunks[0].Text != "spaced text" {
		t.Errorf("chunk not normalized: %q", doc.Chunks[0].Text)
	}
	if doc.Chunks[0].ID == "" {
		t.Error("chunk id not assigned")
	}
}

func TestProcess_ExtractorError(t *testing.T) {
	r := NewRouter()
	wantErr := errors.New("解析失败")
	r.Register(&typedExtractor{mediaType: "text/plain", err: wantErr})

	if _, err := r.Process([]byte("x"), "a.txt", "text/plain"); !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}

func TestNewDocument_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		doc := NewDocument("f.txt")
		if doc.DocumentID == "" {
			t.Fatal("empty document id")
		}
		if seen[doc.DocumentID] {
			t.Fatalf("duplicate document id %s", doc.DocumentID)
		}
		seen[doc.DocumentID] = true
	}
}
