package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"docflow/internal/extractor"

	"pgregory.net/rapid"
)

// stubExtractor extracts plain text files and fails or panics on demand,
// keyed by file name.
type stubExtractor struct{}

func (s *stubExtractor) Supports(mediaType string) bool {
	return mediaType == "text/plain"
}

func (s *stubExtractor) Extract(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	if strings.HasPrefix(fileName, "fail-") {
		return nil, errors.New("模拟解析失败")
	}
	if strings.HasPrefix(fileName, "panic-") {
		panic("simulated parser crash")
	}
	doc := extractor.NewDocument(fileName)
	doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
		Type: extractor.ChunkParagraph,
		Text: string(buffer),
	})
	return doc, nil
}

func newTestManager() *Manager {
	r := extractor.NewRouter()
	r.Register(&stubExtractor{})
	return NewManager(r)
}

func TestProcessBatch_ResultsInInputOrder(t *testing.T) {
	m := newTestManager()

	var files []BatchFile
	for i := 0; i < 10; i++ {
		files = append(files, BatchFile{
			FileName:  fmt.Sprintf("file-%d.txt", i),
			MediaType: "text/plain",
			Data:      []byte(fmt.Sprintf("content %d", i)),
		})
	}

	results := m.ProcessBatch(context.Background(), files)
	if len(results) != len(files) {
		t.Fatalf("got %d results, want %d", len(results), len(files))
	}
	for i, r := range results {
		if r.FileName != files[i].FileName {
			t.Errorf("result %d: FileName = %q, want %q", i, r.FileName, files[i].FileName)
		}
		if !r.Success {
			t.Errorf("result %d failed: %s", i, r.Error)
		}
	}
}

func TestProcessBatch_FailureIsolation(t *testing.T) {
	m := newTestManager()

	files := []BatchFile{
		{FileName: "ok-1.txt", MediaType: "text/plain", Data: []byte("a")},
		{FileName: "fail-2.txt", MediaType: "text/plain", Data: []byte("b")},
		{FileName: "ok-3.txt", MediaType: "text/plain", Data: []byte("c")},
	}

	results := m.ProcessBatch(context.Background(), files)
	if !results[0].Success || !results[2].Success {
		t.Error("sibling files should succeed when one fails")
	}
	if results[1].Success {
		t.Error("failing file reported success")
	}
	if results[1].Error == "" {
		t.Error("failing file has empty error")
	}
	if results[1].Document != nil {
		t.Error("failing file carries a document")
	}
}

func TestProcessBatch_PanicBecomesFailure(t *testing.T) {
	m := newTestManager()

	files := []BatchFile{
		{FileName: "ok.txt", MediaType: "text/plain", Data: []byte("a")},
		{FileName: "panic-boom.txt", MediaType: "text/plain", Data: []byte("b")},
	}

	results := m.ProcessBatch(context.Background(), files)
	if !results[0].Success {
		t.Error("sibling of panicking file should succeed")
	}
	if results[1].Success {
		t.Error("panicking file reported success")
	}
	if !strings.Contains(results[1].Error, "simulated parser crash") {
		t.Errorf("panic message not propagated, got %q", results[1].Error)
	}
}

func TestProcessBatch_SizePreChecks(t *testing.T) {
	m := newTestManager()

	files := []BatchFile{
		{FileName: "empty.txt", MediaType: "text/plain", Data: nil},
		{FileName: "huge.txt", MediaType: "text/plain", Data: make([]byte, MaxFileSize+1)},
	}

	results := m.ProcessBatch(context.Background(), files)
	if results[0].Success || results[0].Error != ErrEmptyFile.Error() {
		t.Errorf("empty file: got %+v", results[0])
	}
	if results[1].Success || results[1].Error != ErrFileTooLarge.Error() {
		t.Errorf("oversized file: got success=%v error=%q", results[1].Success, results[1].Error)
	}
}

func TestProcessBatch_UnsupportedType(t *testing.T) {
	m := newTestManager()

	results := m.ProcessBatch(context.Background(), []BatchFile{
		{FileName: "a.bin", MediaType: "application/octet-stream", Data: []byte("x")},
	})
	if results[0].Success {
		t.Fatal("unsupported media type reported success")
	}
	if !strings.HasPrefix(results[0].Error, extractor.ErrUnsupportedMediaType.Error()) {
		t.Errorf("Error = %q, want prefix %q", results[0].Error, extractor.ErrUnsupportedMediaType)
	}
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	m := newTestManager()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	results := m.ProcessBatch(ctx, []BatchFile{
		{FileName: "a.txt", MediaType: "text/plain", Data: []byte("x")},
		{FileName: "b.txt", MediaType: "text/plain", Data: []byte("y")},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// Every slot settles one way or the other.
	for i, r := range results {
		if r.FileName == "" {
			t.Errorf("result %d has no file name", i)
		}
	}
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	m := newTestManager()
	results := m.ProcessBatch(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("got %d results for empty batch", len(results))
	}
}

func TestSplitForIndexing(t *testing.T) {
	m := newTestManager()

	doc := extractor.NewDocument("big.txt")
	doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
		Type: extractor.ChunkParagraph,
		Text: strings.Repeat("字", 1000),
	})

	segments := m.SplitForIndexing(doc)
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments for 1000 runes, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.DocumentID != doc.DocumentID {
			t.Errorf("segment %d: DocumentID = %q, want %q", i, seg.DocumentID, doc.DocumentID)
		}
		if seg.Index != i {
			t.Errorf("segment %d: Index = %d", i, seg.Index)
		}
	}
}

func TestSplitForIndexing_Nil(t *testing.T) {
	m := newTestManager()
	if segs := m.SplitForIndexing(nil); segs != nil {
		t.Errorf("expected nil for nil document, got %d segments", len(segs))
	}
}

func TestProcessBatch_AlwaysSettles(t *testing.T) {
	m := newTestManager()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		var files []BatchFile
		for i := 0; i < n; i++ {
			kind := rapid.SampledFrom([]string{"ok", "fail", "panic"}).Draw(rt, "kind")
			files = append(files, BatchFile{
				FileName:  fmt.Sprintf("%s-%d.txt", kind, i),
				MediaType: "text/plain",
				Data:      []byte("x"),
			})
		}

		results := m.ProcessBatch(context.Background(), files)
		if len(results) != n {
			rt.Fatalf("got %d results, want %d", len(results), n)
		}
		for i, r := range results {
			if r.FileName != files[i].FileName {
				rt.Fatalf("result %d out of order", i)
			}
			wantSuccess := strings.HasPrefix(r.FileName, "ok-")
			if r.Success != wantSuccess {
				rt.Fatalf("result %d: Success = %v for %s", i, r.Success, r.FileName)
			}
		}
	})
}
