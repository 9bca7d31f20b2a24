package pdfext

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"strings"
	"testing"

	"docflow/internal/extractor"
	"docflow/internal/ocr"
)

// fakeSession records recognition calls and returns canned text.
type fakeSession struct {
	text   string
	calls  int
	closed bool
}

func (s *fakeSession) Recognize(image []byte) string {
	s.calls++
	return s.text
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeProvider hands out a single session.
type fakeProvider struct {
	session *fakeSession
	err     error
}

func (p *fakeProvider) Acquire() (ocr.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

// fakeLayer builds a TextLayerFunc from per-page text, 0-indexed.
func fakeLayer(pages ...string) func(data []byte) TextLayerFunc {
	return func(data []byte) TextLayerFunc {
		return func(page int) ([]TextItem, error) {
			if page < 0 || page >= len(pages) {
				return nil, errors.New("page out of range")
			}
			var items []TextItem
			for _, line := range strings.Split(pages[page], "\n") {
				items = append(items, TextItem{Text: line, EOL: true})
			}
			return items, nil
		}
	}
}

// minimalPDF builds a one-page PDF whose content stream shows the given
// text. Cross-reference offsets are computed while writing, so the file is
// structurally valid.
func minimalPDF(streamText string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 50 700 Td (%s) Tj ET", streamText)

	var sb strings.Builder
	offsets := make([]int, 0, 5)
	obj := func(body string) {
		offsets = append(offsets, sb.Len())
		sb.WriteString(body)
	}

	sb.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")
	obj("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	obj(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(content), content))

	xrefPos := sb.Len()
	sb.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	sb.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		sb.WriteString(fmt.Sprintf("%010d %05d n \n", off, 0))
	}
	sb.WriteString(fmt.Sprintf(
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos))

	return []byte(sb.String())
}

// imagePDF builds a one-page PDF carrying a text content stream and a 4x4
// FlateDecode DeviceGray image XObject. Offsets are computed while writing,
// the same way minimalPDF does it.
func imagePDF(streamText string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 50 700 Td (%s) Tj ET", streamText)

	pixels := make([]byte, 16)
	for i := range pixels {
		pixels[i] = byte(i * 16)
	}
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write(pixels)
	zw.Close()

	var buf bytes.Buffer
	offsets := make([]int, 0, 6)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 4 0 R >> /XObject << /Im1 6 0 R >> >> " +
		"/Contents 5 0 R >>\nendobj\n")
	obj("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	obj(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(content), content))
	obj(fmt.Sprintf("6 0 obj\n<< /Type /XObject /Subtype /Image /Width 4 /Height 4 "+
		"/ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode "+
		"/Length %d >>\nstream\n", comp.Len()))
	buf.Write(comp.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d %05d n \n", off, 0)
	}
	fmt.Fprintf(&buf,
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos)

	return buf.Bytes()
}

func TestSupports(t *testing.T) {
	e := New(nil)
	for _, mt := range []string{"application/pdf", "application/x-pdf", "pdf", "PDF"} {
		if !e.Supports(mt) {
			t.Errorf("Supports(%q) = false", mt)
		}
	}
	for _, mt := range []string{"application/msword", "text/html", ""} {
		if e.Supports(mt) {
			t.Errorf("Supports(%q) = true", mt)
		}
	}
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	e := New(nil)
	if _, err := e.Extract([]byte("this is not a pdf"), "x.pdf"); err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if _, err := e.Extract(nil, "x.pdf"); err == nil {
		t.Fatal("expected error for empty buffer")
	}
}

func TestExtract_StructuredText(t *testing.T) {
	dense := strings.Repeat("structured text line. ", 10)

	e := New(nil)
	e.textLayer = fakeLayer(dense)

	doc, err := e.Extract(minimalPDF("ignored"), "report.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Chunks) == 0 {
		t.Fatal("no chunks extracted")
	}
	if doc.Chunks[0].Page != 1 {
		t.Errorf("Page = %d, want 1", doc.Chunks[0].Page)
	}
	if !strings.Contains(doc.Chunks[0].Text, "structured text line.") {
		t.Errorf("chunk text = %q", doc.Chunks[0].Text)
	}
	if doc.Metadata["pageCount"] != "1" {
		t.Errorf("pageCount = %q, want 1", doc.Metadata["pageCount"])
	}
	if doc.Metadata["isScannedPdf"] != "false" {
		t.Errorf("isScannedPdf = %q, want false", doc.Metadata["isScannedPdf"])
	}
	if _, present := doc.Metadata["ocrPages"]; present {
		t.Error("dense page must not appear in ocrPages")
	}
}

func TestExtract_ContentStreamFallback(t *testing.T) {
	// Structured layer yields nothing; the raw content stream still carries
	// the shown text.
	e := New(nil)
	e.textLayer = fakeLayer("")

	doc, err := e.Extract(minimalPDF("RECOVERED FROM STREAM"), "scan.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(doc.Chunks))
	}
	if doc.Chunks[0].Text != "RECOVERED FROM STREAM" {
		t.Errorf("chunk text = %q", doc.Chunks[0].Text)
	}
	// The structured layer was empty, so the page is sparse regardless of
	// what the fallback recovered.
	if doc.Metadata["ocrPages"] != "1" {
		t.Errorf("ocrPages = %q, want 1", doc.Metadata["ocrPages"])
	}
	if doc.Metadata["isScannedPdf"] != "true" {
		t.Errorf("isScannedPdf = %q, want true", doc.Metadata["isScannedPdf"])
	}
}

func TestExtract_SparsePageSingleChunk(t *testing.T) {
	// Sparse structured text is kept as one paragraph, not split or
	// classified.
	e := New(nil)
	e.textLayer = fakeLayer("SHORT\n\nTEXT")

	doc, err := e.Extract(minimalPDF(""), "thin.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(doc.Chunks))
	}
	if doc.Chunks[0].Type != extractor.ChunkParagraph {
		t.Errorf("Type = %q, want paragraph", doc.Chunks[0].Type)
	}
}

func TestExtract_SessionClosedOnSuccess(t *testing.T) {
	sess := &fakeSession{text: ""}
	e := New(&fakeProvider{session: sess})
	e.textLayer = fakeLayer(strings.Repeat("dense text for the page. ", 5))

	if _, err := e.Extract(minimalPDF("x"), "doc.pdf"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !sess.closed {
		t.Error("session not closed after extraction")
	}
}

func TestExtract_ProviderFailureDegradesToText(t *testing.T) {
	e := New(&fakeProvider{err: errors.New("engine unavailable")})
	e.textLayer = fakeLayer(strings.Repeat("text without recognition. ", 5))

	doc, err := e.Extract(minimalPDF("x"), "doc.pdf")
	if err != nil {
		t.Fatalf("Extract should not fail when recognition is unavailable: %v", err)
	}
	if len(doc.Chunks) == 0 {
		t.Error("text chunks missing when recognition is unavailable")
	}
}

func TestExtract_EmbeddedImageRecognized(t *testing.T) {
	sess := &fakeSession{text: "caption recovered from the figure"}
	e := New(&fakeProvider{session: sess})
	e.textLayer = fakeLayer(strings.Repeat("dense page text with content. ", 5))

	doc, err := e.Extract(imagePDF("x"), "figures.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if sess.calls != 1 {
		t.Fatalf("Recognize calls = %d, want 1", sess.calls)
	}
	if len(doc.Chunks) < 2 {
		t.Fatalf("got %d chunks, want text and image chunks", len(doc.Chunks))
	}

	img := doc.Chunks[len(doc.Chunks)-1]
	if img.Type != extractor.ChunkImage {
		t.Errorf("last chunk type = %q, want image", img.Type)
	}
	if img.Page != 1 {
		t.Errorf("image chunk page = %d, want 1", img.Page)
	}
	if img.Section != "image-1" {
		t.Errorf("image chunk section = %q, want image-1", img.Section)
	}
	if img.Text != sess.text {
		t.Errorf("image chunk text = %q, want %q", img.Text, sess.text)
	}
	// Text chunks from a page precede its image chunks.
	for i, c := range doc.Chunks[:len(doc.Chunks)-1] {
		if c.Type == extractor.ChunkImage {
			t.Errorf("chunk %d is an image chunk before the page's text chunks ended", i)
		}
	}
}

func TestExtract_ImageRecognitionFailureSkipped(t *testing.T) {
	sess := &fakeSession{text: ocr.ErrorText("engine crashed")}
	e := New(&fakeProvider{session: sess})
	e.textLayer = fakeLayer(strings.Repeat("dense page text with content. ", 5))

	doc, err := e.Extract(imagePDF("x"), "figures.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if sess.calls != 1 {
		t.Fatalf("Recognize calls = %d, want 1", sess.calls)
	}
	for _, c := range doc.Chunks {
		if c.Type == extractor.ChunkImage {
			t.Errorf("failed recognition must not produce an image chunk, got %q", c.Text)
		}
	}
}

func TestSplitParagraphChunks(t *testing.T) {
	text := "INTRODUCTION\n\nBody paragraph one with content.\n\nBody paragraph two."
	chunks := splitParagraphChunks(text, 3)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Type != extractor.ChunkHeading {
		t.Errorf("chunk 0 type = %q, want heading", chunks[0].Type)
	}
	if chunks[1].Type != extractor.ChunkParagraph || chunks[2].Type != extractor.ChunkParagraph {
		t.Error("body chunks must be paragraphs")
	}
	for i, c := range chunks {
		if c.Page != 3 {
			t.Errorf("chunk %d page = %d, want 3", i, c.Page)
		}
	}
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		para string
		want bool
	}{
		{"INTRODUCTION", true},
		{"CHAPTER ONE: RESULTS", true},
		{"Mixed Case Title", false},
		{"REPORT 2024 FIGURES 20240101", false}, // 4+ digit run
		{"ABC 123", true},                       // short digit run allowed
		{strings.Repeat("A", 120), false},       // too long
		{strings.Repeat("A", 119), true},
		{"中文标题", true}, // no case distinction, no digits
	}
	for _, tt := range tests {
		if got := isHeading(tt.para); got != tt.want {
			t.Errorf("isHeading(%q) = %v, want %v", tt.para, got, tt.want)
		}
	}
}

func TestAssembleTextItems(t *testing.T) {
	items := []TextItem{
		{Text: "first line", EOL: true},
		{Text: "second", EOL: false},
		{Text: "half", EOL: true},
	}
	got := assembleTextItems(items)
	want := "first line\nsecond half"
	if got != want {
		t.Errorf("assembleTextItems = %q, want %q", got, want)
	}
}

func TestAssembleTextItems_CollapsesNewlineRuns(t *testing.T) {
	items := []TextItem{
		{Text: "a", EOL: true},
		{Text: "", EOL: true},
		{Text: "", EOL: true},
		{Text: "", EOL: true},
		{Text: "b", EOL: true},
	}
	got := assembleTextItems(items)
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("newline run not collapsed: %q", got)
	}
}
