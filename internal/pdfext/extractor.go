package pdfext

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docflow/internal/extractor"
	"docflow/internal/ocr"
)

// SparseTextThreshold is the character count below which a page is presumed
// to be a scanned image and routed to recognition.
const SparseTextThreshold = 50

// headingMaxLen bounds the heading classification heuristic.
const headingMaxLen = 120

// Extractor implements extractor.Extractor for PDF documents. Per page it
// tries the structured text layer first, falls back to raw content-stream
// tokenization, and routes embedded rasters to recognition. Failures are
// isolated per page.
type Extractor struct {
	provider ocr.Provider

	// textLayer builds the structured-text capability for a document.
	// Tests inject fakes; production uses the GoPDF2 adapter.
	textLayer func(data []byte) TextLayerFunc

	threshold int
}

// New creates a PDF extractor with the given recognition provider.
func New(provider ocr.Provider) *Extractor {
	return &Extractor{
		provider:  provider,
		textLayer: gopdfTextLayer,
		threshold: SparseTextThreshold,
	}
}

// SetSparseThreshold overrides the sparse-page character threshold.
// Values below 1 keep the current setting.
func (e *Extractor) SetSparseThreshold(n int) {
	if n > 0 {
		e.threshold = n
	}
}

// Supports reports whether the media type names a PDF document.
func (e *Extractor) Supports(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/pdf", "application/x-pdf", "pdf":
		return true
	}
	return false
}

// Extract runs the per-page pipeline and returns the un-normalized document.
func (e *Extractor) Extract(buffer []byte, fileName string) (doc *extractor.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("pdf解析错误: %v", r)
		}
	}()

	if len(buffer) < 5 || string(buffer[:5]) != "%PDF-" {
		return nil, fmt.Errorf("pdf解析错误: 不是有效的PDF文件")
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(buffer), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdf解析错误: %w", err)
	}

	doc = extractor.NewDocument(fileName)
	layer := e.textLayer(buffer)

	// The recognition engine is acquired once per document and released on
	// every exit path; release failures are swallowed.
	var sess ocr.Session
	if e.provider != nil {
		s, serr := e.provider.Acquire()
		if serr != nil {
			log.Printf("[PDF] recognition engine unavailable: %v", serr)
		} else {
			sess = s
			defer func() { _ = sess.Close() }()
		}
	}

	var ocrPages []int
	for page := 1; page <= ctx.PageCount; page++ {
		structured := e.pageStructuredText(layer, page)

		// The sparse decision looks at the structured layer only; the
		// content-stream fallback is a recovery path, not a veto.
		sparse := len([]rune(structured)) < e.threshold
		if sparse {
			ocrPages = append(ocrPages, page)
		}

		pageText := structured
		if structured == "" {
			pageText = e.pageStreamText(ctx, page)
		}
		pageText = strings.TrimSpace(pageText)

		if pageText != "" {
			if sparse {
				// Keep whatever partial text was found as a single paragraph.
				doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
					Type: extractor.ChunkParagraph,
					Text: pageText,
					Page: page,
				})
			} else {
				doc.Chunks = append(doc.Chunks, splitParagraphChunks(pageText, page)...)
			}
		}

		doc.Chunks = append(doc.Chunks, e.recognizePageImages(ctx, sess, page)...)
	}

	doc.Metadata["pageCount"] = strconv.Itoa(ctx.PageCount)
	if len(ocrPages) > 0 {
		parts := make([]string, len(ocrPages))
		for i, p := range ocrPages {
			parts[i] = strconv.Itoa(p)
		}
		doc.Metadata["ocrPages"] = strings.Join(parts, ",")
	}
	doc.Metadata["isScannedPdf"] = strconv.FormatBool(ctx.PageCount > 0 && len(ocrPages) == ctx.PageCount)

	return doc, nil
}

// pageStructuredText runs the structured-text attempt for one page.
// Any failure yields an empty contribution for that page only.
func (e *Extractor) pageStructuredText(layer TextLayerFunc, page int) string {
	items, err := layer(page - 1)
	if err != nil {
		log.Printf("[PDF] page %d: text layer failed: %v", page, err)
		return ""
	}
	return assembleTextItems(items)
}

// pageStreamText runs the content-stream fallback for one page.
func (e *Extractor) pageStreamText(ctx *model.Context, page int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, page)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return ExtractStreamText(data)
}

// recognizePageImages decodes the page's embedded rasters and dispatches
// each to the recognition session. A failed recognition is logged and
// skipped; other images on the page are unaffected.
func (e *Extractor) recognizePageImages(ctx *model.Context, sess ocr.Session, page int) []extractor.ContentChunk {
	if sess == nil {
		return nil
	}

	var chunks []extractor.ContentChunk
	for i, img := range extractPageImages(ctx, page) {
		text := strings.TrimSpace(sess.Recognize(img.Data))
		if text == "" {
			continue
		}
		if ocr.IsErrorText(text) {
			log.Printf("[PDF] page %d image %d: %s", page, i+1, text)
			continue
		}
		chunks = append(chunks, extractor.ContentChunk{
			Type:    extractor.ChunkImage,
			Text:    text,
			Page:    page,
			Section: fmt.Sprintf("image-%d", i+1),
		})
	}
	return chunks
}

var (
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)
	digitRunRe  = regexp.MustCompile(`\d{4,}`)
)

// splitParagraphChunks splits page text on blank-line boundaries and
// classifies each paragraph. A paragraph is a heading when it is short,
// equals its own upper-cased form, and contains no run of 4+ digits.
func splitParagraphChunks(text string, page int) []extractor.ContentChunk {
	var chunks []extractor.ContentChunk
	for _, para := range blankLineRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunkType := extractor.ChunkParagraph
		if isHeading(para) {
			chunkType = extractor.ChunkHeading
		}
		chunks = append(chunks, extractor.ContentChunk{
			Type: chunkType,
			Text: para,
			Page: page,
		})
	}
	return chunks
}

func isHeading(para string) bool {
	return len([]rune(para)) < headingMaxLen &&
		para == strings.ToUpper(para) &&
		!digitRunRe.MatchString(para)
}
