package office

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"

	goppt "github.com/VantageDataChat/GoPPT"

	"docflow/internal/extractor"
	"docflow/internal/ocr"
)

// renderWidth is the pixel width slides are rendered at before recognition.
const renderWidth = 1280

// PPTExtractor handles .pptx (OOXML via GoPPT) and legacy .ppt (OLE2 via
// mscfb) presentations. Slide text becomes per-slide paragraph chunks with a
// "slide-N" section label; each slide is also rendered and dispatched to
// recognition for an image chunk.
type PPTExtractor struct {
	provider ocr.Provider
}

// NewPPTExtractor creates a PowerPoint extractor with the given recognition provider.
func NewPPTExtractor(provider ocr.Provider) *PPTExtractor {
	return &PPTExtractor{provider: provider}
}

// Supports reports whether the media type names a presentation.
func (e *PPTExtractor) Supports(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.ms-powerpoint", "ppt", "pptx":
		return true
	}
	return false
}

// Extract parses the presentation, routing legacy OLE2 containers to the
// binary-record path.
func (e *PPTExtractor) Extract(buffer []byte, fileName string) (doc *extractor.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("ppt解析错误: %v", r)
		}
	}()

	if isOLE2(buffer) {
		return e.extractLegacy(buffer, fileName)
	}

	pres, err := goppt.ReadFrom(bytes.NewReader(buffer), int64(len(buffer)))
	if err != nil {
		return nil, fmt.Errorf("ppt解析错误: %w", err)
	}
	defer pres.Close()

	doc = extractor.NewDocument(fileName)
	slides := pres.Slides()

	for i, slide := range slides {
		text := strings.TrimSpace(slide.ExtractText())
		if text == "" {
			continue
		}
		doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
			Type:    extractor.ChunkParagraph,
			Text:    text,
			Section: fmt.Sprintf("slide-%d", i+1),
		})
	}

	doc.Chunks = append(doc.Chunks, e.recognizeSlides(pres, len(slides))...)
	doc.Metadata["slideCount"] = fmt.Sprintf("%d", len(slides))

	return doc, nil
}

// recognizeSlides batch-renders all slides with a shared FontCache and
// dispatches each render to recognition. A slide that fails to render or
// recognize is skipped; the rest are unaffected.
func (e *PPTExtractor) recognizeSlides(pres *goppt.Presentation, slideCount int) []extractor.ContentChunk {
	if e.provider == nil || slideCount == 0 {
		return nil
	}

	opts := goppt.DefaultRenderOptions()
	opts.Width = renderWidth
	opts.FontCache = goppt.NewFontCache()

	rendered, renderErr := pres.SlidesToImages(opts)
	if renderErr != nil {
		log.Printf("[PPT] batch render failed, retrying per slide: %v", renderErr)
	}

	sess, err := e.provider.Acquire()
	if err != nil {
		log.Printf("[PPT] recognition engine unavailable: %v", err)
		return nil
	}
	defer func() { _ = sess.Close() }()

	var chunks []extractor.ContentChunk
	for i := 0; i < slideCount; i++ {
		var img image.Image
		if renderErr == nil && i < len(rendered) {
			img = rendered[i]
		} else {
			// Fallback: render the slide individually.
			single, sErr := pres.SlideToImage(i, opts)
			if sErr != nil {
				log.Printf("[PPT] slide %d: render failed: %v", i+1, sErr)
				continue
			}
			img = single
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			log.Printf("[PPT] slide %d: png encode failed: %v", i+1, err)
			continue
		}

		text := strings.TrimSpace(sess.Recognize(buf.Bytes()))
		if text == "" {
			continue
		}
		if ocr.IsErrorText(text) {
			log.Printf("[PPT] slide %d: %s", i+1, text)
			continue
		}
		chunks = append(chunks, extractor.ContentChunk{
			Type:    extractor.ChunkImage,
			Text:    text,
			Section: fmt.Sprintf("slide-%d", i+1),
		})
	}
	return chunks
}
