// Package office provides extractors for word-processing, spreadsheet, and
// slide documents, both OOXML (.docx/.xlsx/.pptx) and legacy OLE2 binary
// (.doc/.xls/.ppt) containers. Parsing is delegated to external
// document-object libraries; this package iterates their tag/cell/slide
// structures and emits typed chunks.
package office

import (
	"fmt"
	"log"
	"strings"

	"docflow/internal/extractor"
	"docflow/internal/ocr"
)

// minImageSize filters out icons and bullets from embedded-image extraction.
const minImageSize = 1024

// oleMagic is the OLE2 compound-file signature shared by legacy .doc, .xls,
// and .ppt containers.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// isOLE2 reports whether data is a legacy OLE2 compound file.
func isOLE2(data []byte) bool {
	return len(data) >= len(oleMagic) && string(data[:len(oleMagic)]) == string(oleMagic)
}

// isImageJPEGOrPNG checks if the data starts with JPEG or PNG magic bytes.
func isImageJPEGOrPNG(data []byte) bool {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return true // JPEG
	}
	if len(data) >= 4 && string(data[:4]) == "\x89PNG" {
		return true // PNG
	}
	return false
}

// recognizeImages dispatches embedded images to the recognition capability
// and returns one image chunk per recognized, non-empty result. One failed
// image never affects the others.
func recognizeImages(provider ocr.Provider, images [][]byte, tag string) []extractor.ContentChunk {
	if provider == nil || len(images) == 0 {
		return nil
	}

	sess, err := provider.Acquire()
	if err != nil {
		log.Printf("[%s] recognition engine unavailable: %v", tag, err)
		return nil
	}
	defer func() { _ = sess.Close() }()

	var chunks []extractor.ContentChunk
	for i, img := range images {
		text := strings.TrimSpace(sess.Recognize(img))
		if text == "" {
			continue
		}
		if ocr.IsErrorText(text) {
			log.Printf("[%s] image %d: %s", tag, i+1, text)
			continue
		}
		chunks = append(chunks, extractor.ContentChunk{
			Type:    extractor.ChunkImage,
			Text:    text,
			Section: fmt.Sprintf("image-%d", i+1),
		})
	}
	return chunks
}

// paragraphChunks splits plain text on blank-line boundaries into
// paragraph chunks.
func paragraphChunks(text string) []extractor.ContentChunk {
	var chunks []extractor.ContentChunk
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, extractor.ContentChunk{
			Type: extractor.ChunkParagraph,
			Text: para,
		})
	}
	return chunks
}
