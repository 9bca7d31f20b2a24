package office

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	goword "github.com/VantageDataChat/GoWord"

	"docflow/internal/extractor"
	"docflow/internal/ocr"
)

// WordExtractor handles .docx (OOXML via GoWord) and legacy .doc (OLE2 via
// mscfb) documents.
type WordExtractor struct {
	provider ocr.Provider
}

// NewWordExtractor creates a Word extractor with the given recognition provider.
func NewWordExtractor(provider ocr.Provider) *WordExtractor {
	return &WordExtractor{provider: provider}
}

// Supports reports whether the media type names a Word document.
func (e *WordExtractor) Supports(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword", "word", "docx", "doc":
		return true
	}
	return false
}

// Extract parses the document. Legacy OLE2 containers are detected by magic
// bytes and routed to the binary-format path.
func (e *WordExtractor) Extract(buffer []byte, fileName string) (doc *extractor.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("word解析错误: %v", r)
		}
	}()

	if isOLE2(buffer) {
		return e.extractLegacy(buffer, fileName)
	}

	wdoc, err := goword.OpenFromBytes(buffer)
	if err != nil {
		return nil, fmt.Errorf("word解析错误: %w", err)
	}

	doc = extractor.NewDocument(fileName)
	doc.Chunks = paragraphChunks(wdoc.ExtractText())
	if title := wdoc.Properties.Title; title != "" {
		doc.Metadata["title"] = title
	}

	images := docxMediaImages(buffer)
	doc.Chunks = append(doc.Chunks, recognizeImages(e.provider, images, "Word")...)
	doc.Metadata["imageCount"] = fmt.Sprintf("%d", len(images))

	return doc, nil
}

// docxMediaImages reads embedded images directly from the DOCX ZIP
// (word/media/*); GoWord's reader does not populate them.
func docxMediaImages(data []byte) [][]byte {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	var images [][]byte
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "word/media/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		imgData, err := io.ReadAll(io.LimitReader(rc, 20<<20)) // 20MB max per image
		rc.Close()
		if err != nil || len(imgData) < minImageSize {
			continue
		}
		if !isImageJPEGOrPNG(imgData) {
			log.Printf("[Word] skipping %s: unsupported format (ext=%s)",
				f.Name, strings.ToLower(filepath.Ext(f.Name)))
			continue
		}
		images = append(images, imgData)
	}
	return images
}
