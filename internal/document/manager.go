// Package document orchestrates batch extraction: it fans files out to the
// media-type router, isolates per-file failures and collects results in
// input order.
package document

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"docflow/internal/chunker"
	"docflow/internal/errlog"
	"docflow/internal/extractor"
)

// MaxFileSize is the per-file size limit for batch processing.
const MaxFileSize = 50 * 1024 * 1024

var (
	ErrFileTooLarge = errors.New("文件过大，超过50MB限制")
	ErrEmptyFile    = errors.New("文件内容为空")
)

// BatchFile is one input to ProcessBatch.
type BatchFile struct {
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// FileResult is the outcome for a single batch file. Exactly one of
// Document and Error is meaningful, selected by Success.
type FileResult struct {
	FileName string                       `json:"file_name"`
	Success  bool                         `json:"success"`
	Document *extractor.ExtractedDocument `json:"document,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

// Manager runs extraction over batches of in-memory files.
type Manager struct {
	router      *extractor.Router
	splitter    *chunker.TextChunker
	maxFileSize int
}

func NewManager(router *extractor.Router) *Manager {
	return &Manager{
		router:      router,
		splitter:    chunker.NewTextChunker(),
		maxFileSize: MaxFileSize,
	}
}

// SetMaxFileSizeMB overrides the per-file size limit. Values below 1 keep
// the current limit.
func (m *Manager) SetMaxFileSizeMB(mb int) {
	if mb > 0 {
		m.maxFileSize = mb << 20
	}
}

// SetChunking overrides the indexing segment size and overlap.
func (m *Manager) SetChunking(size, overlap int) {
	if size > 0 {
		m.splitter.SegmentSize = size
	}
	if overlap >= 0 {
		m.splitter.Overlap = overlap
	}
}

// ProcessBatch extracts every file concurrently and returns one result per
// input, in input order. A failing or panicking file never affects its
// siblings; the batch always settles. Cancellation of ctx marks files whose
// extraction has not finished as failed, but running extractions are not
// interrupted mid-parse.
func (m *Manager) ProcessBatch(ctx context.Context, files []BatchFile) []FileResult {
	type indexedResult struct {
		idx int
		res FileResult
	}

	results := make([]FileResult, len(files))
	// Buffered so workers never block on send after cancellation.
	ch := make(chan indexedResult, len(files))
	for i := range files {
		go func(idx int) {
			ch <- indexedResult{idx: idx, res: m.processOne(files[idx])}
		}(i)
	}

	settled := make([]bool, len(files))
	for remaining := len(files); remaining > 0; {
		select {
		case r := <-ch:
			results[r.idx] = r.res
			settled[r.idx] = true
			remaining--
		case <-ctx.Done():
			log.Printf("[Batch] cancelled after partial completion: %v", ctx.Err())
			for i := range results {
				if !settled[i] {
					results[i] = FileResult{
						FileName: files[i].FileName,
						Success:  false,
						Error:    fmt.Sprintf("处理超时: %v", ctx.Err()),
					}
				}
			}
			return results
		}
	}
	return results
}

// processOne validates size bounds, runs the router and converts any panic
// into a failed result.
func (m *Manager) processOne(file BatchFile) (result FileResult) {
	result.FileName = file.FileName

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Document = nil
			result.Error = fmt.Sprintf("文件处理崩溃: %v", r)
			errlog.Errorf("[Batch] panic processing %s: %v", file.FileName, r)
		}
	}()

	if len(file.Data) == 0 {
		result.Error = ErrEmptyFile.Error()
		return result
	}
	if len(file.Data) > m.maxFileSize {
		result.Error = ErrFileTooLarge.Error()
		return result
	}

	doc, err := m.router.Process(file.Data, file.FileName, file.MediaType)
	if err != nil {
		result.Error = err.Error()
		errlog.Errorf("[Batch] %s: %v", file.FileName, err)
		return result
	}

	result.Success = true
	result.Document = doc
	return result
}

// SplitForIndexing flattens a normalized document into fixed-size overlapping
// text segments for downstream embedding or indexing.
func (m *Manager) SplitForIndexing(doc *extractor.ExtractedDocument) []chunker.Segment {
	if doc == nil || len(doc.Chunks) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, c := range doc.Chunks {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Text)
	}
	return m.splitter.Split(sb.String(), doc.DocumentID)
}
