// Package main provides the App struct that serves as the API facade
// for the docflow pipeline, delegating to internal service components.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/chunker"
	"docflow/internal/config"
	"docflow/internal/document"
	"docflow/internal/extractor"
	"docflow/internal/markup"
	"docflow/internal/ocr"
	"docflow/internal/office"
	"docflow/internal/pdfext"
)

// App binds the extraction components behind a small facade. Each public
// method delegates to the appropriate service component.
type App struct {
	configManager *config.Manager
	router        *extractor.Router
	docManager    *document.Manager
}

// NewApp wires the full pipeline from loaded configuration: OCR provider,
// per-format extractors in routing order, batch manager.
func NewApp(cm *config.Manager) *App {
	cfg := cm.Get()

	// Languages use the tesseract convention, e.g. "eng+chi_sim".
	var languages []string
	if cfg.OCR.Languages != "" {
		languages = strings.Split(cfg.OCR.Languages, "+")
	}
	provider := ocr.DefaultProvider(cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.ModelName, languages)

	pdf := pdfext.New(provider)
	pdf.SetSparseThreshold(cfg.Extract.SparseThreshold)

	router := extractor.NewRouter()
	router.Register(pdf)
	router.Register(office.NewWordExtractor(provider))
	router.Register(office.NewExcelExtractor())
	router.Register(office.NewPPTExtractor(provider))
	router.Register(markup.NewMarkdownExtractor())
	router.Register(markup.NewHTMLExtractor())

	docManager := document.NewManager(router)
	docManager.SetMaxFileSizeMB(cfg.Extract.MaxFileSizeMB)
	docManager.SetChunking(cfg.Extract.ChunkSize, cfg.Extract.Overlap)

	return &App{
		configManager: cm,
		router:        router,
		docManager:    docManager,
	}
}

// ProcessFiles reads each path from disk and runs the batch pipeline over
// them. Unreadable files become failed results; siblings are unaffected.
func (a *App) ProcessFiles(ctx context.Context, paths []string) []document.FileResult {
	files := make([]document.BatchFile, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			// Leave Data empty; the manager rejects it as an empty file,
			// but report the read error directly for clarity.
			files[i] = document.BatchFile{FileName: filepath.Base(path)}
			continue
		}
		files[i] = document.BatchFile{
			FileName:  filepath.Base(path),
			MediaType: mediaTypeForFile(path),
			Data:      data,
		}
	}

	results := a.docManager.ProcessBatch(ctx, files)
	for i, path := range paths {
		if len(files[i].Data) == 0 {
			if _, err := os.Stat(path); err != nil {
				results[i].Error = fmt.Sprintf("读取文件失败: %v", err)
			}
		}
	}
	return results
}

// ProcessBatch runs extraction over in-memory files.
func (a *App) ProcessBatch(ctx context.Context, files []document.BatchFile) []document.FileResult {
	return a.docManager.ProcessBatch(ctx, files)
}

// SplitForIndexing splits an extracted document into overlapping segments.
func (a *App) SplitForIndexing(doc *extractor.ExtractedDocument) []chunker.Segment {
	return a.docManager.SplitForIndexing(doc)
}

// UpdateConfig applies partial configuration updates and persists them.
func (a *App) UpdateConfig(updates map[string]interface{}) error {
	return a.configManager.Update(updates)
}

// Timeout returns the configured wall-clock budget for a batch.
func (a *App) Timeout() time.Duration {
	cfg := a.configManager.Get()
	if cfg == nil || cfg.Extract.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(cfg.Extract.TimeoutSeconds) * time.Second
}

// mediaTypeForFile maps a file extension to the media type the router
// dispatches on.
func mediaTypeForFile(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "ppt":
		return "application/vnd.ms-powerpoint"
	case "md", "markdown":
		return "text/markdown"
	case "html", "htm":
		return "text/html"
	default:
		return ""
	}
}
