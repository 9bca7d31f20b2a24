package office

import (
	"bytes"
	"fmt"
	"strings"

	goexcel "github.com/VantageDataChat/GoExcel"

	"docflow/internal/extractor"
)

// ExcelExtractor handles .xlsx (OOXML via GoExcel) and legacy .xls (BIFF via
// xlsReader) workbooks. Each sheet becomes one table chunk, section set to
// the sheet name, cells rendered as "row,col: value" lines.
type ExcelExtractor struct{}

// NewExcelExtractor creates an Excel extractor.
func NewExcelExtractor() *ExcelExtractor {
	return &ExcelExtractor{}
}

// Supports reports whether the media type names a spreadsheet.
func (e *ExcelExtractor) Supports(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel", "excel", "xlsx", "xls":
		return true
	}
	return false
}

// Extract parses the workbook, routing legacy OLE2 containers to the BIFF path.
func (e *ExcelExtractor) Extract(buffer []byte, fileName string) (doc *extractor.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("excel解析错误: %v", r)
		}
	}()

	if isOLE2(buffer) {
		return e.extractLegacy(buffer, fileName)
	}

	reader := goexcel.NewXLSXReader()
	wb, err := reader.Read(bytes.NewReader(buffer), int64(len(buffer)))
	if err != nil {
		return nil, fmt.Errorf("excel解析错误: %w", err)
	}

	doc = extractor.NewDocument(fileName)
	sheetNames := wb.GetSheetNames()
	for _, name := range sheetNames {
		sheet, err := wb.GetSheetByName(name)
		if err != nil {
			continue
		}
		rows, err := sheet.RowIterator()
		if err != nil {
			continue
		}

		var sb strings.Builder
		for rowIdx, row := range rows {
			for _, cell := range row {
				if cell == nil || cell.IsEmpty() {
					continue
				}
				val := cell.GetFormattedValue()
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%d,%d: %s", rowIdx+1, cell.Col()+1, val))
			}
		}
		if sb.Len() == 0 {
			continue
		}
		doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
			Type:    extractor.ChunkTable,
			Text:    sb.String(),
			Section: name,
		})
	}

	doc.Metadata["sheetCount"] = fmt.Sprintf("%d", len(sheetNames))
	return doc, nil
}
