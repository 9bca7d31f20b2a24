// Legacy OLE2 format support: .doc and .ppt via richardlehane/mscfb, .xls
// via shakinm/xlsReader.
package office

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/shakinm/xlsReader/xls"

	"docflow/internal/extractor"
)

// extractLegacy reads a legacy .xls (BIFF) workbook.
func (e *ExcelExtractor) extractLegacy(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	wb, err := xls.OpenReader(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("xls解析错误: %w", err)
	}

	doc := extractor.NewDocument(fileName)
	numSheets := wb.GetNumberSheets()
	for i := 0; i < numSheets; i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			continue
		}

		var sb strings.Builder
		numRows := sheet.GetNumberRows()
		for rowIdx := 0; rowIdx < numRows; rowIdx++ {
			row, err := sheet.GetRow(rowIdx)
			if err != nil || row == nil {
				continue
			}
			for colIdx, cell := range row.GetCols() {
				val := strings.TrimSpace(cell.GetString())
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%d,%d: %s", rowIdx+1, colIdx+1, val))
			}
		}
		if sb.Len() == 0 {
			continue
		}
		doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
			Type:    extractor.ChunkTable,
			Text:    sb.String(),
			Section: sheet.GetName(),
		})
	}

	if len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("xls文件内容为空")
	}
	doc.Metadata["sheetCount"] = fmt.Sprintf("%d", numSheets)
	doc.Metadata["format"] = "xls_legacy"
	return doc, nil
}

// extractLegacy reads a legacy .doc file: the WordDocument stream plus the
// piece table from the 0Table/1Table stream.
func (e *WordExtractor) extractLegacy(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	cf, err := mscfb.New(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("doc解析错误: %w", err)
	}

	var wordDocData, tableData, dataStream []byte
	for {
		entry, nextErr := cf.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "WordDocument":
			wordDocData, _ = io.ReadAll(entry)
		case "0Table":
			if tableData == nil {
				tableData, _ = io.ReadAll(entry)
			}
		case "1Table":
			tableData, _ = io.ReadAll(entry)
		case "Data":
			dataStream, _ = io.ReadAll(entry)
		}
	}
	if len(wordDocData) == 0 {
		return nil, fmt.Errorf("doc解析错误: 未找到WordDocument流")
	}

	text := extractWordText(wordDocData, tableData)
	text = filterWordFieldCodes(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("doc文件内容为空")
	}

	doc := extractor.NewDocument(fileName)
	doc.Chunks = paragraphChunks(text)
	doc.Metadata["format"] = "doc_legacy"

	// Image extraction is best-effort and independently recovered.
	if len(dataStream) > 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Word] legacy image extraction panic: %v", r)
				}
			}()
			images := scanRasterImages(dataStream)
			doc.Chunks = append(doc.Chunks, recognizeImages(e.provider, images, "Word")...)
		}()
	}
	return doc, nil
}

// extractWordText locates document text through the CLX piece table, falling
// back to a direct printable-sequence scan.
func extractWordText(wordDoc, tableData []byte) string {
	if len(wordDoc) < 12 {
		return ""
	}
	if len(tableData) > 0 {
		if text := extractFromPieceTable(wordDoc, tableData); text != "" {
			return text
		}
	}
	return extractDirectText(wordDoc)
}

// extractFromPieceTable reads the CLX from the Table stream and decodes the
// text pieces it addresses in the WordDocument stream.
func extractFromPieceTable(wordDoc, tableData []byte) string {
	if len(wordDoc) < 0x01A2+8 {
		return ""
	}

	// FIB offset 0x01A2: fcClx, 0x01A6: lcbClx.
	fcClx := binary.LittleEndian.Uint32(wordDoc[0x01A2:0x01A6])
	lcbClx := binary.LittleEndian.Uint32(wordDoc[0x01A6:0x01AA])
	if fcClx == 0 || lcbClx == 0 || int(fcClx+lcbClx) > len(tableData) {
		return ""
	}
	clx := tableData[fcClx : fcClx+lcbClx]

	// Skip Prc entries (type 0x01) to find the Pcdt (type 0x02).
	pos := 0
	for pos < len(clx) {
		if clx[pos] == 0x01 {
			if pos+3 > len(clx) {
				break
			}
			cbGrpprl := int(binary.LittleEndian.Uint16(clx[pos+1 : pos+3]))
			pos += 3 + cbGrpprl
		} else if clx[pos] == 0x02 {
			pos++
			break
		} else {
			break
		}
	}
	if pos+4 > len(clx) {
		return ""
	}

	lcb := int(binary.LittleEndian.Uint32(clx[pos : pos+4]))
	pos += 4
	if pos+lcb > len(clx) || lcb < 12 {
		return ""
	}
	plcPcd := clx[pos : pos+lcb]

	// PlcPcd: n+1 CPs (uint32) followed by n PCDs (8 bytes each).
	const pcdSize = 8
	n := (lcb - 4) / (4 + pcdSize)
	if n <= 0 {
		return ""
	}
	cpArraySize := (n + 1) * 4
	if cpArraySize+n*pcdSize > lcb {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plcPcd[i*4 : i*4+4])
		cpEnd := binary.LittleEndian.Uint32(plcPcd[(i+1)*4 : (i+1)*4+4])

		pcdOffset := cpArraySize + i*pcdSize
		if pcdOffset+8 > len(plcPcd) {
			break
		}
		fcCompressed := binary.LittleEndian.Uint32(plcPcd[pcdOffset+2 : pcdOffset+6])

		isUnicode := (fcCompressed & 0x40000000) == 0
		fc := fcCompressed & 0x3FFFFFFF

		charCount := cpEnd - cpStart
		if charCount == 0 || charCount > 1000000 {
			continue
		}

		if isUnicode {
			byteLen := charCount * 2
			if int(fc+byteLen) > len(wordDoc) {
				continue
			}
			piece := wordDoc[fc : fc+byteLen]
			u16s := make([]uint16, charCount)
			for j := uint32(0); j < charCount; j++ {
				u16s[j] = binary.LittleEndian.Uint16(piece[j*2 : j*2+2])
			}
			for _, r := range utf16.Decode(u16s) {
				writeDocRune(&sb, r)
			}
		} else {
			// ANSI pieces store fc doubled.
			byteOffset := fc / 2
			if int(byteOffset+charCount) > len(wordDoc) {
				continue
			}
			for _, b := range wordDoc[byteOffset : byteOffset+charCount] {
				writeDocRune(&sb, rune(b))
			}
		}
	}
	return sb.String()
}

// writeDocRune maps Word control characters to text: paragraph/line marks
// become newlines, cell marks become tabs, other control codes are dropped.
func writeDocRune(sb *strings.Builder, r rune) {
	switch {
	case r == 0x0D || r == 0x0B:
		sb.WriteByte('\n')
	case r == 0x07:
		sb.WriteByte('\t')
	case r >= 0x20 || r == 0x09:
		sb.WriteRune(r)
	}
}

// extractDirectText scans the WordDocument stream for printable sequences.
// Less accurate, used when piece table parsing fails.
func extractDirectText(wordDoc []byte) string {
	var sb strings.Builder
	inText := false
	for _, b := range wordDoc {
		if (b >= 0x20 && b < 0x7F) || b == 0x0A || b == 0x0D || b == 0x09 {
			if b == 0x0D {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(b)
			}
			inText = true
		} else {
			if inText && sb.Len() > 0 {
				s := sb.String()
				if s[len(s)-1] != '\n' {
					sb.WriteByte('\n')
				}
			}
			inText = false
		}
	}
	return sb.String()
}

// wordFieldCodePatterns are internal Word field markers that leak through
// piece-table extraction.
var wordFieldCodePatterns = []string{
	"HYPERLINK",
	"PAGEREF",
	"MERGEFORMAT",
	"TOC \\o",
	"TOC \\h",
	"\\l \"",
	" \\h",
}

// filterWordFieldCodes drops lines containing Word field codes.
func filterWordFieldCodes(text string) string {
	lines := strings.Split(text, "\n")
	filtered := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			filtered = append(filtered, line)
			continue
		}
		isFieldCode := false
		for _, pat := range wordFieldCodePatterns {
			if strings.Contains(trimmed, pat) {
				isFieldCode = true
				break
			}
		}
		if !isFieldCode {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

// extractLegacy reads a legacy .ppt file: text records from the
// "PowerPoint Document" stream, embedded images from the "Pictures" stream.
func (e *PPTExtractor) extractLegacy(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	cf, err := mscfb.New(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("ppt解析错误: %w", err)
	}

	var pptData, picturesData []byte
	for {
		entry, nextErr := cf.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "PowerPoint Document":
			pptData, _ = io.ReadAll(entry)
		case "Pictures":
			picturesData, _ = io.ReadAll(entry)
		}
	}
	if len(pptData) == 0 {
		return nil, fmt.Errorf("ppt解析错误: 未找到PowerPoint Document流")
	}

	text := extractPPTText(pptData)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ppt文件内容为空")
	}

	doc := extractor.NewDocument(fileName)
	doc.Chunks = paragraphChunks(text)
	doc.Metadata["format"] = "ppt_legacy"

	if len(picturesData) > 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[PPT] legacy image extraction panic: %v", r)
				}
			}()
			images := extractPPTPictures(picturesData)
			doc.Chunks = append(doc.Chunks, recognizeImages(e.provider, images, "PPT")...)
		}()
	}
	return doc, nil
}

// pptNoisePatterns are master-slide template placeholders filtered from
// legacy PPT text.
var pptNoisePatterns = []string{
	"单击此处编辑母版",
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
}

var pptNoiseExact = map[string]bool{
	"*":            true,
	"二级":           true,
	"三级":           true,
	"四级":           true,
	"五级":           true,
	"Second level": true,
	"Third level":  true,
	"Fourth level": true,
	"Fifth level":  true,
}

func isPPTNoise(text string) bool {
	if pptNoiseExact[text] {
		return true
	}
	for _, pat := range pptNoisePatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}

// extractPPTText walks PPT binary records. Record headers are
// recVer(4) + recInstance(12) + recType(16) + recLen(32); text lives in
// TextCharsAtom (0x0FA0, UTF-16LE) and TextBytesAtom (0x0FA8, ANSI).
// Container records (recVer == 0x0F) are descended into.
func extractPPTText(data []byte) string {
	var sb strings.Builder
	pos := 0

	appendText := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" || isPPTNoise(text) {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	for pos+8 <= len(data) {
		recVerInstance := binary.LittleEndian.Uint16(data[pos : pos+2])
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		recVer := recVerInstance & 0x0F
		pos += 8

		if recLen > uint32(len(data)-pos) {
			break
		}

		switch recType {
		case 0x0FA0: // TextCharsAtom, UTF-16LE
			if recLen >= 2 {
				charCount := recLen / 2
				u16s := make([]uint16, charCount)
				for i := uint32(0); i < charCount; i++ {
					u16s[i] = binary.LittleEndian.Uint16(data[pos+int(i*2) : pos+int(i*2+2)])
				}
				appendText(string(utf16.Decode(u16s)))
			}
			pos += int(recLen)

		case 0x0FA8: // TextBytesAtom, ANSI
			if recLen > 0 {
				appendText(string(data[pos : pos+int(recLen)]))
			}
			pos += int(recLen)

		default:
			if recVer != 0x0F {
				pos += int(recLen)
			}
			// Containers: fall through so sub-records parse next iteration.
		}
	}

	return sb.String()
}

// extractPPTPictures walks the BLIP records of the Pictures stream. Each
// record has an 8-byte header followed by a variable BLIP header and raw
// image data. Only JPEG/PNG/EMF/WMF BLIP types are recognized; metafile
// payloads and anything under minImageSize are skipped.
func extractPPTPictures(picturesData []byte) [][]byte {
	var images [][]byte
	pos := 0

	for pos+8 <= len(picturesData) {
		recVerInstance := binary.LittleEndian.Uint16(picturesData[pos : pos+2])
		recType := binary.LittleEndian.Uint16(picturesData[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(picturesData[pos+4 : pos+8])
		recInstance := recVerInstance >> 4

		if int(recLen) > len(picturesData)-(pos+8) {
			break
		}
		recordDataStart := pos + 8
		pos += 8 + int(recLen)

		// BLIP header size depends on type and on dual-UID (recInstance bit 4).
		var blipHeaderSize int
		switch recType {
		case 0xF01D, 0xF01E: // JPEG, PNG: UID(s) + 1 tag byte
			if recInstance&0x10 != 0 {
				blipHeaderSize = 33
			} else {
				blipHeaderSize = 17
			}
		case 0xF01A, 0xF01B: // EMF, WMF: no raster payload to hand to recognition
			continue
		default:
			continue
		}
		if int(recLen) < blipHeaderSize {
			continue
		}

		imageData := append([]byte(nil), picturesData[recordDataStart+blipHeaderSize:recordDataStart+int(recLen)]...)
		if len(imageData) < minImageSize || !isImageJPEGOrPNG(imageData) {
			continue
		}
		images = append(images, imageData)
	}
	return images
}

// scanRasterImages scans a raw byte stream for embedded JPEG and PNG images
// by magic-number detection, used on the DOC Data stream.
func scanRasterImages(dataStream []byte) [][]byte {
	if len(dataStream) == 0 {
		return nil
	}

	jpegMagic := []byte{0xFF, 0xD8, 0xFF}
	jpegEOI := []byte{0xFF, 0xD9}
	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	pngIEND := []byte{0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}

	var images [][]byte
	pos := 0
	for pos < len(dataStream) {
		if pos+3 <= len(dataStream) && bytes.Equal(dataStream[pos:pos+3], jpegMagic) {
			// Boundary: next image magic or end of stream.
			boundary := len(dataStream)
			for scan := pos + 3; scan < len(dataStream); scan++ {
				if scan+3 <= len(dataStream) && bytes.Equal(dataStream[scan:scan+3], jpegMagic) {
					boundary = scan
					break
				}
				if scan+8 <= len(dataStream) && bytes.Equal(dataStream[scan:scan+8], pngMagic) {
					boundary = scan
					break
				}
			}
			// Last FF D9 within the boundary closes the image.
			lastEOI := bytes.LastIndex(dataStream[pos+3:boundary], jpegEOI)
			if lastEOI >= 0 {
				endPos := pos + 3 + lastEOI + 2
				if endPos-pos >= minImageSize {
					images = append(images, append([]byte(nil), dataStream[pos:endPos]...))
				}
				pos = endPos
				continue
			}
			pos++
			continue
		}

		if pos+8 <= len(dataStream) && bytes.Equal(dataStream[pos:pos+8], pngMagic) {
			iendIdx := bytes.Index(dataStream[pos+8:], pngIEND)
			if iendIdx >= 0 {
				endPos := pos + 8 + iendIdx + len(pngIEND)
				if endPos-pos >= minImageSize {
					images = append(images, append([]byte(nil), dataStream[pos:endPos]...))
				}
				pos = endPos
				continue
			}
			pos++
			continue
		}

		pos++
	}
	return images
}
