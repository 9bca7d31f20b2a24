package pdfext

import (
	"regexp"
	"strings"

	gopdf "github.com/VantageDataChat/GoPDF2"
)

// TextItem is one already-tokenized item from a page's structured text
// layer. EOL marks the item as ending its line.
type TextItem struct {
	Text string
	EOL  bool
}

// TextLayerFunc returns the structured text items of a 0-indexed page.
// An error or an empty item list means the page has no usable text layer.
type TextLayerFunc func(page int) ([]TextItem, error)

// gopdfTextLayer adapts GoPDF2 page text extraction to the text-layer
// capability. GoPDF2 yields line-assembled text, so every line becomes one
// item with EOL set.
func gopdfTextLayer(data []byte) TextLayerFunc {
	return func(page int) ([]TextItem, error) {
		text, err := gopdf.ExtractPageText(data, page)
		if err != nil {
			return nil, err
		}
		var items []TextItem
		for _, line := range strings.Split(text, "\n") {
			items = append(items, TextItem{Text: line, EOL: true})
		}
		return items, nil
	}
}

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	newlineRunRe    = regexp.MustCompile(`\n{3,}`)
)

// assembleTextItems concatenates structured text items, inserting a newline
// where an item reports end-of-line and a space otherwise, then collapses
// trailing whitespace before newlines and runs of 3+ newlines to 2.
func assembleTextItems(items []TextItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.Text)
		if item.EOL {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}

	text := trailingSpaceRe.ReplaceAllString(sb.String(), "\n")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
