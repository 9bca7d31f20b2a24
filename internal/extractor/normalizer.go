package extractor

import (
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes for CleanText to avoid recompilation on every call.
var (
	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText removes excessive whitespace and meaningless special characters
// from text. It trims leading/trailing whitespace, collapses runs of spaces
// and tabs into one space per line, removes control characters (except
// newlines and tabs), and collapses 3+ consecutive newlines into 2.
func CleanText(text string) string {
	text = controlCharRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = multiSpaceRe.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		cleaned = append(cleaned, line)
	}
	text = strings.Join(cleaned, "\n")

	text = multiNewlineRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// NormalizeDocument cleans every chunk's text, drops chunks that end up
// empty, and assigns each surviving chunk a unique id. It is the only
// mutation a document receives after extraction. Cleaning is idempotent:
// normalizing an already-normalized document leaves chunk text unchanged.
func NormalizeDocument(doc *ExtractedDocument) {
	kept := doc.Chunks[:0]
	for _, c := range doc.Chunks {
		c.Text = CleanText(c.Text)
		if c.Text == "" {
			continue
		}
		kept = append(kept, c)
	}
	for i := range kept {
		kept[i].ID = fmt.Sprintf("%s-c%d", doc.DocumentID, i+1)
	}
	doc.Chunks = kept
}
