package markup

import (
	"fmt"
	"regexp"
	"strings"

	"docflow/internal/extractor"
)

// HTMLExtractor strips markup from HTML documents with a single-pass tag
// scanner. Script and style contents are skipped, block-level tags break
// lines, table cells become tabs.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Supports(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "text/html", "application/xhtml+xml", "html", "htm":
		return true
	}
	return false
}

// blockTags break text flow when opened or closed.
var blockTags = map[string]bool{
	"div": true, "p": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "tr": true, "table": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true,
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (e *HTMLExtractor) Extract(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	html := string(buffer)
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("html文件内容为空")
	}

	doc := extractor.NewDocument(fileName)
	doc.Metadata["format"] = "html"

	var (
		text       strings.Builder
		section    string
		headingTag string // non-empty while inside <h1>..<h6>
		heading    strings.Builder
	)

	flushText := func() {
		body := extractor.CleanText(text.String())
		text.Reset()
		if body == "" {
			return
		}
		for _, para := range strings.Split(body, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
				Type:    extractor.ChunkParagraph,
				Text:    para,
				Section: section,
			})
		}
	}

	pos := 0
	for pos < len(html) {
		lt := strings.IndexByte(html[pos:], '<')
		if lt < 0 {
			writeHTMLText(&text, &heading, headingTag != "", html[pos:])
			break
		}
		writeHTMLText(&text, &heading, headingTag != "", html[pos:pos+lt])
		pos += lt

		// Comment?
		if strings.HasPrefix(html[pos:], "<!--") {
			end := strings.Index(html[pos+4:], "-->")
			if end < 0 {
				break
			}
			pos += 4 + end + 3
			continue
		}

		gt := strings.IndexByte(html[pos:], '>')
		if gt < 0 {
			break
		}
		tag := html[pos+1 : pos+gt]
		pos += gt + 1

		closing := strings.HasPrefix(tag, "/")
		name := strings.ToLower(tagName(strings.TrimPrefix(tag, "/")))

		// Skip raw-text elements entirely.
		if !closing && (name == "script" || name == "style") {
			end := strings.Index(strings.ToLower(html[pos:]), "</"+name)
			if end < 0 {
				break
			}
			pos += end
			continue
		}

		switch {
		case headingTags[name]:
			if closing {
				if headingTag == name {
					headingTag = ""
					h := extractor.CleanText(heading.String())
					heading.Reset()
					if h != "" {
						flushText()
						section = h
						doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
							Type: extractor.ChunkHeading,
							Text: h,
						})
					}
				}
			} else {
				flushText()
				headingTag = name
				heading.Reset()
			}
		case name == "td" || name == "th":
			if !closing {
				text.WriteByte('\t')
			}
		case blockTags[name]:
			text.WriteByte('\n')
		}
	}
	flushText()

	if len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("html文件内容为空")
	}
	return doc, nil
}

// tagName returns the element name portion of raw tag content.
func tagName(tag string) string {
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/' {
			return tag[:i]
		}
	}
	return tag
}

// writeHTMLText routes decoded text either to the heading accumulator or the
// body accumulator.
func writeHTMLText(text, heading *strings.Builder, inHeading bool, s string) {
	if s == "" {
		return
	}
	s = decodeHTMLEntities(s)
	if inHeading {
		heading.WriteString(s)
	} else {
		text.WriteString(s)
	}
}

// Pre-compiled regexes and entity table for decodeHTMLEntities.
var (
	reNumericEntity = regexp.MustCompile(`&#(\d+);`)
	reHexEntity     = regexp.MustCompile(`(?i)&#x([0-9a-f]+);`)

	htmlEntityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
		"&mdash;", "—",
		"&ndash;", "–",
		"&hellip;", "…",
		"&copy;", "©",
		"&reg;", "®",
		"&trade;", "™",
		"&laquo;", "«",
		"&raquo;", "»",
	)
)

// decodeHTMLEntities decodes common HTML entities to their text equivalents.
func decodeHTMLEntities(s string) string {
	s = reNumericEntity.ReplaceAllStringFunc(s, func(match string) string {
		var n int
		fmt.Sscanf(match, "&#%d;", &n)
		if n > 0 && n < 0x110000 {
			return string(rune(n))
		}
		return match
	})
	s = reHexEntity.ReplaceAllStringFunc(s, func(match string) string {
		var n int
		fmt.Sscanf(strings.ToLower(match), "&#x%x;", &n)
		if n > 0 && n < 0x110000 {
			return string(rune(n))
		}
		return match
	})
	return htmlEntityReplacer.Replace(s)
}
