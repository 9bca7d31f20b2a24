// Package markup extracts content chunks from lightweight markup formats
// (Markdown, HTML).
package markup

import (
	"fmt"
	"regexp"
	"strings"

	"docflow/internal/extractor"
)

// Pre-compiled regexes for markdown stripping.
var (
	mdImgRe         = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	mdHeadingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	mdBoldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdUnderBoldRe   = regexp.MustCompile(`__(.+?)__`)
	mdItalicRe      = regexp.MustCompile(`\*(.+?)\*`)
	mdUnderItalicRe = regexp.MustCompile(`_(.+?)_`)
	mdCodeRe        = regexp.MustCompile("`([^`]+)`")
	mdLinkRe        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdBulletRe      = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
	mdFenceRe       = regexp.MustCompile("^```")
)

// MarkdownExtractor produces heading, list and paragraph chunks from
// Markdown source.
type MarkdownExtractor struct{}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

func (e *MarkdownExtractor) Supports(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "text/markdown", "text/x-markdown", "markdown", "md":
		return true
	}
	return false
}

// Extract walks the document line by line. Heading lines become heading
// chunks, runs of bullet lines become a single list chunk, everything else
// accumulates into paragraph chunks under the nearest heading.
func (e *MarkdownExtractor) Extract(buffer []byte, fileName string) (*extractor.ExtractedDocument, error) {
	text := string(buffer)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("markdown文件内容为空")
	}

	doc := extractor.NewDocument(fileName)
	doc.Metadata["format"] = "markdown"

	var (
		section   string
		paragraph []string
		list      []string
		inFence   bool
	)

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
			Type:    extractor.ChunkParagraph,
			Text:    strings.Join(paragraph, "\n"),
			Section: section,
		})
		paragraph = paragraph[:0]
	}
	flushList := func() {
		if len(list) == 0 {
			return
		}
		doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
			Type:    extractor.ChunkList,
			Text:    strings.Join(list, "\n"),
			Section: section,
		})
		list = list[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if mdFenceRe.MatchString(strings.TrimSpace(line)) {
			inFence = !inFence
			continue
		}
		if inFence {
			paragraph = append(paragraph, line)
			continue
		}

		if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			flushList()
			heading := stripInlineMarkdown(m[2])
			if heading != "" {
				section = heading
				doc.Chunks = append(doc.Chunks, extractor.ContentChunk{
					Type: extractor.ChunkHeading,
					Text: heading,
				})
			}
			continue
		}

		if mdBulletRe.MatchString(line) {
			flushParagraph()
			item := stripInlineMarkdown(mdBulletRe.ReplaceAllString(line, ""))
			if item != "" {
				list = append(list, item)
			}
			continue
		}
		flushList()

		if strings.TrimSpace(line) == "" {
			flushParagraph()
			continue
		}
		if stripped := stripInlineMarkdown(line); stripped != "" {
			paragraph = append(paragraph, stripped)
		}
	}
	flushParagraph()
	flushList()

	if len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("markdown文件内容为空")
	}
	return doc, nil
}

// stripInlineMarkdown removes inline markdown syntax, keeping the text.
// Images collapse to their alt text.
func stripInlineMarkdown(s string) string {
	s = mdImgRe.ReplaceAllString(s, "$1")
	s = mdBoldRe.ReplaceAllString(s, "$1")
	s = mdUnderBoldRe.ReplaceAllString(s, "$1")
	s = mdItalicRe.ReplaceAllString(s, "$1")
	s = mdUnderItalicRe.ReplaceAllString(s, "$1")
	s = mdCodeRe.ReplaceAllString(s, "$1")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
