package markup

import (
	"strings"
	"testing"

	"docflow/internal/extractor"
)

func TestHTMLSupports(t *testing.T) {
	e := NewHTMLExtractor()
	for _, mt := range []string{"text/html", "application/xhtml+xml", "html", "htm", "HTML"} {
		if !e.Supports(mt) {
			t.Errorf("Supports(%q) = false", mt)
		}
	}
	if e.Supports("text/markdown") {
		t.Error("claims markdown")
	}
}

func TestHTMLExtract(t *testing.T) {
	src := `<html><head>
<style>body { color: red; }</style>
<script>var hidden = "should not appear";</script>
</head><body>
<h1>Main Title</h1>
<p>First paragraph.</p>
<p>Second &amp; final paragraph.</p>
<!-- a comment that must vanish -->
</body></html>`

	doc, err := NewHTMLExtractor().Extract([]byte(src), "page.html")
	if err != nil {
		t.Fatal(err)
	}

	var headings, paragraphs []extractor.ContentChunk
	for _, c := range doc.Chunks {
		if c.Type == extractor.ChunkHeading {
			headings = append(headings, c)
		} else {
			paragraphs = append(paragraphs, c)
		}
	}

	if len(headings) != 1 || headings[0].Text != "Main Title" {
		t.Fatalf("headings = %+v", headings)
	}

	all := ""
	for _, p := range paragraphs {
		all += p.Text + "\n"
	}
	if !strings.Contains(all, "First paragraph.") {
		t.Errorf("first paragraph missing from %q", all)
	}
	if !strings.Contains(all, "Second & final paragraph.") {
		t.Errorf("entity not decoded in %q", all)
	}
	if strings.Contains(all, "should not appear") {
		t.Error("script content leaked")
	}
	if strings.Contains(all, "color: red") {
		t.Error("style content leaked")
	}
	if strings.Contains(all, "comment that must vanish") {
		t.Error("comment content leaked")
	}

	// Body text after the heading carries its section.
	for _, p := range paragraphs {
		if p.Section != "Main Title" {
			t.Errorf("paragraph section = %q, want Main Title", p.Section)
		}
	}
}

func TestHTMLExtract_TableCellsBecomeTabs(t *testing.T) {
	src := "<table><tr><td>a</td><td>b</td></tr></table>"
	doc, err := NewHTMLExtractor().Extract([]byte(src), "t.html")
	if err != nil {
		t.Fatal(err)
	}
	joined := ""
	for _, c := range doc.Chunks {
		joined += c.Text
	}
	// CleanText collapses the tab into a single space between cells.
	if !strings.Contains(joined, "a b") {
		t.Errorf("cell separation lost: %q", joined)
	}
}

func TestHTMLExtract_EntityDecoding(t *testing.T) {
	src := "<p>&lt;tag&gt; &quot;quoted&quot; &#65;&#x42; &nbsp;end</p>"
	doc, err := NewHTMLExtractor().Extract([]byte(src), "e.html")
	if err != nil {
		t.Fatal(err)
	}
	got := doc.Chunks[0].Text
	for _, want := range []string{`<tag>`, `"quoted"`, "AB", "end"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q missing from %q", want, got)
		}
	}
}

func TestHTMLExtract_SelfClosingAndAttributes(t *testing.T) {
	src := `<div class="x">line one<br/>line two</div>`
	doc, err := NewHTMLExtractor().Extract([]byte(src), "b.html")
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, c := range doc.Chunks {
		texts = append(texts, c.Text)
	}
	all := strings.Join(texts, "\n")
	if !strings.Contains(all, "line one") || !strings.Contains(all, "line two") {
		t.Errorf("content lost: %q", all)
	}
}

func TestHTMLExtract_MultipleHeadingsSplitSections(t *testing.T) {
	src := "<h2>One</h2><p>alpha</p><h2>Two</h2><p>beta</p>"
	doc, err := NewHTMLExtractor().Extract([]byte(src), "s.html")
	if err != nil {
		t.Fatal(err)
	}

	bySection := map[string]string{}
	for _, c := range doc.Chunks {
		if c.Type == extractor.ChunkParagraph {
			bySection[c.Section] += c.Text
		}
	}
	if !strings.Contains(bySection["One"], "alpha") {
		t.Errorf("section One = %q", bySection["One"])
	}
	if !strings.Contains(bySection["Two"], "beta") {
		t.Errorf("section Two = %q", bySection["Two"])
	}
}

func TestHTMLExtract_Empty(t *testing.T) {
	if _, err := NewHTMLExtractor().Extract([]byte("  "), "x.html"); err == nil {
		t.Error("expected error for blank input")
	}
	if _, err := NewHTMLExtractor().Extract([]byte("<div><span></span></div>"), "x.html"); err == nil {
		t.Error("expected error for markup with no text")
	}
}
