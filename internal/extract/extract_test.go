package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path   string
		want   Format
		wantOK bool
	}{
		{"report.pdf", FormatPDF, true},
		{"REPORT.PDF", FormatPDF, true},
		{"notes.Docx", FormatDOCX, true},
		{"deck.pptx", FormatPPTX, true},
		{"readme.txt", FormatTXT, true},
		{"uploads/2024/archive.tar.txt", FormatTXT, true},
		{"legacy.doc", "", false},
		{"program.exe", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := Detect(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Detect(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractUnsupported(t *testing.T) {
	path := writeFile(t, "program.EXE", []byte("MZ"))
	res := New(Config{}).Extract(context.Background(), path, "program.EXE")
	if res.OK() {
		t.Fatal("expected failure for unsupported type")
	}
	if res.Reason != "Unsupported file type: .exe" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("Line one.\nLine two.\n"))
	res := New(Config{}).Extract(context.Background(), path, "notes.txt")
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	if res.Text != "Line one.\nLine two.\n" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Metadata["title"] != "notes.txt" {
		t.Errorf("title = %v", res.Metadata["title"])
	}
}

func TestExtractTextInvalidUTF8(t *testing.T) {
	path := writeFile(t, "broken.txt", []byte("abc\xff\xfedef"))
	res := New(Config{}).Extract(context.Background(), path, "broken.txt")
	if !res.OK() {
		t.Fatalf("invalid bytes must not be fatal: %s", res.Reason)
	}
	if !utf8.ValidString(res.Text) {
		t.Errorf("text is not valid UTF-8: %q", res.Text)
	}
	if !strings.HasPrefix(res.Text, "abc") || !strings.HasSuffix(res.Text, "def") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestExtractTextBOM(t *testing.T) {
	path := writeFile(t, "bom.txt", []byte("\xef\xbb\xbfhello"))
	res := New(Config{}).Extract(context.Background(), path, "bom.txt")
	if res.Text != "hello" {
		t.Errorf("text = %q, want BOM stripped", res.Text)
	}
}

func TestExtractEmptyTextFails(t *testing.T) {
	for _, content := range []string{"", "  \n\t "} {
		path := writeFile(t, "empty.txt", []byte(content))
		res := New(Config{}).Extract(context.Background(), path, "empty.txt")
		if res.OK() {
			t.Errorf("content %q: expected failure", content)
		}
		if res.Reason != "Failed to extract text from empty.txt" {
			t.Errorf("reason = %q", res.Reason)
		}
	}
}

func TestExtractTooLarge(t *testing.T) {
	path := writeFile(t, "big.txt", bytes.Repeat([]byte("a"), 64))
	res := New(Config{MaxFileSize: 16}).Extract(context.Background(), path, "big.txt")
	if res.OK() || !strings.HasPrefix(res.Reason, "File too large") {
		t.Errorf("expected size rejection, got %+v", res)
	}
}

func TestExtractCorruptFiles(t *testing.T) {
	ex := New(Config{})
	for _, name := range []string{"bad.pdf", "bad.docx", "bad.pptx"} {
		path := writeFile(t, name, []byte("this is not a real document"))
		res := ex.Extract(context.Background(), path, "Original "+name)
		if res.OK() {
			t.Errorf("%s: expected failure", name)
			continue
		}
		if res.Reason != "Failed to extract text from Original "+name {
			t.Errorf("%s: reason = %q", name, res.Reason)
		}
	}
}

func TestExtractMissingFile(t *testing.T) {
	res := New(Config{}).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"), "gone.txt")
	if res.OK() {
		t.Error("expected failure for missing file")
	}
}

func TestExtractCancelled(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("content"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := New(Config{}).Extract(ctx, path, "notes.txt"); res.OK() {
		t.Error("expected failure for cancelled context")
	}
}

func TestExtractDocx(t *testing.T) {
	path := writeZip(t, "paper.docx", map[string]string{
		"word/styles.xml": `<?xml version="1.0"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Titre1"><w:name w:val="heading 1"/></w:style>
</w:styles>`,
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Titre1"/><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Introduction</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">The sky is </w:t></w:r><w:r><w:t>blue.</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Method</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Normal"/></w:pPr><w:r><w:t>Col A</w:t><w:tab/><w:t>Col B</w:t></w:r></w:p>
  </w:body>
</w:document>`,
	})

	res := New(Config{}).Extract(context.Background(), path, "paper.docx")
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	want := "\n--- Section: Introduction ---\n" +
		"The sky is blue.\n" +
		"\n--- Section: Method ---\n" +
		"Col A\tCol B\n"
	if res.Text != want {
		t.Errorf("text mismatch\n got: %q\nwant: %q", res.Text, want)
	}
	if res.Metadata["title"] != "paper.docx" || res.Metadata["format"] != "docx" {
		t.Errorf("metadata = %v", res.Metadata)
	}
}

func TestExtractDocxWithoutBodyText(t *testing.T) {
	path := writeZip(t, "blank.docx", map[string]string{
		"word/document.xml": `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`,
	})
	if res := New(Config{}).Extract(context.Background(), path, "blank.docx"); res.OK() {
		t.Error("expected failure for a document without text")
	}
}

const (
	pptxNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	relsNS    = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
	relSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relNotes  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	relLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
)

func pptxShapeXML(phType string, paragraphs ...string) string {
	ph := ""
	if phType != "" {
		ph = `<p:ph type="` + phType + `"/>`
	}
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<a:p><a:r><a:t>` + p + `</a:t></a:r></a:p>`)
	}
	return `<p:sp><p:nvSpPr><p:cNvPr id="1" name="s"/><p:cNvSpPr/><p:nvPr>` + ph +
		`</p:nvPr></p:nvSpPr><p:txBody><a:bodyPr/>` + body.String() + `</p:txBody></p:sp>`
}

func pptxSlideXML(shapes ...string) string {
	return `<p:sld ` + pptxNS + `><p:cSld><p:spTree>` + strings.Join(shapes, "") + `</p:spTree></p:cSld></p:sld>`
}

func TestExtractPptx(t *testing.T) {
	path := writeZip(t, "deck.pptx", map[string]string{
		"ppt/presentation.xml": `<p:presentation ` + pptxNS + `><p:sldIdLst>` +
			`<p:sldId id="256" r:id="rId7"/><p:sldId id="257" r:id="rId2"/>` +
			`</p:sldIdLst></p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<Relationships ` + relsNS + `>` +
			`<Relationship Id="rId2" Type="` + relSlide + `" Target="slides/slide1.xml"/>` +
			`<Relationship Id="rId7" Type="` + relSlide + `" Target="slides/slide2.xml"/>` +
			`</Relationships>`,
		// Presented first.
		"ppt/slides/slide2.xml": pptxSlideXML(
			pptxShapeXML("ctrTitle", "Quarterly Review"),
			pptxShapeXML("", "Revenue grew", "Costs fell"),
		),
		"ppt/slides/_rels/slide2.xml.rels": `<Relationships ` + relsNS + `>` +
			`<Relationship Id="rId1" Type="` + relLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
			`<Relationship Id="rId2" Type="` + relNotes + `" Target="../notesSlides/notesSlide1.xml"/>` +
			`</Relationships>`,
		"ppt/notesSlides/notesSlide1.xml": `<p:notes ` + pptxNS + `><p:cSld><p:spTree>` +
			pptxShapeXML("sldImg") + pptxShapeXML("body", "Mention the hiring freeze.") +
			`</p:spTree></p:cSld></p:notes>`,
		// No title shape.
		"ppt/slides/slide1.xml": pptxSlideXML(pptxShapeXML("", "Appendix material")),
	})

	res := New(Config{}).Extract(context.Background(), path, "deck.pptx")
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	want := "\n--- Slide 1: Quarterly Review ---\n" +
		"Quarterly Review\n" +
		"Revenue grew\nCosts fell\n" +
		"\n--- Notes for Slide 1: Quarterly Review ---\nMention the hiring freeze.\n" +
		"\n--- Slide 2 ---\n" +
		"Appendix material\n"
	if res.Text != want {
		t.Errorf("text mismatch\n got: %q\nwant: %q", res.Text, want)
	}
}

func TestExtractPptxNumericFallback(t *testing.T) {
	path := writeZip(t, "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml": pptxSlideXML(pptxShapeXML("title", "Ten")),
		"ppt/slides/slide2.xml":  pptxSlideXML(pptxShapeXML("title", "Two")),
	})
	res := New(Config{}).Extract(context.Background(), path, "deck.pptx")
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	two := strings.Index(res.Text, "--- Slide 1: Two ---")
	ten := strings.Index(res.Text, "--- Slide 2: Ten ---")
	if two < 0 || ten < 0 || two > ten {
		t.Errorf("slides out of order: %q", res.Text)
	}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for fname, content := range files {
		w, err := zw.Create(fname)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, name, buf.Bytes())
}
