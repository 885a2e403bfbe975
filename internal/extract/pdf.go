package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF emits a "--- Page N ---" marker before every page's text and
// returns the document information dictionary as metadata. Page text is
// decoded through the page fonts, so hex strings and CID fonts read the
// same as literal strings.
func extractPDF(path string) (string, map[string]any, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pageCount := r.NumPage()
	var b strings.Builder
	found := false
	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		text := pageText(r.Page(pageNr))
		if text != "" {
			found = true
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", pageNr, text)
	}
	if !found {
		return "", nil, fmt.Errorf("no text content found in PDF")
	}

	meta := pdfMetadata(path)
	meta["pageCount"] = pageCount
	return b.String(), meta, nil
}

func pageText(p pdf.Page) string {
	if p.V.IsNull() {
		return ""
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		font := p.Font(name)
		fonts[name] = &font
	}
	text, err := p.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return cleanPDFText(text)
}

// pdfMetadata reads the document information dictionary with pdfcpu. A file
// pdfcpu cannot validate still yields its text, just without metadata.
func pdfMetadata(path string) map[string]any {
	meta := map[string]any{}

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil || ctx.XRefTable == nil {
		return meta
	}

	// Configuration carries its own CreationDate, so read through the xref table.
	xref := ctx.XRefTable
	fields := map[string]string{
		"title":        xref.Title,
		"author":       xref.Author,
		"subject":      xref.Subject,
		"keywords":     xref.Keywords,
		"creator":      xref.Creator,
		"producer":     xref.Producer,
		"creationDate": xref.CreationDate,
		"modDate":      xref.ModDate,
	}
	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" {
			meta[k] = v
		}
	}
	return meta
}

// cleanPDFText collapses whitespace runs and drops non-printable runes.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
