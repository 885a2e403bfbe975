package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomutex/godocx"
)

// ContentType is the MIME type of a rendered report.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Render writes the report as a DOCX document. The title uses the Title
// style and headings use Heading1/Heading2. Body text spanning several lines
// becomes one paragraph per line.
func (r *Report) Render(w io.Writer) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	for _, p := range r.Paragraphs {
		if !p.IsHeading() {
			for _, line := range strings.Split(strings.ReplaceAll(p.Text, "\r\n", "\n"), "\n") {
				doc.AddParagraph(line)
			}
			continue
		}

		// Only three heading levels are ever produced.
		switch p.Level {
		case 0:
			_, err = doc.AddHeading(p.Text, 0)
		case 1:
			_, err = doc.AddHeading(p.Text, 1)
		default:
			_, err = doc.AddHeading(p.Text, 2)
		}
		if err != nil {
			return fmt.Errorf("add heading %q: %w", p.Text, err)
		}
	}

	if err := doc.Write(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// Bytes renders the report into memory.
func (r *Report) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
