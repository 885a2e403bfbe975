// Package report accumulates per-document answers and the final synthesis
// into a DOCX report.
package report

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	noAnswerPlaceholder  = "No answer was generated or an error occurred."
	noSummaryPlaceholder = "Could not generate a synthesized answer."
	separator            = "---"
	summaryHeading       = "Synthesized Answer"
	maxQueryRunesInName  = 30
)

// Paragraph is one block of the report. Level 0 is the title, 1 and 2 are
// headings, and Body paragraphs have Level -1.
type Paragraph struct {
	Level int
	Text  string
}

const Body = -1

func (p Paragraph) IsHeading() bool {
	return p.Level >= 0
}

// Report is an ordered list of paragraphs owned by a single run.
type Report struct {
	Query      string
	Paragraphs []Paragraph
}

// New starts a report with the title, the query and a spacer.
func New(query string) *Report {
	r := &Report{Query: query}
	r.add(0, `Report for question: "`+query+`"`)
	r.add(Body, query)
	r.add(Body, "")
	return r
}

func (r *Report) add(level int, text string) {
	r.Paragraphs = append(r.Paragraphs, Paragraph{Level: level, Text: text})
}

// AddAnswer appends the analysis of one document.
func (r *Report) AddAnswer(filename, answer string) {
	if strings.TrimSpace(answer) == "" {
		answer = noAnswerPlaceholder
	}
	r.add(2, "Analysis: "+filename)
	r.add(Body, answer)
	r.add(Body, separator)
	r.add(Body, "")
}

// AddErrorNote records a document that could not be analysed.
func (r *Report) AddErrorNote(filename, reason string) {
	r.AddAnswer(filename, "Error processing document: "+reason)
}

// AddSummary appends the synthesized answer as the final section.
func (r *Report) AddSummary(summary string) {
	if strings.TrimSpace(summary) == "" {
		summary = noSummaryPlaceholder
	}
	r.add(1, summaryHeading)
	r.add(Body, summary)
}

// Filename is the report file name for a session: the first 30 characters of
// the query with every non-alphanumeric character replaced by "_".
func Filename(sessionID, query string) string {
	var b strings.Builder
	n := 0
	for _, c := range query {
		if n == maxQueryRunesInName {
			break
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	return fmt.Sprintf("report_%s_%s.docx", sessionID, b.String())
}
