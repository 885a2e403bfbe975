package llm

import "fmt"

const (
	maxDocumentRunes = 1_000_000
	maxSummaryRunes  = 100_000
)

const documentPromptTemplate = `Document source: %[1]s

Analyze the following document text using only the text provided.
Answer the question: "%[2]s"

Instructions:
1. Give a concise answer to the question based on the text.
2. If the document contains information that helps answer the question, include 1-3 direct quotes from the text to support your answer. Format quotes like this: "quoted text...".
3. Include context for the quotes, such as page numbers or section titles, when they are present in the text (for example from '--- Page X ---', '--- Section: Y ---' or '--- Slide N ---' markers).
4. If the document text does *not* contain information relevant to the question, state clearly and honestly: "This document does not contain information relevant to the question: '%[2]s'." Do not invent information or draw conclusions beyond the text provided.
5. Structure your answer clearly. Start with the direct answer, followed by the supporting quotes (if any), or the statement that no relevant information was found.

Document text:
--- BEGIN TEXT ---
%[3]s
--- END TEXT ---

Your answer:
`

const summaryPromptTemplate = `Write a synthesized answer to the question: "%[1]s"

Base your synthesis only on the findings below, which were extracted from several documents.

Instructions:
1. Write a concise synthesis that answers the question directly.
2. Include the key points from the individual document analyses.
3. When citing information, refer to the document that is named in the findings (for example "According to 'report.pdf'..." or "According to 'presentation.pptx', ...").
4. If documents provide conflicting information, point out the contradictions.
5. If the findings show that no document contained information relevant to the question, say so plainly.
6. Do not add information that is not present in the findings.

Findings from the documents:
--- BEGIN FINDINGS ---
%[2]s
--- END FINDINGS ---

Your answer:
`

func documentPrompt(text, query, filename string) string {
	return fmt.Sprintf(documentPromptTemplate, filename, query, truncateRunes(text, maxDocumentRunes))
}

func summaryPrompt(allAnswers, query string) string {
	return fmt.Sprintf(summaryPromptTemplate, query, truncateRunes(allAnswers, maxSummaryRunes))
}
