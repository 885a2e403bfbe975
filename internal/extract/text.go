package extract

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// extractText decodes a plain text file as UTF-8. A byte order mark selects
// UTF-16 instead, and invalid sequences are replaced with U+FFFD.
func extractText(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(data), nil
}
