package services

import (
	"path"
	"regexp"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	safeExtension   = regexp.MustCompile(`^\.[a-z0-9]+$`)
)

// sanitizeLocalName turns a stored object's base name into a safe local file
// name, keeping its extension so format detection still works.
func sanitizeLocalName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if !safeExtension.MatchString(ext) {
		ext = ""
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "_")

	const maxLength = 100
	if len(stem) > maxLength {
		stem = strings.Trim(stem[:maxLength], "_")
	}
	if stem == "" {
		stem = "document"
	}
	return stem + ext
}
