// Package extract turns uploaded documents into plain text with light
// structural markers (pages, sections, slides) that answers can cite.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatTXT  Format = "txt"
)

// DefaultMaxFileSize caps the size of a file the extractor will open.
const DefaultMaxFileSize = 100 << 20

// Result is the outcome of one extraction. Reason is empty on success.
type Result struct {
	Text     string
	Metadata map[string]any
	Reason   string
}

// OK reports whether text was extracted.
func (r Result) OK() bool {
	return r.Reason == ""
}

// Config configures an Extractor.
type Config struct {
	// MaxFileSize rejects larger files before parsing. Zero means DefaultMaxFileSize.
	MaxFileSize int64
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor dispatches files to a format-specific reader by extension.
type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// Detect returns the format implied by the lower-cased extension of path.
func Detect(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".pptx":
		return FormatPPTX, true
	case ".txt":
		return FormatTXT, true
	}
	return "", false
}

// Extract reads the file at path. name is the user-facing file name used in
// metadata and failure reasons. Extract never returns an error: every
// failure, including a panic in a format reader, becomes a Result with a Reason.
func (e *Extractor) Extract(ctx context.Context, path, name string) (res Result) {
	if name == "" {
		name = filepath.Base(path)
	}
	log := e.cfg.Logger.With("file", name)
	failed := Result{Reason: fmt.Sprintf("Failed to extract text from %s", name)}

	format, ok := Detect(path)
	if !ok {
		ext := strings.ToLower(filepath.Ext(path))
		log.Warn("Unsupported file type.", "extension", ext)
		return Result{Reason: fmt.Sprintf("Unsupported file type: %s", ext)}
	}

	if err := ctx.Err(); err != nil {
		log.Warn("Extraction cancelled.", "error", err)
		return failed
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Error("Failed to stat file.", "error", err)
		return failed
	}
	if info.Size() > e.cfg.MaxFileSize {
		log.Warn("File exceeds size limit.", "size", info.Size(), "limit", e.cfg.MaxFileSize)
		return Result{Reason: fmt.Sprintf("File too large: %d bytes exceeds limit of %d bytes", info.Size(), e.cfg.MaxFileSize)}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Extractor panicked.", "format", format, "panic", r)
			res = failed
		}
	}()

	var (
		text string
		meta map[string]any
	)
	switch format {
	case FormatPDF:
		text, meta, err = extractPDF(path)
	case FormatDOCX:
		text, err = extractDocx(path)
	case FormatPPTX:
		text, err = extractPptx(path)
	case FormatTXT:
		text, err = extractText(path)
	}
	if err != nil {
		log.Error("Extraction failed.", "format", format, "error", err)
		return failed
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("Extraction produced no text.", "format", format)
		return failed
	}

	if meta == nil {
		meta = make(map[string]any)
	}
	if t, _ := meta["title"].(string); strings.TrimSpace(t) == "" {
		meta["title"] = name
	}
	meta["format"] = string(format)

	log.Info("Extraction successful.", "format", format, "chars", len(text))
	return Result{Text: text, Metadata: meta}
}
