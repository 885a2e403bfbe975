// Package blob reads uploaded documents and stores generated reports.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
)

// ErrNotFound is returned when a referenced object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// ReportsPrefix is the namespace under which generated reports are written.
const ReportsPrefix = "reports"

// Store is the blob storage contract. References are slash-separated
// object names relative to the store root (bucket or directory).
type Store interface {
	// Fetch copies the object at ref into a local file at destPath.
	Fetch(ctx context.Context, ref, destPath string) error
	// Put writes data at ref, replacing any existing object.
	Put(ctx context.Context, ref string, data []byte, contentType string) error
	// Open streams the object at ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ReportRef returns the object reference of a report file.
func ReportRef(filename string) string {
	return path.Join(ReportsPrefix, filename)
}
