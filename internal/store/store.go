// Package store persists research sessions and their documents.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/researchdigest/internal/models"
)

// ErrNotFound is returned when a session or document record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the persistence contract used by the pipeline and the
// triggering functions. Updates are atomic per record, last write wins.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error

	CreateDocument(ctx context.Context, d *models.Document) error
	// ListDocuments returns the session's documents ordered by original filename.
	ListDocuments(ctx context.Context, sessionID string) ([]*models.Document, error)
	UpdateDocument(ctx context.Context, sessionID, documentID string, u models.DocumentUpdate) error

	Close() error
}
