package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/researchdigest/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const documentsCollection = "documents"

// maxStoredTextBytes keeps extracted text well under Firestore's 1 MiB
// document limit. The pipeline works from the full text in memory.
const maxStoredTextBytes = 512 * 1024

// Firestore stores sessions in a top-level collection and documents in a
// per-session sub-collection.
type Firestore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewFirestore wraps an existing client. collection names the sessions collection.
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	return &Firestore{client: client, collection: collection, now: time.Now}
}

func (f *Firestore) sessionRef(id string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(id)
}

func (f *Firestore) documentRef(sessionID, documentID string) *firestore.DocumentRef {
	return f.sessionRef(sessionID).Collection(documentsCollection).Doc(documentID)
}

func (f *Firestore) CreateSession(ctx context.Context, s *models.Session) error {
	now := f.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if _, err := f.sessionRef(s.ID).Create(ctx, s); err != nil {
		return fmt.Errorf("failed to create session %s: %w", s.ID, err)
	}
	return nil
}

func (f *Firestore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	snap, err := f.sessionRef(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, mapNotFound(err))
	}
	var s models.Session
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.ID = snap.Ref.ID
	return &s, nil
}

func (f *Firestore) UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: f.now()}}
	if u.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*u.Status)})
	}
	if u.ErrorMessage != nil {
		updates = append(updates, firestore.Update{Path: "errorMessage", Value: *u.ErrorMessage})
	}
	if u.ReportFilename != nil {
		updates = append(updates, firestore.Update{Path: "reportFilename", Value: *u.ReportFilename})
	}
	if _, err := f.sessionRef(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update session %s: %w", id, mapNotFound(err))
	}
	return nil
}

func (f *Firestore) CreateDocument(ctx context.Context, d *models.Document) error {
	now := f.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.ExtractedText = capText(d.ExtractedText)
	if _, err := f.documentRef(d.SessionID, d.ID).Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create document %s: %w", d.ID, err)
	}
	return nil
}

func (f *Firestore) ListDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	it := f.sessionRef(sessionID).Collection(documentsCollection).
		OrderBy("originalFilename", firestore.Asc).
		Documents(ctx)
	defer it.Stop()

	var docs []*models.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents for session %s: %w", sessionID, err)
		}
		var d models.Document
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
		}
		d.ID = snap.Ref.ID
		docs = append(docs, &d)
	}
	return docs, nil
}

func (f *Firestore) UpdateDocument(ctx context.Context, sessionID, documentID string, u models.DocumentUpdate) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: f.now()}}
	if u.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*u.Status)})
	}
	if u.ExtractedText != nil {
		updates = append(updates, firestore.Update{Path: "extractedText", Value: capText(*u.ExtractedText)})
	}
	if u.ProcessingLog != nil {
		updates = append(updates, firestore.Update{Path: "processingLog", Value: *u.ProcessingLog})
	}
	if _, err := f.documentRef(sessionID, documentID).Update(ctx, updates); err != nil {
		return fmt.Errorf("update document %s: %w", documentID, mapNotFound(err))
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func mapNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

// capText truncates s to maxStoredTextBytes without splitting a rune.
func capText(s string) string {
	if len(s) <= maxStoredTextBytes {
		return s
	}
	cut := maxStoredTextBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var _ Store = (*Firestore)(nil)
