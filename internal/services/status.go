package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Lllllllleong/researchdigest/internal/blob"
	"github.com/Lllllllleong/researchdigest/internal/models"
	"github.com/Lllllllleong/researchdigest/internal/store"
)

// ErrReportUnavailable is returned when a session has no downloadable report:
// it has not completed or no report file was recorded.
var ErrReportUnavailable = errors.New("report is not available for this session")

// StatusService serves the polling and download reads.
type StatusService struct {
	store store.Store
	blobs blob.Store
}

func NewStatusService(st store.Store, blobs blob.Store) *StatusService {
	return &StatusService{store: st, blobs: blobs}
}

// GetStatus returns the session with its documents ordered by filename.
func (s *StatusService) GetStatus(ctx context.Context, sessionID string) (*models.SessionStatusResponse, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	return &models.SessionStatusResponse{Session: sess, Documents: docs}, nil
}

// OpenReport streams the report of a completed session. The caller closes
// the reader. The second return value is the report file name.
func (s *StatusService) OpenReport(ctx context.Context, sessionID string) (io.ReadCloser, string, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess.Status != models.SessionCompleted || sess.ReportFilename == "" {
		return nil, "", fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrReportUnavailable)
	}
	rc, err := s.blobs.Open(ctx, blob.ReportRef(sess.ReportFilename))
	if err != nil {
		return nil, "", err
	}
	return rc, sess.ReportFilename, nil
}
