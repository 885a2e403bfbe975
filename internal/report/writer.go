package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/researchdigest/internal/blob"
	"github.com/Lllllllleong/researchdigest/internal/models"
)

// SessionUpdater records the report file name on a session.
type SessionUpdater interface {
	UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error
}

// Writer renders reports into blob storage under blob.ReportsPrefix.
type Writer struct {
	blobs    blob.Store
	sessions SessionUpdater
}

func NewWriter(blobs blob.Store, sessions SessionUpdater) *Writer {
	return &Writer{blobs: blobs, sessions: sessions}
}

// Persist renders r, overwrites reports/<filename> and records the filename on
// the session. Repeating the call for the same session is safe: the recorded
// filename always names the latest successful write.
func (w *Writer) Persist(ctx context.Context, r *Report, sess *models.Session) (string, error) {
	filename := Filename(sess.ID, sess.Query)
	logCtx := slog.With("sessionId", sess.ID, "report", filename)

	data, err := r.Bytes()
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := w.blobs.Put(ctx, blob.ReportRef(filename), data, ContentType); err != nil {
		return "", fmt.Errorf("write report %s: %w", filename, err)
	}
	err = w.sessions.UpdateSession(ctx, sess.ID, models.SessionUpdate{ReportFilename: models.Ptr(filename)})
	if err != nil {
		return "", fmt.Errorf("record report filename: %w", err)
	}
	sess.ReportFilename = filename

	logCtx.Info("Report saved.", "bytes", len(data))
	return filename, nil
}
