package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/Lllllllleong/researchdigest/internal/models"
	"github.com/Lllllllleong/researchdigest/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRequest is returned for a start request that cannot be accepted.
var ErrInvalidRequest = errors.New("invalid request")

const maxConcurrentCreates = 8

// Launcher starts the run of a session. The triggering layer guarantees one
// launch per session.
type Launcher interface {
	Launch(ctx context.Context, sessionID string) error
}

// Runner executes a session run in-process.
type Runner interface {
	Run(ctx context.Context, sessionID string)
}

// InlineLauncher runs the pipeline synchronously inside the caller.
type InlineLauncher struct {
	Runner Runner
}

// Launch runs the session to completion. The run outlives the caller's
// cancellation: a client hanging up must not fail the session.
func (l InlineLauncher) Launch(ctx context.Context, sessionID string) error {
	l.Runner.Run(context.WithoutCancel(ctx), sessionID)
	return nil
}

// IntakeService registers a session for files already in blob storage and
// launches its run.
type IntakeService struct {
	store    store.Store
	launcher Launcher
	newID    func() string
}

func NewIntakeService(st store.Store, launcher Launcher) *IntakeService {
	return &IntakeService{store: st, launcher: launcher, newID: uuid.NewString}
}

// Start validates req, creates the pending session and its uploaded
// documents, then launches the run.
func (s *IntakeService) Start(ctx context.Context, req models.StartSessionRequest) (*models.StartSessionResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("%w: at least one document is required", ErrInvalidRequest)
	}
	for i, f := range req.Documents {
		if strings.TrimSpace(f.StoredPath) == "" {
			return nil, fmt.Errorf("%w: document %d has no storedPath", ErrInvalidRequest, i)
		}
	}

	sess := &models.Session{
		ID:     s.newID(),
		Query:  query,
		Status: models.SessionPending,
	}
	logCtx := slog.With("sessionId", sess.ID)
	if err := s.store.CreateSession(ctx, sess); err != nil {
		logCtx.Error("Failed to create session.", "error", err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCreates)
	for _, f := range req.Documents {
		name := strings.TrimSpace(f.OriginalFilename)
		if name == "" {
			name = path.Base(f.StoredPath)
		}
		doc := &models.Document{
			ID:               s.newID(),
			SessionID:        sess.ID,
			StoredPath:       f.StoredPath,
			OriginalFilename: name,
			Status:           models.DocumentUploaded,
		}
		g.Go(func() error {
			return s.store.CreateDocument(gctx, doc)
		})
	}
	if err := g.Wait(); err != nil {
		s.abandon(ctx, logCtx, sess, fmt.Sprintf("Failed to register documents: %v", err))
		return nil, err
	}
	logCtx.Info("Session created.", "documents", len(req.Documents))

	if err := s.launcher.Launch(ctx, sess.ID); err != nil {
		s.abandon(ctx, logCtx, sess, fmt.Sprintf("Failed to start processing: %v", err))
		return nil, err
	}

	status := models.SessionPending
	if current, err := s.store.GetSession(ctx, sess.ID); err == nil {
		status = current.Status
	}
	return &models.StartSessionResponse{SessionID: sess.ID, Status: status}, nil
}

// abandon marks a session that never started as failed.
func (s *IntakeService) abandon(ctx context.Context, logCtx *slog.Logger, sess *models.Session, message string) {
	logCtx.Error("Abandoning session.", "message", message)
	err := s.store.UpdateSession(context.WithoutCancel(ctx), sess.ID, models.SessionUpdate{
		Status:       models.Ptr(models.SessionFailed),
		ErrorMessage: &message,
	})
	if err != nil {
		logCtx.Error("CRITICAL: Failed to mark session as failed.", "error", err)
	}
}
