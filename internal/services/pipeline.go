package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/researchdigest/internal/blob"
	"github.com/Lllllllleong/researchdigest/internal/extract"
	"github.com/Lllllllleong/researchdigest/internal/llm"
	"github.com/Lllllllleong/researchdigest/internal/models"
	"github.com/Lllllllleong/researchdigest/internal/report"
	"github.com/Lllllllleong/researchdigest/internal/store"
)

// Extractor turns a local file into text.
type Extractor interface {
	Extract(ctx context.Context, path, name string) extract.Result
}

// Answerer queries the model for per-document answers and the final synthesis.
type Answerer interface {
	AnswerForDocument(ctx context.Context, text, query, filename string) llm.Answer
	Summarize(ctx context.Context, allAnswers, query string) llm.Answer
}

// ReportPersister stores a finished report and records it on the session.
type ReportPersister interface {
	Persist(ctx context.Context, r *report.Report, sess *models.Session) (string, error)
}

// PipelineConfig holds the tunables of a run.
type PipelineConfig struct {
	// StageDelay pauses after status changes so pollers can observe them.
	StageDelay time.Duration
	// TempDir is where stored files are fetched for extraction. Empty means os.TempDir().
	TempDir string
}

// ResearchPipeline runs one research session: extraction and a model answer
// per document in filename order, then a synthesis and the report.
type ResearchPipeline struct {
	store     store.Store
	blobs     blob.Store
	extractor Extractor
	answerer  Answerer
	reports   ReportPersister
	config    PipelineConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewResearchPipeline(st store.Store, blobs blob.Store, ex Extractor, ans Answerer, reports ReportPersister, cfg PipelineConfig) *ResearchPipeline {
	return &ResearchPipeline{
		store:     st,
		blobs:     blobs,
		extractor: ex,
		answerer:  ans,
		reports:   reports,
		config:    cfg,
		sleep:     sleepContext,
	}
}

// Run processes the session. It never returns an error or panics: every
// outcome is recorded in the session and document statuses.
func (p *ResearchPipeline) Run(ctx context.Context, sessionID string) {
	logCtx := slog.With("sessionId", sessionID)

	sess, err := p.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		logCtx.Error("Session not found. Nothing to process.")
		return
	}
	if err != nil {
		logCtx.Error("Failed to load session.", "error", err)
		return
	}
	if sess.Status != models.SessionPending {
		logCtx.Warn("Session is not pending. Refusing to run it again.", "status", sess.Status)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Pipeline panicked.", "panic", r)
			p.failSession(ctx, logCtx, sess, fmt.Sprintf("Unexpected processing error: %v", r))
		}
	}()

	if err := p.run(ctx, logCtx, sess); err != nil {
		logCtx.Error("Unhandled error during processing.", "error", err)
		p.failSession(ctx, logCtx, sess, fmt.Sprintf("Unexpected processing error: %v", err))
	}
}

func (p *ResearchPipeline) run(ctx context.Context, logCtx *slog.Logger, sess *models.Session) error {
	logCtx.Info("Starting research session.", "query", sess.Query)
	if err := p.moveSession(ctx, sess, models.SessionProcessing, models.SessionUpdate{}); err != nil {
		return err
	}

	rep := report.New(sess.Query)
	docs, err := p.store.ListDocuments(ctx, sess.ID)
	if err != nil {
		return err
	}

	var findings strings.Builder
	for _, doc := range docs {
		if err := p.processDocument(ctx, logCtx, sess, doc, rep, &findings); err != nil {
			return fmt.Errorf("document %s: %w", doc.OriginalFilename, err)
		}
	}

	logCtx.Info("Generating summary.", "documents", len(docs))
	if err := p.moveSession(ctx, sess, models.SessionSummarizing, models.SessionUpdate{}); err != nil {
		return err
	}
	if err := p.pause(ctx); err != nil {
		return err
	}

	summary := p.answerer.Summarize(ctx, findings.String(), sess.Query)
	rep.AddSummary(summary.Text)

	if _, err := p.reports.Persist(ctx, rep, sess); err != nil {
		logCtx.Error("Failed to save report.", "error", err)
		p.failSession(ctx, logCtx, sess, fmt.Sprintf("Error saving report: %v", err))
		return nil
	}
	if summary.Failed() {
		logCtx.Error("Summary generation failed.", "error", summary.Err)
		p.failSession(ctx, logCtx, sess, fmt.Sprintf("Failed during summary generation: %s", summary.Text))
		return nil
	}

	if err := p.moveSession(ctx, sess, models.SessionCompleted, models.SessionUpdate{ErrorMessage: models.Ptr("")}); err != nil {
		return err
	}
	logCtx.Info("Research session completed.", "report", sess.ReportFilename)
	return nil
}

// processDocument drives one document to a terminal status and adds its
// section to the report. Only persistence failures are returned.
func (p *ResearchPipeline) processDocument(ctx context.Context, logCtx *slog.Logger, sess *models.Session, doc *models.Document, rep *report.Report, findings *strings.Builder) error {
	name := doc.OriginalFilename
	docLog := logCtx.With("documentId", doc.ID, "file", name)

	// Intake creates documents as uploaded and a run starts only from a
	// pending session, so other states mean the records were written outside
	// the pipeline. They are reported but only moved where the table allows:
	// a converted document keeps its status.
	if doc.Status != models.DocumentUploaded {
		reason := fmt.Sprintf("Document found in unexpected state: %s", doc.Status)
		docLog.Warn("Skipping document.", "status", doc.Status)
		rep.AddErrorNote(name, reason)
		if doc.Status.CanTransitionTo(models.DocumentError) {
			return p.moveDocument(ctx, doc, models.DocumentError, models.DocumentUpdate{ProcessingLog: &reason})
		}
		return nil
	}

	docLog.Info("Processing document.")
	if err := p.moveDocument(ctx, doc, models.DocumentConverting, models.DocumentUpdate{}); err != nil {
		return err
	}
	if err := p.pause(ctx); err != nil {
		return err
	}

	res := p.extractStored(ctx, docLog, doc)
	if !res.OK() {
		docLog.Warn("Extraction failed.", "reason", res.Reason)
		rep.AddErrorNote(name, res.Reason)
		return p.moveDocument(ctx, doc, models.DocumentError, models.DocumentUpdate{ProcessingLog: &res.Reason})
	}
	if err := p.moveDocument(ctx, doc, models.DocumentConverted, models.DocumentUpdate{ExtractedText: &res.Text}); err != nil {
		return err
	}

	if err := p.moveDocument(ctx, doc, models.DocumentProcessing, models.DocumentUpdate{}); err != nil {
		return err
	}
	if err := p.pause(ctx); err != nil {
		return err
	}

	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	input := fmt.Sprintf("Metadata: %s\n\nText: %s", meta, res.Text)

	docLog.Info("Querying model.")
	answer := p.answerer.AnswerForDocument(ctx, input, sess.Query, name)
	rep.AddAnswer(name, answer.Text)
	fmt.Fprintf(findings, "--- Document: %s ---\n%s\n\n", name, answer.Text)

	if answer.Failed() {
		docLog.Error("Model query failed.", "error", answer.Err)
		return p.moveDocument(ctx, doc, models.DocumentError, models.DocumentUpdate{ProcessingLog: &answer.Text})
	}
	docLog.Info("Document processed.", "quotes", len(answer.Quotes))
	return p.moveDocument(ctx, doc, models.DocumentProcessed, models.DocumentUpdate{})
}

// extractStored fetches the stored file into a temporary directory and
// extracts it. A file that cannot be fetched is an extraction failure.
func (p *ResearchPipeline) extractStored(ctx context.Context, logCtx *slog.Logger, doc *models.Document) extract.Result {
	tmpDir, err := os.MkdirTemp(p.config.TempDir, "research-*")
	if err != nil {
		logCtx.Error("Failed to create temp dir.", "error", err)
		return extract.Result{Reason: fmt.Sprintf("Failed to read stored file for %s", doc.OriginalFilename)}
	}
	defer os.RemoveAll(tmpDir)

	// Keep the stored name so the extension drives format detection.
	localPath := filepath.Join(tmpDir, sanitizeLocalName(path.Base(doc.StoredPath)))
	if err := p.blobs.Fetch(ctx, doc.StoredPath, localPath); err != nil {
		logCtx.Error("Failed to fetch stored file.", "storedPath", doc.StoredPath, "error", err)
		return extract.Result{Reason: fmt.Sprintf("Failed to read stored file for %s", doc.OriginalFilename)}
	}
	return p.extractor.Extract(ctx, localPath, doc.OriginalFilename)
}

func (p *ResearchPipeline) moveSession(ctx context.Context, sess *models.Session, next models.SessionStatus, u models.SessionUpdate) error {
	if !sess.Status.CanTransitionTo(next) {
		return fmt.Errorf("session %s: %s -> %s: %w", sess.ID, sess.Status, next, models.ErrInvalidTransition)
	}
	u.Status = &next
	if err := p.store.UpdateSession(ctx, sess.ID, u); err != nil {
		return err
	}
	u.Apply(sess, time.Now())
	return nil
}

func (p *ResearchPipeline) moveDocument(ctx context.Context, doc *models.Document, next models.DocumentStatus, u models.DocumentUpdate) error {
	if !doc.Status.CanTransitionTo(next) {
		return fmt.Errorf("document %s: %s -> %s: %w", doc.ID, doc.Status, next, models.ErrInvalidTransition)
	}
	u.Status = &next
	if err := p.store.UpdateDocument(ctx, doc.SessionID, doc.ID, u); err != nil {
		return err
	}
	u.Apply(doc, time.Now())
	return nil
}

// failSession records a terminal failure. Errors are logged and swallowed.
func (p *ResearchPipeline) failSession(ctx context.Context, logCtx *slog.Logger, sess *models.Session, message string) {
	if sess.Status.Terminal() {
		logCtx.Warn("Session already terminal. Not marking it failed.", "status", sess.Status, "message", message)
		return
	}
	// The failure must be recorded even when the run's context is done.
	err := p.moveSession(context.WithoutCancel(ctx), sess, models.SessionFailed, models.SessionUpdate{ErrorMessage: &message})
	if err != nil {
		logCtx.Error("CRITICAL: Failed to mark session as failed.", "error", err, "message", message)
		return
	}
	logCtx.Warn("Session marked as failed.", "message", message)
}

func (p *ResearchPipeline) pause(ctx context.Context) error {
	if p.config.StageDelay <= 0 {
		return nil
	}
	return p.sleep(ctx, p.config.StageDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
