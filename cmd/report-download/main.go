package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/researchdigest/internal/blob"
	"github.com/Lllllllleong/researchdigest/internal/report"
	"github.com/Lllllllleong/researchdigest/internal/services"
	"github.com/Lllllllleong/researchdigest/internal/store"
)

var (
	statusInstance *services.StatusService
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleReportDownload", handleReportDownload)
}

// main is required by the Go Functions Framework.
func main() {}

// handleReportDownload streams the report of a completed session as an attachment.
func handleReportDownload(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of the store and blob clients.
	once.Do(func() {
		statusInstance, initErr = services.NewStatusReader(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Status service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Bad Request: sessionId is required", http.StatusBadRequest)
		return
	}
	logCtx := slog.With("sessionId", sessionID)

	// Only completed sessions have a report. Unknown sessions, unfinished
	// runs and a missing object all look the same to the client.
	rc, filename, err := statusInstance.OpenReport(r.Context(), sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrReportUnavailable), errors.Is(err, blob.ErrNotFound):
		logCtx.Info("Report not available", "reason", err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		logCtx.Error("Failed to open report", "error", err)
		http.Error(w, "Internal Server Error: could not open report", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	// Stream the stored object straight to the client as an attachment.

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		logCtx.Error("Failed to stream report", "error", err, "report", filename)
	}
}
