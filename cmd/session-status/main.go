package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
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

	functions.HTTP("HandleSessionStatus", handleSessionStatus)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSessionStatus returns the session and its documents for polling clients.
func handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of the store clients.
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

	// An unknown session is a 404, not a server error.
	res, err := statusInstance.GetStatus(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to read session status", "error", err, "sessionId", sessionID)
		http.Error(w, "Internal Server Error: could not read status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "sessionId", sessionID)
	}
}
