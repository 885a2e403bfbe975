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
	"github.com/Lllllllleong/researchdigest/internal/models"
	"github.com/Lllllllleong/researchdigest/internal/services"
)

var (
	intakeInstance *services.IntakeService
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleStartSession" is the entry point name configured in GCP.
	functions.HTTP("HandleStartSession", handleStartSession)
}

// main is required by the Go Functions Framework.
func main() {}

// handleStartSession registers a research session for already stored files
// and launches its run.
func handleStartSession(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of the clients and launcher.
	once.Do(func() {
		intakeInstance, initErr = services.NewIntake(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Intake initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// Decode the incoming JSON request naming the already stored files.
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	// Validation failures are the caller's fault; anything else is already
	// logged with context inside Start.
	res, err := intakeInstance.Start(r.Context(), req)
	if errors.Is(err, services.ErrInvalidRequest) {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error: could not start session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	// The run continues after this response; clients poll the status function.
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "sessionId", res.SessionID)
	}
}
