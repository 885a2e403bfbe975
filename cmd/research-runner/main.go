package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/researchdigest/internal/models"
	"github.com/Lllllllleong/researchdigest/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	pipelineInstance *services.ResearchPipeline
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The workflow delivers one event per session.
	functions.CloudEvent("RunResearchSession", runResearchSession)
}

// main is required by the Go Functions Framework.
func main() {}

// runResearchSession runs the pipeline for the session named in the event.
// Pipeline outcomes are recorded on the session, so only malformed events
// and initialization failures fail the invocation.
func runResearchSession(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once so the clients are created once per instance.
	once.Do(func() {
		pipelineInstance, initErr = services.NewResearchRunner(context.Background())
	})
	if initErr != nil {
		// Returning the error marks the invocation as failed.
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	// Unmarshal the event's data payload into the run request.
	var event models.RunSessionEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	if event.SessionID == "" {
		slog.Error("Event carries no session id", "eventId", e.ID())
		return errors.New("event data has no sessionId")
	}

	// Run records its own failures on the session, so there is nothing to return.
	pipelineInstance.Run(ctx, event.SessionID)
	return nil
}
