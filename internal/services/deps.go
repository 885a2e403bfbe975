package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/researchdigest/internal/blob"
	"github.com/Lllllllleong/researchdigest/internal/config"
	"github.com/Lllllllleong/researchdigest/internal/extract"
	"github.com/Lllllllleong/researchdigest/internal/gcp"
	"github.com/Lllllllleong/researchdigest/internal/llm"
	"github.com/Lllllllleong/researchdigest/internal/report"
	"github.com/Lllllllleong/researchdigest/internal/store"
)

// Backends are the persistence and blob stores selected by configuration.
type Backends struct {
	Config *config.Config
	Store  store.Store
	Blobs  blob.Store
}

// OpenBackends creates the clients for the configured store and blob backends.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{Config: cfg}

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		b.Store = store.NewFirestore(client, cfg.SessionsCollection)
	case config.StoreBolt:
		st, err := store.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		b.Store = st
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.BlobBackend {
	case config.BlobGCS:
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, err
		}
		b.Blobs = blob.NewGCS(client, cfg.MediaBucket)
	case config.BlobLocal:
		b.Blobs = blob.NewLocal(cfg.MediaRoot)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	slog.Info("Backends ready.", "store", cfg.StoreBackend, "blob", cfg.BlobBackend)
	return b, nil
}

// NewPipelineFromBackends wires the extractor, the Vertex AI model and the
// report writer around the given backends.
func NewPipelineFromBackends(ctx context.Context, b *Backends) (*ResearchPipeline, error) {
	cfg := b.Config
	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	extractor := extract.New(extract.Config{MaxFileSize: cfg.MaxDocumentBytes})
	answerer := llm.NewClient(vertexClient, llm.WithMaxAttempts(cfg.LLMMaxAttempts))
	reports := report.NewWriter(b.Blobs, b.Store)

	return NewResearchPipeline(b.Store, b.Blobs, extractor, answerer, reports, PipelineConfig{
		StageDelay: cfg.StageDelay,
	}), nil
}

// NewResearchRunner loads the environment and builds the pipeline used by
// the research-runner function.
func NewResearchRunner(ctx context.Context) (*ResearchPipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	b, err := OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPipelineFromBackends(ctx, b)
}

// NewStatusReader loads the environment and builds the service behind the
// status and download functions.
func NewStatusReader(ctx context.Context) (*StatusService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	b, err := OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStatusService(b.Store, b.Blobs), nil
}

// NewIntake loads the environment and builds the intake service with the
// configured launcher.
func NewIntake(ctx context.Context) (*IntakeService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	b, err := OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var launcher Launcher
	switch cfg.Launcher {
	case config.LauncherWorkflow:
		wl, err := gcp.NewWorkflowLauncher(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			return nil, err
		}
		launcher = wl
	case config.LauncherInline:
		pipeline, err := NewPipelineFromBackends(ctx, b)
		if err != nil {
			return nil, err
		}
		launcher = InlineLauncher{Runner: pipeline}
	default:
		return nil, fmt.Errorf("unknown launcher %q", cfg.Launcher)
	}
	return NewIntakeService(b.Store, launcher), nil
}
