package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted by STORE_BACKEND, BLOB_BACKEND and LAUNCHER.
const (
	StoreFirestore = "firestore"
	StoreBolt      = "bolt"

	BlobGCS   = "gcs"
	BlobLocal = "local"

	LauncherWorkflow = "workflow"
	LauncherInline   = "inline"
)

// Config holds all configuration shared by the research functions.
type Config struct {
	ProjectID      string `env:"PROJECT_ID"`
	VertexAIRegion string `env:"VERTEX_AI_REGION" envDefault:"us-central1"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// Persistence
	StoreBackend       string `env:"STORE_BACKEND" envDefault:"firestore"`
	SessionsCollection string `env:"FIRESTORE_COLLECTION" envDefault:"research_sessions"`
	BoltPath           string `env:"BOLT_PATH" envDefault:"data/research.db"`

	// Blob storage
	BlobBackend string `env:"BLOB_BACKEND" envDefault:"gcs"`
	MediaBucket string `env:"MEDIA_BUCKET"`
	MediaRoot   string `env:"MEDIA_ROOT" envDefault:"media"`

	// Run triggering
	Launcher         string `env:"LAUNCHER" envDefault:"workflow"`
	WorkflowID       string `env:"WORKFLOW_ID" envDefault:"research-session-orchestrator"`
	WorkflowLocation string `env:"WORKFLOW_LOCATION" envDefault:"us-central1"`

	// Pipeline behaviour
	LLMMaxAttempts   int           `env:"LLM_MAX_ATTEMPTS" envDefault:"2"`
	StageDelay       time.Duration `env:"STAGE_DELAY" envDefault:"100ms"`
	MaxDocumentBytes int64         `env:"MAX_DOCUMENT_BYTES" envDefault:"104857600"`
}

// Load parses the environment and validates backend-specific settings.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every selected backend has what it needs.
func (c *Config) Validate() error {
	// Vertex AI is always required.
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	switch c.StoreBackend {
	case StoreFirestore:
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH must be set when STORE_BACKEND=%s", StoreBolt)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.BlobBackend {
	case BlobGCS:
		if c.MediaBucket == "" {
			return fmt.Errorf("MEDIA_BUCKET must be set when BLOB_BACKEND=%s", BlobGCS)
		}
	case BlobLocal:
		if c.MediaRoot == "" {
			return fmt.Errorf("MEDIA_ROOT must be set when BLOB_BACKEND=%s", BlobLocal)
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	switch c.Launcher {
	case LauncherWorkflow, LauncherInline:
	default:
		return fmt.Errorf("unknown LAUNCHER %q", c.Launcher)
	}

	if c.LLMMaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", c.LLMMaxAttempts)
	}
	if c.StageDelay < 0 {
		return fmt.Errorf("STAGE_DELAY must not be negative")
	}
	return nil
}
