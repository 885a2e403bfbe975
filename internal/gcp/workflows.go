package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowLauncher starts one Cloud Workflows execution per research session.
// The workflow forwards the session id to the research runner.
type WorkflowLauncher struct {
	client     *executions.Client
	projectID  string
	location   string
	workflowID string
}

func NewWorkflowLauncher(ctx context.Context, projectID, location, workflowID string) (*WorkflowLauncher, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewWorkflowLauncher: projectID, location and workflowID are required")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow executions client: %w", err)
	}
	return &WorkflowLauncher{
		client:     client,
		projectID:  projectID,
		location:   location,
		workflowID: workflowID,
	}, nil
}

// Launch creates an execution whose argument is {"sessionId": sessionID}.
func (l *WorkflowLauncher) Launch(ctx context.Context, sessionID string) error {
	payloadBytes, err := json.Marshal(map[string]string{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: l.parent(),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := l.client.CreateExecution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Workflow execution created.", "sessionId", sessionID, "execution", exec.GetName())
	return nil
}

func (l *WorkflowLauncher) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", l.projectID, l.location, l.workflowID)
}

func (l *WorkflowLauncher) Close() error {
	return l.client.Close()
}
