package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// ResearchSystemPrompt frames every call made by the research assistant.
const ResearchSystemPrompt = "You are a careful research assistant. You answer questions using only the document text you are given, quote it verbatim when citing evidence, and say plainly when the text does not contain the answer."

// ErrEmptyResponse is returned when the model produced no text parts.
var ErrEmptyResponse = errors.New("gemini response was empty or malformed")

// VertexClient wraps a single configured Gemini model.
type VertexClient struct {
	model      *genai.GenerativeModel
	modelName  string
	baseClient *genai.Client
}

// NewVertexClient creates a client for modelName in the given project and region.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		return nil, fmt.Errorf("NewVertexClient: modelName cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ResearchSystemPrompt)},
	}
	// Low temperature keeps answers close to the source text.
	model.SetTemperature(0.2)

	return &VertexClient{
		model:      model,
		modelName:  modelName,
		baseClient: baseClient,
	}, nil
}

// Generate sends prompt as a single user turn and returns the concatenated text parts.
func (c *VertexClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s call failed: %w", c.modelName, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
