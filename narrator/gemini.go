package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nathoo/fablecore/types"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("narrator: empty response")

type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// Gemini narrates through Google's Gemini models.
type Gemini struct {
	client   *genai.Client
	generate generateFunc
	logger   *slog.Logger
}

// NewGemini connects to Gemini with an API key.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("narrator: missing API key")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0.7)
	m.SetMaxOutputTokens(200)
	return &Gemini{
		client: client,
		generate: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return m.GenerateContent(ctx, genai.Text(prompt))
		},
		logger: logger,
	}, nil
}

// Narrate asks the model for a short description of the command's outcome.
func (g *Gemini) Narrate(ctx context.Context, scene Scene, cmd types.Command) (string, error) {
	resp, err := g.generate(ctx, Prompt(scene, cmd))
	if err != nil {
		g.logger.Warn("gemini request failed", "error", err, "verb", cmd.Verb)
		return "", fmt.Errorf("generating narration: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
