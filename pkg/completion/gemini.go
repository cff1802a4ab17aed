package completion

import (
	"context"
	"fmt"

	"github.com/sealor/ai-chat/pkg/persistence"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	system string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, system string, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{client: client, system: system, logger: logger}, nil
}

func (g *Gemini) Complete(ctx context.Context, model string, turns []persistence.Turn) (string, error) {
	contents, config := NewContentsFromTranscript(g.system, turns)

	var reply string
	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err == nil && result != nil {
		reply = result.Text()
	}
	g.logger.Debug("gemini completion",
		zap.String("model", model),
		zap.Int("turns", len(turns)),
		zap.Int("reply_bytes", len(reply)),
		zap.Error(err))
	return checkReply(ctx, reply, err)
}
