package completion

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/sealor/ai-chat/pkg/persistence"
	"go.uber.org/zap"
)

// OpenAI talks to any OpenAI compatible chat completion endpoint.
type OpenAI struct {
	client openai.Client
	system string
	logger *zap.Logger
}

func NewOpenAI(apiURL, apiKey, system string, debug bool, logger *zap.Logger) *OpenAI {
	options := []option.RequestOption{
		option.WithBaseURL(apiURL),
	}
	if apiKey != "" {
		options = append(options, option.WithAPIKey(apiKey))
	}
	if debug {
		options = append(options, option.WithDebugLog(nil))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{client: openai.NewClient(options...), system: system, logger: logger}
}

func (c *OpenAI) Complete(ctx context.Context, model string, turns []persistence.Turn) (string, error) {
	param := NewParamsFromTranscript(model, c.system, turns)

	stream := c.client.Chat.Completions.NewStreaming(ctx, *param)
	acc, err := run(ctx, stream)
	if closeErr := stream.Close(); err == nil {
		err = closeErr
	}

	var reply string
	if len(acc.Choices) > 0 {
		reply = acc.Choices[0].Message.Content
	}
	c.logger.Debug("openai completion",
		zap.String("model", model),
		zap.Int("turns", len(turns)),
		zap.Int("reply_bytes", len(reply)),
		zap.Error(err))
	return checkReply(ctx, reply, err)
}

func run(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk]) (openai.ChatCompletionAccumulator, error) {
	acc := openai.ChatCompletionAccumulator{}

loop:
	for stream.Next() {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		acc.AddChunk(stream.Current())
	}

	if err := stream.Err(); err != nil {
		return acc, err
	}
	return acc, ctx.Err()
}
