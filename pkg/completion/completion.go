// Package completion sends a chat transcript to a remote model and returns
// the reply text.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrCompletion = errors.New("completion failed")

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// checkReply turns transport errors, cancellation and empty replies into
// ErrCompletion.
func checkReply(ctx context.Context, reply string, err error) (string, error) {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrCompletion, ctxErr)
		}
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: empty response", ErrCompletion)
	}
	return reply, nil
}
