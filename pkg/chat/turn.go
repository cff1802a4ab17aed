package chat

import (
	"context"
	"errors"
	"fmt"
	"os/signal"

	"github.com/sealor/ai-chat/pkg/completion"
	"github.com/sealor/ai-chat/pkg/persistence"
	"go.uber.org/zap"
)

// converse runs one turn. The user message stays stored when the completion
// fails; no assistant message is written in that case.
func (in *Interpreter) converse(ctx context.Context, st State, text string) (State, error) {
	st, err := in.Start(ctx, st)
	if err != nil {
		return st, err
	}

	user := persistence.Message{
		Role:      persistence.RoleUser,
		Content:   text,
		Timestamp: in.now(),
		Model:     st.Model,
	}
	if err := in.store.AppendMessage(ctx, st.SessionID, user); err != nil {
		return st, err
	}

	session, err := in.store.GetSession(ctx, st.SessionID)
	if err != nil {
		return st, err
	}

	reply, err := in.complete(ctx, st.Model, session.Transcript())
	if err != nil {
		return st, fmt.Errorf("failed to get AI response: %w", err)
	}

	assistant := persistence.Message{
		Role:      persistence.RoleAssistant,
		Content:   reply,
		Timestamp: in.now(),
		Model:     st.Model,
	}
	if err := in.store.AppendMessage(ctx, st.SessionID, assistant); err != nil {
		return st, err
	}
	in.view.Reply(assistant)
	return st, nil
}

func (in *Interpreter) complete(ctx context.Context, model string, turns []persistence.Turn) (string, error) {
	if len(in.signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, in.signals...)
		defer stop()
	}

	done := in.view.Busy()
	reply, err := in.completer.Complete(ctx, model, turns)
	done()

	if err == nil && reply == "" {
		err = fmt.Errorf("%w: empty response", completion.ErrCompletion)
	}
	if err != nil && !errors.Is(err, completion.ErrCompletion) {
		err = fmt.Errorf("%w: %w", completion.ErrCompletion, err)
	}
	if err != nil {
		in.logger.Warn("completion failed", zap.String("model", model), zap.Error(err))
		return "", err
	}
	return reply, nil
}
