package chat

import (
	"context"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sealor/ai-chat/pkg/completion"
	"github.com/sealor/ai-chat/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverseStoresBothMessages(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.Open(persistence.DriverSQLite, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.RegisterModel(ctx, "gpt-x", ""))

	completer := &fakeCompleter{reply: "hello"}
	view := &recordingView{}
	in := New(store, completer, view, prompts())

	st, err := in.Start(ctx, State{Model: "gpt-x"})
	require.NoError(t, err)

	next, err := in.Execute(ctx, st, Message{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, st, next)

	sess, err := store.GetSession(ctx, st.SessionID)
	require.NoError(t, err)
	want := []persistence.Message{
		{Role: persistence.RoleUser, Content: "hi", Model: "gpt-x"},
		{Role: persistence.RoleAssistant, Content: "hello", Model: "gpt-x"},
	}
	ignore := cmpopts.IgnoreFields(persistence.Message{}, "ID", "SessionID", "Timestamp")
	if diff := cmp.Diff(want, sess.Messages, ignore); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, completer.calls, 1)
	assert.Equal(t, "gpt-x", completer.calls[0].model)
	assert.Equal(t, []persistence.Turn{{Role: persistence.RoleUser, Content: "hi"}}, completer.calls[0].turns)
	require.Len(t, view.replies, 1)
	assert.Equal(t, "hello", view.replies[0].Content)
	assert.Equal(t, 1, view.busy)
}

func TestConverseSendsWholeTranscript(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("m")
	completer := &fakeCompleter{reply: "second answer"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	in := New(store, completer, &recordingView{}, prompts(), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	st, err := in.Start(ctx, State{Model: "m"})
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, st.SessionID, persistence.Message{Role: persistence.RoleUser, Content: "first"}))
	require.NoError(t, store.AppendMessage(ctx, st.SessionID, persistence.Message{Role: persistence.RoleAssistant, Content: "first answer"}))

	_, err = in.Execute(ctx, st, Message{Text: "second"})
	require.NoError(t, err)

	require.Len(t, completer.calls, 1)
	assert.Equal(t, []persistence.Turn{
		{Role: persistence.RoleUser, Content: "first"},
		{Role: persistence.RoleAssistant, Content: "first answer"},
		{Role: persistence.RoleUser, Content: "second"},
	}, completer.calls[0].turns)

	msgs := store.sessions[st.SessionID].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, base.Add(time.Second), msgs[2].Timestamp)
	assert.Equal(t, base.Add(2*time.Second), msgs[3].Timestamp)
}

func TestConverseCompletionFailureKeepsUserMessage(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"error", &fakeCompleter{err: errors.New("connection refused")}},
		{"typed error", &fakeCompleter{err: completion.ErrCompletion}},
		{"empty reply", &fakeCompleter{reply: ""}},
		{"canceled", &fakeCompleter{err: context.Canceled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore("m")
			view := &recordingView{}
			in := New(store, tt.completer, view, prompts())
			st, err := in.Start(ctx, State{Model: "m"})
			require.NoError(t, err)

			next, err := in.Execute(ctx, st, Message{Text: "hi"})
			assert.ErrorIs(t, err, completion.ErrCompletion)
			assert.Equal(t, st, next)

			sess, err := store.GetSession(ctx, st.SessionID)
			require.NoError(t, err)
			require.Len(t, sess.Messages, 1)
			assert.Equal(t, persistence.RoleUser, sess.Messages[0].Role)
			assert.Empty(t, view.replies)
		})
	}
}

// blockingCompleter waits until its context ends, like a stalled stream.
type blockingCompleter struct {
	started func()
}

func (c *blockingCompleter) Complete(ctx context.Context, model string, turns []persistence.Turn) (string, error) {
	if c.started != nil {
		c.started()
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestConverseInterruptCancelsCompletion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("m")
	view := &recordingView{}
	completer := &blockingCompleter{started: func() {
		assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	}}
	in := New(store, completer, view, prompts(), WithInterrupts(syscall.SIGUSR1))
	st, err := in.Start(ctx, State{Model: "m"})
	require.NoError(t, err)

	next, err := in.Execute(ctx, st, Message{Text: "hi"})
	assert.ErrorIs(t, err, completion.ErrCompletion)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, st, next)

	msgs := store.sessions[st.SessionID].Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, persistence.RoleUser, msgs[0].Role)
	assert.Empty(t, view.replies)
	assert.Equal(t, 1, view.busy)
}

func TestConverseParentCancelStopsCompletion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	store := newMemStore("m")
	in := New(store, &blockingCompleter{}, &recordingView{}, prompts(), WithInterrupts(syscall.SIGUSR1))
	st, err := in.Start(ctx, State{Model: "m"})
	require.NoError(t, err)

	_, err = in.Execute(ctx, st, Message{Text: "hi"})
	assert.ErrorIs(t, err, completion.ErrCompletion)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, store.sessions[st.SessionID].Messages, 1)
}

func TestConverseStartsSessionWhenNoneActive(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("m")
	in := New(store, &fakeCompleter{reply: "hey"}, &recordingView{}, prompts())

	next, err := in.Execute(ctx, State{Model: "m"}, Message{Text: "hi"})
	require.NoError(t, err)
	require.True(t, next.HasSession())
	assert.Len(t, store.sessions[next.SessionID].Messages, 2)
}

func TestConverseUnknownSession(t *testing.T) {
	store := newMemStore("m")
	completer := &fakeCompleter{reply: "x"}
	in := New(store, completer, &recordingView{}, prompts())

	_, err := in.Execute(context.Background(), State{SessionID: 5, Model: "m"}, Message{Text: "hi"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.Empty(t, completer.calls)
}

func TestDeleteActiveSessionWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.Open(persistence.DriverSQLite, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer store.Close()

	in := New(store, &fakeCompleter{reply: "hello"}, &recordingView{}, prompts("yes"))
	st, err := in.Start(ctx, State{Model: "gpt-x"})
	require.NoError(t, err)
	_, err = in.Execute(ctx, st, Message{Text: "hi"})
	require.NoError(t, err)

	next, err := in.Execute(ctx, st, DeleteSession{ID: st.SessionID})
	require.NoError(t, err)
	require.NotEqual(t, st.SessionID, next.SessionID)

	_, err = store.GetSession(ctx, st.SessionID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	fresh, err := store.GetSession(ctx, next.SessionID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, "gpt-x", fresh.CurrentModel)
}
