package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sealor/ai-chat/pkg/persistence"
)

type memStore struct {
	models   []persistence.Model
	sessions map[int64]*persistence.Session
	nextID   int64
	failWith error
}

func newMemStore(models ...string) *memStore {
	s := &memStore{sessions: map[int64]*persistence.Session{}}
	for _, name := range models {
		s.models = append(s.models, persistence.Model{Name: name})
	}
	return s
}

func (s *memStore) ListModels(ctx context.Context) ([]persistence.Model, error) {
	return s.models, s.failWith
}

func (s *memStore) CreateSession(ctx context.Context, model, title, description string) (int64, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.nextID++
	s.sessions[s.nextID] = &persistence.Session{
		ID:           s.nextID,
		StartTime:    time.Unix(s.nextID, 0),
		CurrentModel: model,
		Title:        title,
		Description:  description,
	}
	return s.nextID, nil
}

func (s *memStore) session(id int64) (*persistence.Session, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, persistence.ErrNotFound)
	}
	return sess, nil
}

func (s *memStore) GetSession(ctx context.Context, id int64) (*persistence.Session, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	copied := *sess
	copied.Messages = append([]persistence.Message(nil), sess.Messages...)
	return &copied, nil
}

func (s *memStore) ListSessions(ctx context.Context) ([]persistence.SessionSummary, error) {
	var out []persistence.SessionSummary
	for _, sess := range s.sessions {
		out = append(out, persistence.SessionSummary{
			ID: sess.ID, StartTime: sess.StartTime, CurrentModel: sess.CurrentModel, Title: sess.Title,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, s.failWith
}

func (s *memStore) AppendMessage(ctx context.Context, sessionID int64, message persistence.Message) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	message.SessionID = sessionID
	sess.Messages = append(sess.Messages, message)
	return nil
}

func (s *memStore) UpdateSessionModel(ctx context.Context, sessionID int64, model string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.CurrentModel = model
	return nil
}

func (s *memStore) UpdateSessionTitle(ctx context.Context, sessionID int64, title string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.Title = title
	return nil
}

func (s *memStore) DeleteSession(ctx context.Context, sessionID int64) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	delete(s.sessions, sessionID)
	return nil
}

type fakeCompleter struct {
	reply string
	err   error
	calls []completionCall
}

type completionCall struct {
	model string
	turns []persistence.Turn
}

func (c *fakeCompleter) Complete(ctx context.Context, model string, turns []persistence.Turn) (string, error) {
	c.calls = append(c.calls, completionCall{model: model, turns: turns})
	return c.reply, c.err
}

type recordingView struct {
	infos       []string
	warns       []string
	errs        []error
	helps       int
	models      []persistence.Model
	sessions    []persistence.SessionSummary
	transcripts []*persistence.Session
	replies     []persistence.Message
	busy        int
}

func (v *recordingView) Info(msg string)    { v.infos = append(v.infos, msg) }
func (v *recordingView) Warn(msg string)    { v.warns = append(v.warns, msg) }
func (v *recordingView) Error(err error)    { v.errs = append(v.errs, err) }
func (v *recordingView) Help(string)        { v.helps++ }
func (v *recordingView) Busy() (stop func()) { v.busy++; return func() {} }

func (v *recordingView) Models(models []persistence.Model) { v.models = models }

func (v *recordingView) Sessions(sessions []persistence.SessionSummary) { v.sessions = sessions }

func (v *recordingView) Transcript(session *persistence.Session) {
	v.transcripts = append(v.transcripts, session)
}

func (v *recordingView) Reply(message persistence.Message) { v.replies = append(v.replies, message) }

// scriptedPrompter answers prompts from a fixed list, then reports io.EOF.
type scriptedPrompter struct {
	answers []any
	prompts []string
}

func prompts(answers ...any) *scriptedPrompter {
	return &scriptedPrompter{answers: answers}
}

func (p *scriptedPrompter) Prompt(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	switch v := next.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", errors.New("bad script entry")
	}
}
