// Package chat implements the command loop: it parses input lines, keeps the
// active session and model, and drives the store and the completion backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/sealor/ai-chat/pkg/persistence"
	"go.uber.org/zap"
)

var (
	ErrValidation  = errors.New("invalid input")
	ErrInterrupted = errors.New("interrupted")
	// ErrExit is returned by Execute for the exit command.
	ErrExit = errors.New("exit")
)

const DefaultTitle = "New Session"

type Store interface {
	ListModels(ctx context.Context) ([]persistence.Model, error)
	CreateSession(ctx context.Context, model, title, description string) (int64, error)
	GetSession(ctx context.Context, id int64) (*persistence.Session, error)
	ListSessions(ctx context.Context) ([]persistence.SessionSummary, error)
	AppendMessage(ctx context.Context, sessionID int64, message persistence.Message) error
	UpdateSessionModel(ctx context.Context, sessionID int64, model string) error
	UpdateSessionTitle(ctx context.Context, sessionID int64, title string) error
	DeleteSession(ctx context.Context, sessionID int64) error
}

type Completer interface {
	Complete(ctx context.Context, model string, turns []persistence.Turn) (string, error)
}

// View renders results. Busy shows a progress indicator until the returned
// func is called.
type View interface {
	Info(msg string)
	Warn(msg string)
	Error(err error)
	Help(markdown string)
	Models(models []persistence.Model)
	Sessions(sessions []persistence.SessionSummary)
	Transcript(session *persistence.Session)
	Reply(message persistence.Message)
	Busy() (stop func())
}

// Prompter reads one line. It returns ErrInterrupted on Ctrl-C and io.EOF
// when input is closed.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// State is the only mutable state of the loop. SessionID 0 means no session
// is active.
type State struct {
	SessionID int64
	Model     string
}

func (s State) HasSession() bool {
	return s.SessionID != 0
}

type Interpreter struct {
	store     Store
	completer Completer
	view      View
	prompter  Prompter
	logger    *zap.Logger
	now       func() time.Time
	signals   []os.Signal
}

type Option func(*Interpreter)

func WithLogger(logger *zap.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) { in.now = now }
}

// WithInterrupts cancels an in-flight completion when one of the signals
// arrives.
func WithInterrupts(signals ...os.Signal) Option {
	return func(in *Interpreter) { in.signals = signals }
}

func New(store Store, completer Completer, view View, prompter Prompter, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:     store,
		completer: completer,
		view:      view,
		prompter:  prompter,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start makes sure a session is active, creating one with the current model.
func (in *Interpreter) Start(ctx context.Context, st State) (State, error) {
	if st.HasSession() {
		return st, nil
	}
	id, err := in.store.CreateSession(ctx, st.Model, DefaultTitle, "")
	if err != nil {
		return st, err
	}
	in.logger.Info("session started", zap.Int64("session", id), zap.String("model", st.Model))
	st.SessionID = id
	return st, nil
}

// Run reads lines until /exit or end of input. Errors of single commands are
// shown and the loop goes on.
func (in *Interpreter) Run(ctx context.Context, st State) error {
	in.view.Help(HelpText)

	st, err := in.Start(ctx, st)
	if err != nil {
		return err
	}

	for {
		line, err := in.prompter.Prompt("You> ")
		if errors.Is(err, ErrInterrupted) {
			in.view.Warn("Use /exit to quit")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := Parse(line)
		if err != nil {
			in.view.Error(err)
			continue
		}

		next, err := in.Execute(ctx, st, cmd)
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			in.logger.Debug("command failed", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Error(err))
			in.view.Error(err)
		}
		st = next
	}
}

// Execute applies cmd to st. On error the returned state equals st unless the
// error is reported after a completed change (see deleteSession).
func (in *Interpreter) Execute(ctx context.Context, st State, cmd Command) (State, error) {
	switch c := cmd.(type) {
	case Exit:
		return st, ErrExit
	case ListModels:
		return in.listModels(ctx, st)
	case SwitchModel:
		return in.switchModel(ctx, st, c.Name)
	case NewSession:
		return in.newSession(ctx, st)
	case ListSessions:
		return in.listSessions(ctx, st)
	case ChangeSession:
		return in.changeSession(ctx, st, c.ID)
	case RenameSession:
		return in.renameSession(ctx, st, c.Title)
	case DeleteSession:
		return in.deleteSession(ctx, st, c.ID)
	case ExportSession:
		return in.exportSession(ctx, st, c.Path)
	case Help:
		in.view.Help(HelpText)
		return st, nil
	case Unknown:
		return st, fmt.Errorf("%w: unknown command %q, type %shelp for available commands", ErrValidation, c.Verb, Prefix)
	case Message:
		return in.converse(ctx, st, c.Text)
	default:
		return st, fmt.Errorf("%w: unhandled command %T", ErrValidation, cmd)
	}
}

func (in *Interpreter) listModels(ctx context.Context, st State) (State, error) {
	models, err := in.store.ListModels(ctx)
	if err != nil {
		return st, err
	}
	in.view.Models(models)
	return st, nil
}

func (in *Interpreter) switchModel(ctx context.Context, st State, name string) (State, error) {
	models, err := in.store.ListModels(ctx)
	if err != nil {
		return st, err
	}
	known := slices.ContainsFunc(models, func(m persistence.Model) bool { return m.Name == name })
	if !known {
		return st, fmt.Errorf("%w: invalid model: %s", ErrValidation, name)
	}

	if st.HasSession() {
		if err := in.store.UpdateSessionModel(ctx, st.SessionID, name); err != nil {
			return st, err
		}
	}
	next := st
	next.Model = name
	in.view.Info("Switched to model: " + name)
	return next, nil
}

func (in *Interpreter) newSession(ctx context.Context, st State) (State, error) {
	title, err := in.prompter.Prompt("Enter session title (optional): ")
	if errors.Is(err, ErrInterrupted) {
		in.view.Warn("New session canceled")
		return st, nil
	}
	if err != nil {
		return st, err
	}

	id, err := in.store.CreateSession(ctx, st.Model, strings.TrimSpace(title), "")
	if err != nil {
		return st, err
	}
	next := st
	next.SessionID = id
	in.view.Info(fmt.Sprintf("Created new session: %d", id))
	return next, nil
}

func (in *Interpreter) listSessions(ctx context.Context, st State) (State, error) {
	sessions, err := in.store.ListSessions(ctx)
	if err != nil {
		return st, err
	}
	in.view.Sessions(sessions)
	return st, nil
}

func (in *Interpreter) changeSession(ctx context.Context, st State, id int64) (State, error) {
	session, err := in.store.GetSession(ctx, id)
	if err != nil {
		return st, err
	}
	next := State{SessionID: session.ID, Model: session.CurrentModel}
	in.view.Info(fmt.Sprintf("Switched to session: %d", id))
	in.view.Transcript(session)
	return next, nil
}

func (in *Interpreter) renameSession(ctx context.Context, st State, title string) (State, error) {
	title = strings.TrimSpace(title)
	if title == "" || !st.HasSession() {
		return st, fmt.Errorf("%w: provide a valid title and ensure a session is active", ErrValidation)
	}
	if err := in.store.UpdateSessionTitle(ctx, st.SessionID, title); err != nil {
		return st, err
	}
	in.view.Info("Session renamed to: " + title)
	return st, nil
}

func (in *Interpreter) deleteSession(ctx context.Context, st State, id int64) (State, error) {
	answer, err := in.prompter.Prompt(fmt.Sprintf("Are you sure you want to delete session %d? (yes/no): ", id))
	if err != nil && !errors.Is(err, ErrInterrupted) {
		return st, err
	}
	if err != nil || !confirmed(answer) {
		in.view.Warn("Delete canceled")
		return st, nil
	}

	if err := in.store.DeleteSession(ctx, id); err != nil {
		return st, err
	}
	in.view.Info(fmt.Sprintf("Session %d deleted successfully.", id))

	if id != st.SessionID {
		return st, nil
	}
	// The active session is gone; the replacement keeps the current model.
	next, err := in.Start(ctx, State{Model: st.Model})
	if err != nil {
		return next, err
	}
	in.view.Info(fmt.Sprintf("Switched to new session: %d", next.SessionID))
	return next, nil
}

func (in *Interpreter) exportSession(ctx context.Context, st State, path string) (State, error) {
	if !st.HasSession() {
		return st, fmt.Errorf("%w: no active session", ErrValidation)
	}
	session, err := in.store.GetSession(ctx, st.SessionID)
	if err != nil {
		return st, err
	}
	if err := persistence.SaveSession(path, session); err != nil {
		return st, fmt.Errorf("export session %d: %w", st.SessionID, err)
	}
	in.view.Info(fmt.Sprintf("Session %d exported to %s", st.SessionID, path))
	return st, nil
}

// confirmed accepts only an explicit yes.
func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
