package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("storage failure")
)

const (
	DriverSQLite = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
)

// Store owns all durable chat state. Every method runs in its own
// transaction which is committed before the method returns.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for session start times and unstamped messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the database at path and applies the schema.
func Open(driver, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrConstraint, err)
		}
	}

	if driver == "" {
		driver = DriverSQLite
	}
	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrConstraint, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", ErrConstraint, err)
	}
	s.db = db
	s.logger.Debug("store opened", zap.String("driver", driver), zap.String("path", path))
	return s, nil
}

func dsn(driver, path string) string {
	if driver == DriverCGO {
		return path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// withTx scopes one logical operation to a transaction and always releases it.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrConstraint, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrConstraint, err)
	}
	return nil
}

// RegisterModel inserts a model unless one with the same name exists.
func (s *Store) RegisterModel(ctx context.Context, name, description string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO models (name, description) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			name, description)
		if err != nil {
			return fmt.Errorf("%w: register model %q: %w", ErrConstraint, name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			s.logger.Warn("model already exists", zap.String("model", name))
		}
		return nil
	})
}

func (s *Store) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT name, description FROM models ORDER BY id`)
		if err != nil {
			return fmt.Errorf("%w: list models: %w", ErrConstraint, err)
		}
		defer rows.Close()

		for rows.Next() {
			var m Model
			if err := rows.Scan(&m.Name, &m.Description); err != nil {
				return fmt.Errorf("%w: scan model: %w", ErrConstraint, err)
			}
			models = append(models, m)
		}
		return rows.Err()
	})
	return models, err
}

// CreateSession stores a new session started now and returns its id. The
// model name is stored as given.
func (s *Store) CreateSession(ctx context.Context, model, title, description string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (start_time, current_model, title, description) VALUES (?, ?, ?, ?)`,
			s.now().UnixNano(), model, title, description)
		if err != nil {
			return fmt.Errorf("%w: create session: %w", ErrConstraint, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: create session: %w", ErrConstraint, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("session created", zap.Int64("session", id), zap.String("model", model))
	return id, nil
}

// GetSession reads the session header and its ordered messages in one
// transaction. A missing session yields ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	var session *Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			sess  Session
			start int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, start_time, current_model, title, description FROM chat_sessions WHERE id = ?`, id,
		).Scan(&sess.ID, &start, &sess.CurrentModel, &sess.Title, &sess.Description)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: get session %d: %w", ErrConstraint, id, err)
		}
		sess.StartTime = time.Unix(0, start)

		rows, err := tx.QueryContext(ctx,
			`SELECT id, session_id, timestamp, role, content, model
			 FROM chat_messages WHERE session_id = ? ORDER BY timestamp ASC, id ASC`, id)
		if err != nil {
			return fmt.Errorf("%w: list messages: %w", ErrConstraint, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				m  Message
				ts int64
			)
			if err := rows.Scan(&m.ID, &m.SessionID, &ts, &m.Role, &m.Content, &m.Model); err != nil {
				return fmt.Errorf("%w: scan message: %w", ErrConstraint, err)
			}
			m.Timestamp = time.Unix(0, ts)
			sess.Messages = append(sess.Messages, m)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list messages: %w", ErrConstraint, err)
		}
		session = &sess
		return nil
	})
	return session, err
}

// ListSessions returns session headers, most recently started first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var sessions []SessionSummary
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, start_time, current_model, title FROM chat_sessions ORDER BY start_time DESC, id DESC`)
		if err != nil {
			return fmt.Errorf("%w: list sessions: %w", ErrConstraint, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				sum   SessionSummary
				start int64
			)
			if err := rows.Scan(&sum.ID, &start, &sum.CurrentModel, &sum.Title); err != nil {
				return fmt.Errorf("%w: scan session: %w", ErrConstraint, err)
			}
			sum.StartTime = time.Unix(0, start)
			sessions = append(sessions, sum)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list sessions: %w", ErrConstraint, err)
		}
		return nil
	})
	return sessions, err
}

// AppendMessage adds a message to the end of a session's log. A zero
// timestamp is replaced with the store clock.
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, message Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = s.now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, sessionID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, timestamp, role, content, model) VALUES (?, ?, ?, ?, ?)`,
			sessionID, message.Timestamp.UnixNano(), message.Role, message.Content, message.Model)
		if err != nil {
			return fmt.Errorf("%w: append message: %w", ErrConstraint, err)
		}
		return nil
	})
}

func (s *Store) UpdateSessionModel(ctx context.Context, sessionID int64, model string) error {
	return s.updateSession(ctx, sessionID, `UPDATE chat_sessions SET current_model = ? WHERE id = ?`, model)
}

func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID int64, title string) error {
	return s.updateSession(ctx, sessionID, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title)
}

func (s *Store) updateSession(ctx context.Context, sessionID int64, query string, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, value, sessionID)
		if err != nil {
			return fmt.Errorf("%w: update session %d: %w", ErrConstraint, sessionID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("%w: update session %d: %w", ErrConstraint, sessionID, err)
		} else if n == 0 {
			return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
		}
		return nil
	})
}

// DeleteSession removes a session and all of its messages atomically.
func (s *Store) DeleteSession(ctx context.Context, sessionID int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("%w: delete messages: %w", ErrConstraint, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID); err != nil {
			return fmt.Errorf("%w: delete session: %w", ErrConstraint, err)
		}
		return nil
	})
	if err == nil {
		s.logger.Debug("session deleted", zap.Int64("session", sessionID))
	}
	return err
}

func sessionExists(ctx context.Context, tx *sql.Tx, sessionID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: lookup session %d: %w", ErrConstraint, sessionID, err)
	}
	return nil
}
