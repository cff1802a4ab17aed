// Package persistence stores models, chat sessions and their messages in SQLite
package persistence

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Model struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Session is a snapshot of one stored conversation. It is rebuilt from the
// store after every change and never patched in place.
type Session struct {
	ID           int64     `yaml:"id"`
	StartTime    time.Time `yaml:"start_time"`
	CurrentModel string    `yaml:"model"`
	Title        string    `yaml:"title,omitempty"`
	Description  string    `yaml:"description,omitempty"`

	Messages []Message `yaml:"messages"`
}

type SessionSummary struct {
	ID           int64
	StartTime    time.Time
	CurrentModel string
	Title        string
}

type Message struct {
	ID        int64     `yaml:"-"`
	SessionID int64     `yaml:"-"`
	Role      string    `yaml:"role"`
	Content   string    `yaml:"content"`
	Timestamp time.Time `yaml:"timestamp"`
	Model     string    `yaml:"model"`
}

// Turn is the role/content pair handed to a completion backend.
type Turn struct {
	Role    string
	Content string
}
