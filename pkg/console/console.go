// Package console reads input lines with editing and a persistent history.
package console

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/sealor/ai-chat/pkg/chat"
	"go.uber.org/zap"
)

// Console implements chat.Prompter on top of liner.
type Console struct {
	line        *liner.State
	historyFile string
	logger      *zap.Logger
}

// Open takes over the terminal and loads historyFile if it exists.
func Open(historyFile string, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &Console{line: line, historyFile: historyFile, logger: logger}
	if historyFile == "" {
		return c
	}
	f, err := os.Open(historyFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot read history", zap.String("file", historyFile), zap.Error(err))
		}
		return c
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		logger.Warn("cannot parse history", zap.String("file", historyFile), zap.Error(err))
	}
	return c
}

func (c *Console) Prompt(prompt string) (string, error) {
	s, err := c.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", chat.ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		c.line.AppendHistory(s)
	}
	return s, nil
}

// Close writes the history file and restores the terminal.
func (c *Console) Close() error {
	var saveErr error
	if c.historyFile != "" {
		saveErr = c.saveHistory()
	}
	if err := c.line.Close(); err != nil {
		return err
	}
	return saveErr
}

func (c *Console) saveHistory() error {
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	defer f.Close()
	if _, err := c.line.WriteHistory(f); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
