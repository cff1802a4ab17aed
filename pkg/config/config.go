// Package config loads the YAML configuration and the static model list.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	DefaultModel   string `yaml:"default_model"`
	SystemMessage  string `yaml:"system_message"`
	DatabaseDriver string `yaml:"database_driver"`
	DatabaseFile   string `yaml:"database_file"`
	HistoryFile    string `yaml:"history_file"`
	ModelsFile     string `yaml:"models_file"`
	LogLevel       string `yaml:"log_level"`
}

type ModelSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type modelList struct {
	Models []ModelSpec `yaml:"models"`
}

func Default() *Config {
	return &Config{
		Provider:       "openai",
		BaseURL:        "http://127.0.0.1:11434/v1",
		DefaultModel:   "qwen3:1.7b",
		DatabaseDriver: "sqlite",
		DatabaseFile:   "chat_history.db",
		HistoryFile:    "~/.ai_chat_history",
		ModelsFile:     "models.yaml",
		LogLevel:       "error",
	}
}

func GetEnv(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if ok {
		return value
	} else {
		return fallback
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.DatabaseFile = ExpandHome(cfg.DatabaseFile)
	cfg.HistoryFile = ExpandHome(cfg.HistoryFile)
	cfg.ModelsFile = ExpandHome(cfg.ModelsFile)
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.DefaultModel = GetEnv("AI_CHAT_MODEL", c.DefaultModel)

	switch c.Provider {
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.APIKey = key
		}
	default:
		c.BaseURL = GetEnv("OPENAI_URL", c.BaseURL)
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.APIKey = key
		}
	}
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown provider %q (want openai or gemini)", c.Provider)
	}
	switch c.DatabaseDriver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unknown database_driver %q (want sqlite or sqlite3)", c.DatabaseDriver)
	}
	if c.DatabaseFile == "" {
		return errors.New("database_file must be set")
	}
	if c.DefaultModel == "" {
		return errors.New("default_model must be set")
	}
	return nil
}

// LoadModels reads the static model list. A missing file yields no models.
func LoadModels(path string) ([]ModelSpec, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}

	var list modelList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse models %s: %w", path, err)
	}

	models := list.Models[:0]
	for _, m := range list.Models {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		models = append(models, m)
	}
	return models, nil
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
