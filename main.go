package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sealor/ai-chat/pkg/chat"
	"github.com/sealor/ai-chat/pkg/completion"
	"github.com/sealor/ai-chat/pkg/config"
	"github.com/sealor/ai-chat/pkg/console"
	"github.com/sealor/ai-chat/pkg/logging"
	"github.com/sealor/ai-chat/pkg/persistence"
	"github.com/sealor/ai-chat/pkg/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile    string
	modelsFile    string
	apiURL        string
	model         string
	dbFile        string
	systemMessage string
	activeLog     bool
)

var rootCmd = &cobra.Command{
	Use:   "ai-chat",
	Short: "Terminal chat client with persistent sessions",
	Long: `ai-chat keeps every conversation in a local SQLite database and sends
the full session transcript to an OpenAI compatible endpoint or to Gemini.

Type /help inside the chat for the list of commands.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "config.yaml", "YAML configuration file")
	flags.StringVar(&modelsFile, "models", "", "YAML model list (overrides models_file)")
	flags.StringVar(&apiURL, "api", "", "URL for the OpenAI API endpoint (overrides base_url)")
	flags.StringVar(&model, "model", "", "Technical name of the LLM to start with")
	flags.StringVar(&dbFile, "db", "", "SQLite database file (overrides database_file)")
	flags.StringVar(&systemMessage, "system", "", "System message sent with every request")
	flags.BoolVar(&activeLog, "log", false, "Activate debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	logger, err := logging.New(cfg.LogLevel, activeLog)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	view := ui.New(os.Stdout)

	if _, err := os.Stat(cfg.DatabaseFile); errors.Is(err, fs.ErrNotExist) {
		view.Info("Database not found, initializing new database...")
	}
	store, err := persistence.Open(cfg.DatabaseDriver, cfg.DatabaseFile, persistence.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("cannot open store %s: %w", cfg.DatabaseFile, err)
	}
	defer store.Close()

	if err := registerModels(ctx, store, cfg.ModelsFile, logger); err != nil {
		return err
	}

	completer, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	con := console.Open(cfg.HistoryFile, logger)
	defer func() {
		if err := con.Close(); err != nil {
			logger.Warn("closing console", zap.Error(err))
		}
	}()

	interpreter := chat.New(store, completer, view, con,
		chat.WithLogger(logger),
		chat.WithInterrupts(os.Interrupt),
	)
	return interpreter.Run(ctx, chat.State{Model: cfg.DefaultModel})
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("models") {
		cfg.ModelsFile = config.ExpandHome(modelsFile)
	}
	if flags.Changed("api") {
		cfg.BaseURL = apiURL
	}
	if flags.Changed("model") {
		cfg.DefaultModel = model
	}
	if flags.Changed("db") {
		cfg.DatabaseFile = config.ExpandHome(dbFile)
	}
	if flags.Changed("system") {
		cfg.SystemMessage = systemMessage
	}
}

func registerModels(ctx context.Context, store *persistence.Store, file string, logger *zap.Logger) error {
	models, err := config.LoadModels(file)
	if err != nil {
		return err
	}
	for _, m := range models {
		if err := store.RegisterModel(ctx, m.Name, m.Description); err != nil {
			return err
		}
	}
	logger.Debug("models registered", zap.String("file", file), zap.Int("count", len(models)))
	return nil
}

func newCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chat.Completer, error) {
	switch cfg.Provider {
	case completion.ProviderGemini:
		return completion.NewGemini(ctx, cfg.APIKey, cfg.SystemMessage, logger)
	default:
		return completion.NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.SystemMessage, activeLog, logger), nil
	}
}
