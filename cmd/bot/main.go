package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/avoronkov/todoist-bot/internal/bot"
	"github.com/avoronkov/todoist-bot/internal/nlp"
	"github.com/avoronkov/todoist-bot/internal/ratelimit"
	"github.com/avoronkov/todoist-bot/internal/storage"
	"github.com/avoronkov/todoist-bot/internal/todoist"
	"github.com/avoronkov/todoist-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	queryTimeout := time.Duration(cfg.Database.QueryTimeoutSeconds) * time.Second

	// Initialize storage
	var store storage.Storage
	switch cfg.Database.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		store, err = storage.NewSQLiteStorage(cfg.Database.Path, queryTimeout)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	default:
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			DBName:       cfg.Database.DBName,
			SSLMode:      cfg.Database.SSLMode,
			QueryTimeout: queryTimeout,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the attempt limiter on top of the same storage
	limiter := ratelimit.New(store, ratelimit.Config{
		MaxAttempts: cfg.Limiter.MaxAttempts,
		Window:      time.Duration(cfg.Limiter.TimeoutMinutes) * time.Minute,
		Retention:   time.Duration(cfg.Limiter.RetentionDays) * 24 * time.Hour,
	}, logger)

	// Build the due-date extraction chain; GPT first when configured,
	// heuristics as the fallback
	var extractors []nlp.DateExtractor
	if cfg.OpenAI.APIKey != "" {
		extractors = append(extractors, nlp.NewGPTExtractor(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		))
	}
	extractors = append(extractors, nlp.NewHeuristicExtractor())

	var clientOpts []todoist.Option
	if cfg.Todoist.BaseURL != "" {
		clientOpts = append(clientOpts, todoist.WithBaseURL(cfg.Todoist.BaseURL))
	}
	if cfg.Todoist.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, todoist.WithTimeout(time.Duration(cfg.Todoist.TimeoutSeconds)*time.Second))
	}

	// Initialize bot
	b, err := bot.New(bot.Config{
		Token:           cfg.Telegram.Token,
		DefaultPriority: cfg.Todoist.DefaultPriority,
		ThrottleRPS:     cfg.Throttle.RPS,
		ThrottleBurst:   cfg.Throttle.Burst,
		ClientOptions:   clientOpts,
	}, store, limiter, nlp.NewChain(extractors...), logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
