package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avoronkov/todoist-bot/internal/models"
	"github.com/avoronkov/todoist-bot/internal/nlp"
	"github.com/avoronkov/todoist-bot/internal/ratelimit"
	"github.com/avoronkov/todoist-bot/internal/storage"
	"github.com/avoronkov/todoist-bot/internal/todoist"
)

// Todoist personal API tokens are 40 lowercase hex characters.
var tokenPattern = regexp.MustCompile(`^[a-z0-9]{40}$`)

type Config struct {
	Token           string
	DefaultPriority int
	ThrottleRPS     float64
	ThrottleBurst   int
	// ClientOptions are applied to every Todoist client the bot builds,
	// one per handled message.
	ClientOptions []todoist.Option
}

type Bot struct {
	api             *tgbotapi.BotAPI
	storage         storage.Storage
	limiter         *ratelimit.Limiter
	extractor       nlp.DateExtractor
	throttle        *messageThrottle
	logger          *zap.Logger
	defaultPriority int
	clientOpts      []todoist.Option
}

func New(cfg Config, store storage.Storage, limiter *ratelimit.Limiter, extractor nlp.DateExtractor, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	priority := cfg.DefaultPriority
	if priority == 0 {
		priority = 3
	}

	return &Bot{
		api:             api,
		storage:         store,
		limiter:         limiter,
		extractor:       extractor,
		throttle:        newMessageThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst),
		logger:          logger,
		defaultPriority: priority,
		clientOpts:      cfg.ClientOptions,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if !b.throttle.allow(message.Chat.ID) {
		b.logger.Debug("Dropping throttled message",
			zap.Int64("chat_id", message.Chat.ID))
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	logger := b.logger.With(
		zap.String("update_id", uuid.New().String()),
		zap.Int64("user_id", message.From.ID))

	// A message is either a token submission or a task request; tokens are
	// unmistakable, so the shape of the text decides.
	if isTokenSubmission(text) {
		b.handleTokenSubmission(ctx, logger, message, text)
		return
	}
	b.handleTaskRequest(ctx, logger, message, text)
}

func isTokenSubmission(text string) bool {
	return tokenPattern.MatchString(text)
}

func (b *Bot) handleTokenSubmission(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, token string) {
	userID := message.From.ID

	allowed, advisory := b.limiter.CanAttempt(ctx, userID)
	if !allowed {
		b.sendReply(message.Chat.ID, message.MessageID, "🚫 "+advisory)
		return
	}

	// Probe with the candidate token before persisting anything, so a bad
	// token is rejected with an accurate reason.
	client := todoist.NewClient(token, b.clientOpts...)
	_, probeErr := client.ListProjects(ctx)

	if err := b.limiter.RecordAttempt(ctx, userID, probeErr == nil); err != nil {
		logger.Error("Failed to record attempt", zap.Error(err))
	}

	if probeErr != nil {
		logger.Info("Token validation failed", zap.Error(probeErr))
		reply := "❌ " + rejectionReason(probeErr)
		if advisory != "" {
			reply += "\n⚠️ " + advisory
		}
		b.sendReply(message.Chat.ID, message.MessageID, reply)
		return
	}

	if err := b.storage.UpsertToken(ctx, userID, token); err != nil {
		logger.Error("Failed to store token", zap.Error(err))
		b.sendReply(message.Chat.ID, message.MessageID,
			"❌ Your token validated but could not be saved. Please send it again.")
		return
	}

	logger.Info("Token stored")
	b.sendReply(message.Chat.ID, message.MessageID,
		"✅ Token saved!\n\nNow send me any message to create a task in Todoist.")
}

func (b *Bot) handleTaskRequest(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, text string) {
	userID := message.From.ID

	has, err := b.storage.HasToken(ctx, userID)
	if err != nil {
		// Advisory read: treat an outage as "no token"; the worst case is
		// re-prompting the user.
		logger.Warn("Failed to check token", zap.Error(err))
		has = false
	}
	if !has {
		b.sendReply(message.Chat.ID, message.MessageID,
			"❌ Set your Todoist token first!\n\n"+
				"Send me your API token from https://todoist.com/prefs/integrations")
		return
	}

	token, err := b.storage.GetToken(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			b.sendReply(message.Chat.ID, message.MessageID,
				"❌ Your token is gone. Please set it again.")
			return
		}
		logger.Error("Failed to load token", zap.Error(err))
		b.sendReply(message.Chat.ID, message.MessageID,
			"❌ Could not read your saved token. Please try again later.")
		return
	}

	placeholder := tgbotapi.NewMessage(message.Chat.ID, "⏳ Creating task...")
	placeholder.ReplyToMessageID = message.MessageID
	sent, err := b.api.Send(placeholder)
	if err != nil {
		logger.Error("Failed to send placeholder message", zap.Error(err))
		return
	}

	req := &models.TaskRequest{
		Content:  text,
		Priority: b.defaultPriority,
		// Deterministic per inbound message, so Telegram redeliveries and
		// retries cannot create duplicate tasks.
		RequestID: taskRequestID(userID, message.MessageID),
	}
	if b.extractor != nil {
		if due, ok := b.extractor.ExtractFutureDate(ctx, text); ok {
			req.DueDate = due.Format("2006-01-02")
		}
	}

	client := todoist.NewClient(token, b.clientOpts...)
	task, err := client.CreateTask(ctx, req)
	if err != nil {
		logger.Error("Failed to create task", zap.Error(err))
		b.editReply(message.Chat.ID, sent.MessageID, "❌ "+rejectionReason(err))
		return
	}

	logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("request_id", req.RequestID))

	reply := fmt.Sprintf("✅ Task created!\n\n📝 %s\n⭐ Priority: P%d", task.Content, task.Priority)
	if task.Due != nil && task.Due.Date != "" {
		reply += "\n📅 Due: " + task.Due.Date
	}
	reply += "\n🔗 " + task.URL
	b.editReply(message.Chat.ID, sent.MessageID, reply)
}

// taskRequestID is the idempotency key for one inbound message.
func taskRequestID(userID int64, messageID int) string {
	return fmt.Sprintf("tg_%d_%d", userID, messageID)
}

// rejectionReason maps a client error to the user-facing explanation.
func rejectionReason(err error) string {
	var remote *todoist.RemoteError
	switch {
	case errors.Is(err, todoist.ErrUnauthorized):
		return "Invalid Todoist token. Check it and try again."
	case errors.Is(err, todoist.ErrForbidden):
		return "This token does not have access to Todoist."
	case errors.Is(err, todoist.ErrUnavailable):
		return "Todoist is unreachable right now. Please try again in a minute."
	case errors.Is(err, todoist.ErrMalformedResponse):
		return "Todoist returned an unexpected response. Please try again."
	case errors.As(err, &remote):
		return fmt.Sprintf("Todoist rejected the request (status %d).", remote.StatusCode)
	default:
		return "Something went wrong. Please try again."
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "forget":
		b.handleForget(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Todoist Bot! 🤖
I turn your messages into Todoist tasks.

Quick start:
1. Get your Todoist API token at https://todoist.com/prefs/integrations
2. Send it to me here
3. Send any message to create a task!

Example: "Buy milk" creates the task "Buy milk" in your Inbox.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Show the setup instructions
/help - Show this help message
/forget - Remove your stored Todoist token

Usage:
- Send your Todoist API token once to connect your account
- After that, every message becomes a task in your Inbox
- Mention a date ("call dentist tomorrow", "pay rent 28.09") and I'll set it as the due date`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleForget(ctx context.Context, message *tgbotapi.Message) {
	removed, err := b.storage.RemoveToken(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to remove token",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't remove your token. Please try again later.")
		return
	}

	if removed {
		b.sendMessage(message.Chat.ID, "Your token has been removed. Send a new one to reconnect.")
		return
	}
	b.sendMessage(message.Chat.ID, "You don't have a stored token.")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) editReply(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
