// Package bot is the Telegram front-end of the school: course quotes with a
// Payment Link button, call-back requests and the admin commands.
package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autokool/internal/config"
	"autokool/internal/notify"
)

const (
	StepCategory     = "category"
	StepTransmission = "transmission"
	StepQuote        = "quote"
	StepContact      = "contact"
)

type Bot struct {
	bot      *tgbotapi.BotAPI
	logger   *zap.Logger
	state    StateStore
	orders   OrderStore
	notifier *notify.Notifier
	cfg      *config.Config
	mu       sync.Mutex
	handlers map[string]func(context.Context, *tgbotapi.Message)
}

// NewBotAPI authorizes the token once; the API is shared with the notifier.
func NewBotAPI(cfg config.TelegramConfig, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	botAPI.Debug = cfg.Debug

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))
	return botAPI, nil
}

// New wires the bot. orders and notifier may be nil, which disables the
// admin commands and call-back requests.
func New(
	botAPI *tgbotapi.BotAPI,
	state StateStore,
	orders OrderStore,
	notifier *notify.Notifier,
	logger *zap.Logger,
	cfg *config.Config,
) *Bot {
	b := &Bot{
		bot:      botAPI,
		logger:   logger,
		state:    state,
		orders:   orders,
		notifier: notifier,
		cfg:      cfg,
	}
	b.registerHandlers()
	return b
}

// text input is only expected while waiting for a phone number
func (b *Bot) registerHandlers() {
	b.handlers = map[string]func(context.Context, *tgbotapi.Message){
		StepContact: b.handleContact,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)
	defer b.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case update.Message != nil:
		b.processMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.processCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.logger.Debug("Processing message",
		zap.Int64("chat_id", chatID),
		zap.String("text", msg.Text))

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	state, err := b.state.GetUserDialogState(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Something went wrong, please try /start again")
		return
	}

	if handler, exists := b.handlers[state.Step]; exists {
		handler(ctx, msg)
	} else {
		b.handleDefault(chatID)
	}
}

func (b *Bot) processCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	b.logger.Debug("Processing callback",
		zap.Int64("chat_id", chatID),
		zap.String("data", callback.Data))

	if _, err := b.bot.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback",
			zap.String("callback_id", callback.ID),
			zap.Error(err))
	}

	b.handleCallback(ctx, chatID, callback.Data)
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	sent, err := b.bot.Send(msg)
	if err != nil {
		b.logger.Error("Failed to send message",
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err))
	}
	return sent, err
}

func (b *Bot) sendHTML(chatID int64, text string, markup any) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return b.sendMessage(msg)
}

func (b *Bot) sendError(chatID int64, text string) {
	_, _ = b.sendMessage(tgbotapi.NewMessage(chatID, "❌ "+text))
}
