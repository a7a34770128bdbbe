package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotSender formats notifications locally and sends them with the Bot API.
type BotSender struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
	now    func() time.Time
}

func NewBotSender(bot *tgbotapi.BotAPI, logger *zap.Logger) *BotSender {
	return &BotSender{bot: bot, logger: logger, now: time.Now}
}

func (s *BotSender) Deliver(ctx context.Context, chatID string, n Notification) error {
	return s.SendText(ctx, chatID, Format(n, s.now()))
}

// SendText posts an already formatted HTML message. Numeric chat IDs address
// users and groups, anything else is taken as a channel username.
func (s *BotSender) SendText(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("Telegram API error",
			zap.String("chat_id", chatID),
			zap.Error(err))
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
