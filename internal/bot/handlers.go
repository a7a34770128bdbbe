package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autokool/internal/checkout"
	"autokool/internal/notify"
	redisstore "autokool/internal/storage/redis"
)

const (
	startText = `Hi! 👋 This is Viktorija Autokool Nõmme.

Which course are you interested in?`

	helpText = `Available commands:
/start - choose a course and see the price
/help - show this help

Questions? Press "Call me back" under any price and we will phone you.`
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch cmd := msg.Command(); cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		_, _ = b.sendMessage(tgbotapi.NewMessage(chatID, helpText))
	case "stats", "export":
		b.handleAdminCommand(ctx, chatID, cmd, strings.Fields(msg.CommandArguments()))
	default:
		b.sendError(chatID, "Unknown command. Use /start to choose a course.")
	}
}

func (b *Bot) handleDefault(chatID int64) {
	b.sendError(chatID, "I don't understand that. Use /start to choose a course.")
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if _, err := b.sendHTML(chatID, startText, categoryKeyboard()); err != nil {
		return
	}
	b.saveState(ctx, chatID, &redisstore.DialogState{Step: StepCategory})
}

func (b *Bot) handleCallback(ctx context.Context, chatID int64, data string) {
	if raw, ok := strings.CutPrefix(data, callbackCategory); ok {
		b.handleCategory(ctx, chatID, raw)
		return
	}
	if raw, ok := strings.CutPrefix(data, callbackTransmission); ok {
		b.handleTransmission(ctx, chatID, raw)
		return
	}

	switch data {
	case callbackCallMe:
		b.askContact(ctx, chatID)
	case callbackRestart:
		b.handleStart(ctx, chatID)
	default:
		b.logger.Warn("Unknown callback", zap.Int64("chat_id", chatID), zap.String("data", data))
	}
}

func (b *Bot) handleCategory(ctx context.Context, chatID int64, raw string) {
	category := checkout.ParseCategory(raw)
	if !category.Known() {
		b.sendError(chatID, "Please choose one of the courses")
		return
	}

	state := &redisstore.DialogState{Category: category.String()}

	// only category B is sold with a choice of gearbox
	if category == checkout.CategoryB {
		if _, err := b.sendHTML(chatID, "Manual or automatic transmission?", transmissionKeyboard()); err != nil {
			return
		}
		state.Step = StepTransmission
		b.saveState(ctx, chatID, state)
		return
	}

	state.Transmission = checkout.TransmissionManual.String()
	b.sendQuote(ctx, chatID, state)
}

func (b *Bot) handleTransmission(ctx context.Context, chatID int64, raw string) {
	state, ok := b.loadState(ctx, chatID)
	if !ok {
		return
	}
	if checkout.ParseCategory(state.Category) != checkout.CategoryB {
		b.sendError(chatID, "Please choose a course first: /start")
		return
	}

	t, err := checkout.ParseTransmission(raw)
	if err != nil {
		b.sendError(chatID, "Please choose manual or automatic")
		return
	}
	state.Transmission = t.String()
	b.sendQuote(ctx, chatID, state)
}

// sendQuote shows the price. A quote already on screen is edited in place.
func (b *Bot) sendQuote(ctx context.Context, chatID int64, state *redisstore.DialogState) {
	transmission, err := checkout.ParseTransmission(state.Transmission)
	if err != nil {
		transmission = checkout.TransmissionManual
	}
	q := checkout.NewQuote(checkout.ParseCategory(state.Category), transmission)
	text := FormatQuote(q)
	markup := b.quoteKeyboard(q)

	if state.QuoteMessageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, state.QuoteMessageID, text, markup)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.bot.Send(edit)
		if err == nil {
			state.Step = StepQuote
			b.saveState(ctx, chatID, state)
			return
		}
		b.logger.Warn("Failed to edit quote, sending a new one",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	sent, err := b.sendHTML(chatID, text, markup)
	if err != nil {
		return
	}
	state.Step = StepQuote
	state.QuoteMessageID = sent.MessageID
	b.saveState(ctx, chatID, state)

	b.logger.Info("Quote sent",
		zap.Int64("chat_id", chatID),
		zap.String("category", q.Category.String()),
		zap.String("price", q.Label))
}

func (b *Bot) askContact(ctx context.Context, chatID int64) {
	state, ok := b.loadState(ctx, chatID)
	if !ok {
		return
	}

	text := "Share your phone number or type it in, e.g. +372 5123 4567."
	if _, err := b.sendHTML(chatID, text, contactKeyboard()); err != nil {
		return
	}
	state.Step = StepContact
	b.saveState(ctx, chatID, state)
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.Text == cancelText {
		_, _ = b.sendHTML(chatID, "OK, no call then.", tgbotapi.NewRemoveKeyboard(false))
		if state, ok := b.loadState(ctx, chatID); ok {
			state.Step = StepQuote
			b.saveState(ctx, chatID, state)
		}
		return
	}

	raw, name := msg.Text, senderName(msg.From)
	if msg.Contact != nil {
		raw = msg.Contact.PhoneNumber
		name = strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
	}

	phone := NormalizePhoneNumber(raw)
	if !IsValidPhoneNumber(phone) {
		b.sendError(chatID, "Please send a real phone number with the country code, e.g. +37251234567")
		return
	}

	if b.notifier == nil {
		b.logger.Warn("Call-back request dropped, notifier not configured", zap.Int64("chat_id", chatID))
	} else if res := b.notifier.Notify(ctx, notify.NewUser{Name: name, Phone: phone}); !res.Success {
		b.logger.Error("Failed to forward call-back request",
			zap.Int64("chat_id", chatID),
			zap.String("error", res.Error))
		b.sendError(chatID, "We could not pass on your number. Please call us instead.")
		return
	}

	_, _ = b.sendHTML(chatID, "✅ Thank you! We will call you soon.", tgbotapi.NewRemoveKeyboard(false))
	if err := b.state.DropUserDialogState(ctx, chatID); err != nil {
		b.logger.Error("Failed to clear user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

func (b *Bot) loadState(ctx context.Context, chatID int64) (*redisstore.DialogState, bool) {
	state, err := b.state.GetUserDialogState(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Something went wrong, please try /start again")
		return nil, false
	}
	return state, true
}

func (b *Bot) saveState(ctx context.Context, chatID int64, state *redisstore.DialogState) {
	if err := b.state.SetUserDialogState(ctx, chatID, state); err != nil {
		b.logger.Error("Failed to save user state",
			zap.Int64("chat_id", chatID),
			zap.String("step", state.Step),
			zap.Error(err))
	}
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.UserName
}
