package bot

import (
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autokool/internal/checkout"
)

const (
	callbackCategory     = "category:"
	callbackTransmission = "transmission:"
	callbackCallMe       = "callme"
	callbackRestart      = "restart"

	cancelText  = "Cancel"
	botLocation = "telegram_bot"
)

func categoryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏍 Category A", callbackCategory+checkout.CategoryA.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚗 Category B", callbackCategory+checkout.CategoryB.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏁 Final course", callbackCategory+checkout.CategoryC.String()),
		),
	)
}

func transmissionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Manual", callbackTransmission+checkout.TransmissionManual.String()),
			tgbotapi.NewInlineKeyboardButtonData("Automatic", callbackTransmission+checkout.TransmissionAutomatic.String()),
		),
	)
}

// quoteKeyboard links to the Payment Link through the site's /pay redirect,
// so the click is recorded like any other button on the site.
func (b *Bot) quoteKeyboard(q checkout.Quote) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Pay "+q.Label, b.payURL(q)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🧾 Checkout", b.checkoutURL(q.Category)),
		),
	}
	if q.Category == checkout.CategoryB {
		other := checkout.TransmissionAutomatic
		if q.Transmission == checkout.TransmissionAutomatic {
			other = checkout.TransmissionManual
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Switch to "+other.String(), callbackTransmission+other.String()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📞 Call me back", callbackCallMe),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Other course", callbackRestart),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("📱 Share my phone number"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(cancelText),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func (b *Bot) payURL(q checkout.Quote) string {
	v := url.Values{}
	v.Set("location", botLocation)
	v.Set("button", "bot_pay_"+q.Category.String())
	v.Set("text", "Pay "+q.Label)
	return b.publicURL("/pay/"+q.Category.String()) + "?" + v.Encode()
}

func (b *Bot) checkoutURL(category checkout.Category) string {
	v := url.Values{}
	v.Set("category", category.String())
	return b.publicURL("/checkout") + "?" + v.Encode()
}

func (b *Bot) publicURL(path string) string {
	return strings.TrimRight(b.cfg.HTTP.PublicURL, "/") + path
}
