package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autokool/internal/storage"
)

// AnnounceOrder posts a paid order to the admin channel together with a
// one-order spreadsheet.
func (b *Bot) AnnounceOrder(ctx context.Context, order storage.Order) error {
	channelID := b.cfg.Admin.ChannelID
	if channelID == 0 {
		b.logger.Warn("Channel notifications disabled - no channel ID configured")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(channelID, FormatOrderAnnouncement(order))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send channel notification",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return fmt.Errorf("announce order %d: %w", order.ID, err)
	}

	path, err := storage.ExportOrderToExcel(order, b.cfg.Admin.ReportDir)
	if err != nil {
		b.logger.Error("Failed to create Excel file for order",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return nil
	}

	doc := tgbotapi.NewDocument(channelID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📊 Order #%d", order.ID)
	if _, err := b.bot.Send(doc); err != nil {
		b.logger.Error("Failed to send order document",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
	return nil
}
