package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autokool/internal/storage"
)

func (b *Bot) isAdmin(chatID int64) bool {
	return b.cfg.IsAdmin(chatID)
}

// handleAdminCommand ignores everyone not listed in ADMIN_IDS.
func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	if !b.isAdmin(chatID) {
		b.sendError(chatID, "Unknown command. Use /start to choose a course.")
		return
	}
	if b.orders == nil {
		b.sendError(chatID, "Order storage is not configured")
		return
	}

	switch cmd {
	case "export":
		if len(args) == 0 {
			b.handleExportAllOrders(ctx, chatID)
			return
		}
		orderID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendError(chatID, "Invalid order ID")
			return
		}
		b.handleExportSingleOrder(ctx, chatID, orderID)
	case "stats":
		b.handleOrderStats(ctx, chatID)
	}
}

func (b *Bot) handleOrderStats(ctx context.Context, chatID int64) {
	stats, err := b.orders.GetOrderStatistics(ctx)
	if err != nil {
		b.logger.Error("Failed to get order statistics", zap.Error(err))
		b.sendError(chatID, "Failed to load statistics")
		return
	}
	_, _ = b.sendHTML(chatID, FormatStats(stats), nil)
}

func (b *Bot) handleExportAllOrders(ctx context.Context, chatID int64) {
	path, err := b.orders.ExportOrdersToExcel(ctx, b.cfg.Admin.ReportDir)
	if err != nil {
		b.logger.Error("Failed to export all orders", zap.Error(err))
		b.sendError(chatID, "Failed to export orders")
		return
	}
	b.sendDocument(chatID, path, "📊 All orders export")
}

func (b *Bot) handleExportSingleOrder(ctx context.Context, chatID int64, orderID int64) {
	order, err := b.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, storage.ErrOrderNotFound) {
		b.sendError(chatID, "Order not found")
		return
	}
	if err != nil {
		b.logger.Error("Failed to get order",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		b.sendError(chatID, "Failed to load order")
		return
	}

	path, err := storage.ExportOrderToExcel(*order, b.cfg.Admin.ReportDir)
	if err != nil {
		b.logger.Error("Failed to export order",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		b.sendError(chatID, "Failed to export order")
		return
	}
	b.sendDocument(chatID, path, fmt.Sprintf("📊 Order #%d export", orderID))
}

func (b *Bot) sendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption

	if _, err := b.bot.Send(doc); err != nil {
		b.logger.Error("Failed to send Excel file",
			zap.Int64("chat_id", chatID),
			zap.String("path", path),
			zap.Error(err))
		b.sendError(chatID, "Failed to send exported file")
		return err
	}
	return nil
}
