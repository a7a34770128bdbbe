package bot

import (
	"context"

	"autokool/internal/storage"
	redisstore "autokool/internal/storage/redis"
)

type StateStore interface {
	GetUserDialogState(ctx context.Context, chatID int64) (*redisstore.DialogState, error)
	SetUserDialogState(ctx context.Context, chatID int64, state *redisstore.DialogState) error
	DropUserDialogState(ctx context.Context, chatID int64) error
}

// OrderStore is the read side the admin commands need.
type OrderStore interface {
	GetOrderByID(ctx context.Context, orderID int64) (*storage.Order, error)
	GetOrderStatistics(ctx context.Context) (*storage.OrderStatistics, error)
	ExportOrdersToExcel(ctx context.Context, dir string) (string, error)
}
