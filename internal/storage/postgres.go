package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"autokool/internal/checkout"
	"autokool/internal/config"
	"autokool/internal/paylink"
	rediscli "autokool/pkg/redis"
)

const statsCacheKey = "order_stats"

var ErrOrderNotFound = errors.New("order not found")

// Cache is implemented by pkg/redis.Client.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

type PostgresStorage struct {
	db     *sqlx.DB
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// Order is a placed checkout order as stored in the orders table.
type Order struct {
	ID           int64     `db:"id"`
	SessionID    string    `db:"session_id"`
	Category     string    `db:"category"`
	Transmission string    `db:"transmission"`
	Price        int64     `db:"price"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Phone        string    `db:"phone"`
	Email        string    `db:"email"`
	Address1     string    `db:"address1"`
	Address2     string    `db:"address2"`
	City         string    `db:"city"`
	State        string    `db:"state"`
	Zip          string    `db:"zip"`
	Country      string    `db:"country"`
	GiftEmail    string    `db:"gift_email"`
	Instructor   string    `db:"instructor"`
	PaymentID    string    `db:"payment_id"`
	Amount       int64     `db:"amount"`
	Currency     string    `db:"currency"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

const OrderStatusPaid = "paid"

// OrderFromCheckout flattens a checkout order into a row.
func OrderFromCheckout(o checkout.Order) Order {
	return Order{
		SessionID:    o.SessionID,
		Category:     o.Category.String(),
		Transmission: o.Transmission.String(),
		Price:        int64(o.Price),
		FirstName:    o.Address.FirstName,
		LastName:     o.Address.LastName,
		Phone:        o.Address.Phone,
		Email:        o.Address.Email,
		Address1:     o.Address.Address1,
		Address2:     o.Address.Address2,
		City:         o.Address.City,
		State:        o.Address.State,
		Zip:          o.Address.Zip,
		Country:      o.Address.Country,
		GiftEmail:    o.GiftEmail,
		Instructor:   o.Instructor,
		PaymentID:    o.PaymentID,
		Amount:       o.Amount,
		Currency:     o.Currency,
		Status:       OrderStatusPaid,
		CreatedAt:    o.CreatedAt,
	}
}

func (o Order) CustomerName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	default:
		return o.FirstName + " " + o.LastName
	}
}

func NewPostgresStorage(ctx context.Context, cfg config.DatabaseConfig, cache Cache, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
	)

	var db *sqlx.DB
	var err error

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err = backoff.RetryNotify(
		func() error {
			db, err = sqlx.ConnectContext(ctx, "postgres", connStr)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return NewWithDB(db, cache, logger), nil
}

// NewWithDB wraps an open connection.
func NewWithDB(db *sqlx.DB, cache Cache, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:     db,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// DB exposes the underlying handle for migrations.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const orderColumns = `id, session_id, category, transmission, price,
	first_name, last_name, phone, email, address1, address2, city, state, zip, country,
	gift_email, instructor, payment_id, amount, currency, status, created_at`

// SaveOrder stores a placed order. Saving the same session twice returns the
// id of the first row.
func (s *PostgresStorage) SaveOrder(ctx context.Context, order Order) (int64, error) {
	const operation = "storage.SaveOrder"

	const query = `
		INSERT INTO orders (
			session_id, category, transmission, price,
			first_name, last_name, phone, email, address1, address2,
			city, state, zip, country, gift_email, instructor,
			payment_id, amount, currency, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING id
	`

	if order.Status == "" {
		order.Status = OrderStatusPaid
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}

	var orderID int64
	err := s.db.QueryRowContext(ctx, query,
		order.SessionID,
		order.Category,
		order.Transmission,
		order.Price,
		order.FirstName,
		order.LastName,
		order.Phone,
		order.Email,
		order.Address1,
		order.Address2,
		order.City,
		order.State,
		order.Zip,
		order.Country,
		order.GiftEmail,
		order.Instructor,
		order.PaymentID,
		order.Amount,
		order.Currency,
		order.Status,
		order.CreatedAt,
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to save order: %w", operation, err)
	}

	if err := s.cache.Del(ctx, statsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate order statistics cache", zap.Error(err))
	}

	return orderID, nil
}

func (s *PostgresStorage) GetOrderByID(ctx context.Context, orderID int64) (*Order, error) {
	const operation = "storage.GetOrderByID"

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order Order
	if err := s.db.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", operation, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get order: %w", operation, err)
	}
	return &order, nil
}

// ListOrders returns the newest orders first. A limit of zero or less lists
// everything.
func (s *PostgresStorage) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	const operation = "storage.ListOrders"

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var orders []Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to fetch orders: %w", operation, err)
	}
	return orders, nil
}

type OrderStatistics struct {
	TotalOrders    int            `db:"total_orders" json:"total_orders"`
	TotalRevenue   int64          `db:"total_revenue" json:"total_revenue"`
	TodayOrders    int            `db:"today_orders" json:"today_orders"`
	TodayRevenue   int64          `db:"today_revenue" json:"today_revenue"`
	WeekOrders     int            `db:"week_orders" json:"week_orders"`
	WeekRevenue    int64          `db:"week_revenue" json:"week_revenue"`
	MonthOrders    int            `db:"month_orders" json:"month_orders"`
	MonthRevenue   int64          `db:"month_revenue" json:"month_revenue"`
	CategoryCounts map[string]int `db:"-" json:"category_counts"`
}

// GetOrderStatistics sums course prices in euros. Results are cached in Redis
// for an hour and dropped whenever an order is saved.
func (s *PostgresStorage) GetOrderStatistics(ctx context.Context) (*OrderStatistics, error) {
	const operation = "storage.GetOrderStatistics"

	if cached, err := s.cache.Get(ctx, statsCacheKey); err == nil {
		var stats OrderStatistics
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	} else if !rediscli.IsNil(err) {
		s.logger.Warn("Order statistics cache unavailable", zap.Error(err))
	}

	stats := &OrderStatistics{CategoryCounts: make(map[string]int)}

	err := s.db.GetContext(ctx, stats, `
		SELECT
			COUNT(*) AS total_orders,
			COALESCE(SUM(price), 0) AS total_revenue,
			COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE) AS today_orders,
			COALESCE(SUM(price) FILTER (WHERE created_at >= CURRENT_DATE), 0) AS today_revenue,
			COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '7 days') AS week_orders,
			COALESCE(SUM(price) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '7 days'), 0) AS week_revenue,
			COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '30 days') AS month_orders,
			COALESCE(SUM(price) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '30 days'), 0) AS month_revenue
		FROM orders
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get totals: %w", operation, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS count
		FROM orders
		GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get category counts: %w", operation, err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("%s: failed to scan category count: %w", operation, err)
		}
		stats.CategoryCounts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, statsCacheKey, data, time.Hour); err != nil {
			s.logger.Warn("Failed to cache order statistics", zap.Error(err))
		}
	}

	return stats, nil
}

var _ paylink.Recorder = (*PostgresStorage)(nil)

// RecordClick appends a Payment Link redirect to the click log.
func (s *PostgresStorage) RecordClick(ctx context.Context, e paylink.Event) error {
	const operation = "storage.RecordClick"

	const query = `
		INSERT INTO payment_link_clicks (course, button_name, location, text, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		e.Course.String(), e.ButtonName, e.Location, e.Text, e.URL, e.At,
	); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

// CheckRateLimit counts one hit for key and reports whether the limit for the
// current window is exceeded.
func (s *PostgresStorage) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	key = "ratelimit:" + key

	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// first hit opens the window
	if count == 1 {
		if _, err := s.cache.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count > limit, nil
}
