// Package redis keeps the bot's per-chat dialog state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscli "autokool/pkg/redis"
)

const defaultStateTTL = 24 * time.Hour

// KV is implemented by pkg/redis.Client.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Storage struct {
	kv  KV
	ttl time.Duration
}

func New(kv KV, ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &Storage{kv: kv, ttl: ttl}
}

func (s *Storage) SetUserDialogState(ctx context.Context, chatID int64, state *DialogState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return s.kv.Set(ctx, buildStateKey(chatID), data, s.ttl)
}

// GetUserDialogState returns an empty state for chats never seen before.
func (s *Storage) GetUserDialogState(ctx context.Context, chatID int64) (*DialogState, error) {
	data, err := s.kv.Get(ctx, buildStateKey(chatID))
	if rediscli.IsNil(err) {
		return &DialogState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state DialogState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal failure: %w", err)
	}
	return &state, nil
}

func (s *Storage) DropUserDialogState(ctx context.Context, chatID int64) error {
	return s.kv.Del(ctx, buildStateKey(chatID))
}

func buildStateKey(chatID int64) string {
	return fmt.Sprintf("state:%d", chatID)
}
