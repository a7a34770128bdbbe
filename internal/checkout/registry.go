package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry keeps the live checkout sessions of this process. Nothing is
// persisted: a restart drops every session, like a page reload would.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	gateway Gateway
	cfg     SessionConfig
	ttl     time.Duration
	logger  *zap.Logger
}

func NewRegistry(gateway Gateway, cfg SessionConfig, ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		gateway:  gateway,
		cfg:      cfg,
		ttl:      ttl,
		logger:   logger,
	}
}

func (r *Registry) Create(category Category, instructorID string) *Session {
	id := uuid.NewString()
	s := NewSession(id, category, instructorID, r.gateway, r.cfg, r.logger)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Debug("Checkout session created",
		zap.String("session_id", id),
		zap.String("category", category.String()))
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes the session and forgets it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were dropped.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run sweeps periodically until ctx ends, then closes every session.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("Expired checkout sessions dropped", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
