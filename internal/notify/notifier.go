package notify

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	errChatIDNotConfigured = "Chat ID not configured"
	errNoTransport         = "No Telegram transport configured"
	errSendFailed          = "Failed to send notification"
)

var ErrNotDelivered = errors.New("notification not delivered")

// Deliverer sends one notification to one chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID string, n Notification) error
}

// Result is what callers get back from Notify. It never panics or throws.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Notifier struct {
	chatID string
	relay  Deliverer
	direct Deliverer
	logger *zap.Logger
}

type Option func(*Notifier)

// WithRelay sends through the /api/telegram-notify endpoint first.
func WithRelay(d Deliverer) Option {
	return func(n *Notifier) {
		n.relay = d
	}
}

// WithDirect talks to the Bot API when there is no relay or it is
// unreachable.
func WithDirect(d Deliverer) Option {
	return func(n *Notifier) {
		n.direct = d
	}
}

func New(chatID string, logger *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{chatID: chatID, logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends n to the configured admin chat.
func (n *Notifier) Notify(ctx context.Context, note Notification) Result {
	return n.NotifyChat(ctx, n.chatID, note)
}

// NotifyChat sends to an explicit chat. An empty chat ID is reported without
// any network request.
func (n *Notifier) NotifyChat(ctx context.Context, chatID string, note Notification) Result {
	log := n.logger.With(zap.String("type", string(note.Kind())))

	if chatID == "" {
		log.Warn("Telegram chat ID not configured")
		return Result{Error: errChatIDNotConfigured}
	}

	var err error
	switch {
	case n.relay != nil:
		err = n.relay.Deliver(ctx, chatID, note)
		var terr *TransportError
		if errors.As(err, &terr) && n.direct != nil {
			log.Warn("Notification relay unreachable, sending directly", zap.Error(err))
			err = n.direct.Deliver(ctx, chatID, note)
		}
	case n.direct != nil:
		err = n.direct.Deliver(ctx, chatID, note)
	default:
		log.Warn("Telegram notification skipped", zap.String("reason", errNoTransport))
		return Result{Error: errNoTransport}
	}

	if err != nil {
		log.Error("Error sending Telegram message", zap.Error(err))
		return Result{Error: errorText(err)}
	}
	return Result{Success: true}
}

// Send is Notify for callers that propagate failures.
func (n *Notifier) Send(ctx context.Context, note Notification) error {
	res := n.Notify(ctx, note)
	if res.Success {
		return nil
	}
	return &SendError{Reason: res.Error}
}

type SendError struct {
	Reason string
}

func (e *SendError) Error() string {
	return ErrNotDelivered.Error() + ": " + e.Reason
}

func (e *SendError) Unwrap() error { return ErrNotDelivered }

// errorText keeps the Bot API description when there is one.
func errorText(err error) string {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Message != "" {
		return tgErr.Message
	}
	var tgVal tgbotapi.Error
	if errors.As(err, &tgVal) && tgVal.Message != "" {
		return tgVal.Message
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Err.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return errSendFailed
}
