package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RelaySender posts notifications to the /api/telegram-notify endpoint,
// which formats them and talks to Telegram.
type RelaySender struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRelaySender(url string, httpClient *http.Client, logger *zap.Logger) *RelaySender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelaySender{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
	}
}

type relayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func (s *RelaySender) Deliver(ctx context.Context, chatID string, n Notification) error {
	envelope, err := NewEnvelope(chatID, n)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var out relayResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Error != "" {
			return errors.New(out.Error)
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !out.Success {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return errors.New(errSendFailed)
	}

	s.logger.Debug("Notification relayed",
		zap.String("type", string(n.Kind())),
		zap.String("chat_id", chatID))
	return nil
}
