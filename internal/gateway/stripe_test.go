package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autokool/internal/checkout"
)

func newStripeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "10000", r.PostForm.Get("amount"))
		assert.Equal(t, "eur", r.PostForm.Get("currency"))
		assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
		assert.Equal(t, "true", r.PostForm.Get("confirm"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func charge(t *testing.T, srv *httptest.Server) (checkout.Record, error) {
	t.Helper()
	g := NewStripe("sk_test_123", zap.NewNop(), WithAPIURL(srv.URL))
	return g.Charge(context.Background(), checkout.ChargeRequest{
		Amount:    10000,
		Currency:  "eur",
		MethodRef: "pm_card_visa",
	})
}

func TestStripe_ChargeSucceeded(t *testing.T) {
	srv := newStripeServer(t, http.StatusOK, `{
		"id": "pi_3Abc",
		"object": "payment_intent",
		"amount": 10000,
		"currency": "eur",
		"status": "succeeded",
		"created": 1700000000,
		"payment_method": "pm_card_visa"
	}`)

	rec, err := charge(t, srv)
	require.NoError(t, err)
	assert.Equal(t, checkout.Record{
		ID:            "pi_3Abc",
		Amount:        10000,
		Currency:      "eur",
		Status:        "succeeded",
		Created:       1700000000000,
		PaymentMethod: "pm_card_visa",
	}, rec)
}

func TestStripe_ChargeRequiresAction(t *testing.T) {
	srv := newStripeServer(t, http.StatusOK, `{
		"id": "pi_3Def",
		"object": "payment_intent",
		"amount": 10000,
		"currency": "eur",
		"status": "requires_action"
	}`)

	_, err := charge(t, srv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pi_3Def is requires_action")
}

func TestStripe_ChargeDeclined(t *testing.T) {
	srv := newStripeServer(t, http.StatusPaymentRequired, `{
		"error": {
			"type": "card_error",
			"code": "card_declined",
			"message": "Your card was declined."
		}
	}`)

	_, err := charge(t, srv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}
