// Package gateway holds the real payment gateways behind checkout.Gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"autokool/internal/checkout"
)

// Stripe charges a payment method through a confirmed PaymentIntent.
type Stripe struct {
	client *stripe.Client
	logger *zap.Logger
}

type StripeOption func(*stripeOptions)

type stripeOptions struct {
	apiURL string
}

// WithAPIURL points the client at another API base, e.g. stripe-mock.
func WithAPIURL(url string) StripeOption {
	return func(o *stripeOptions) {
		o.apiURL = url
	}
}

func NewStripe(secretKey string, logger *zap.Logger, opts ...StripeOption) *Stripe {
	var o stripeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []stripe.ClientOption
	if o.apiURL != "" {
		backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
			URL:               stripe.String(o.apiURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		clientOpts = append(clientOpts, stripe.WithBackends(backends))
	}

	return &Stripe{
		client: stripe.NewClient(secretKey, clientOpts...),
		logger: logger,
	}
}

var _ checkout.Gateway = (*Stripe)(nil)

func (s *Stripe) Charge(ctx context.Context, req checkout.ChargeRequest) (checkout.Record, error) {
	const operation = "gateway.Stripe.Charge"

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.MethodRef),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		s.logger.Warn("Stripe payment intent failed",
			zap.Int64("amount", req.Amount),
			zap.String("currency", req.Currency),
			zap.Error(err))
		return checkout.Record{}, fmt.Errorf("%s: %s", operation, declineMessage(err))
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return checkout.Record{}, fmt.Errorf("%s: payment intent %s is %s", operation, pi.ID, pi.Status)
	}

	rec := checkout.Record{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Status:   string(pi.Status),
		Created:  pi.Created * 1000,
	}
	if pi.PaymentMethod != nil {
		rec.PaymentMethod = pi.PaymentMethod.ID
	}
	return rec, nil
}

// declineMessage prefers the human readable message of a Stripe API error.
func declineMessage(err error) string {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		return serr.Msg
	}
	return err.Error()
}
