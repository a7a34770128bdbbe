package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// PaymentStatus of one attempt in the payment sub-flow.
type PaymentStatus string

const (
	PaymentIdle       PaymentStatus = "idle"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "success"
	PaymentFailed     PaymentStatus = "error"
)

const (
	DefaultPaymentDelay = 1500 * time.Millisecond
	DemoChargeAmount    = int64(10000)
	DefaultCurrency     = "eur"
)

// PaymentMethod is the tab selected on the payment step.
type PaymentMethod string

const (
	MethodStripeCard   PaymentMethod = "stripeCard"
	MethodCreditCard   PaymentMethod = "creditCard"
	MethodBankTransfer PaymentMethod = "bankTransfer"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(raw); m {
	case MethodStripeCard, MethodCreditCard, MethodBankTransfer:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, raw)
	}
}

// Chargeable reports whether the method is charged online. Bank transfers
// are settled out of band.
func (m PaymentMethod) Chargeable() bool {
	return m == MethodStripeCard || m == MethodCreditCard
}

// Record is the gateway's answer for a successful charge.
type Record struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
	PaymentMethod string `json:"payment_method"`
}

type ChargeRequest struct {
	Amount    int64
	Currency  string
	MethodRef string
}

// Gateway performs the actual charge.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Record, error)
}

// MockGateway simulates a card charge: it waits for Delay and then always
// succeeds, unless ctx ends first.
type MockGateway struct {
	Delay time.Duration
	Now   func() time.Time
}

func NewMockGateway(delay time.Duration) *MockGateway {
	return &MockGateway{Delay: delay, Now: time.Now}
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (Record, error) {
	if err := sleepOrDone(ctx, g.Delay); err != nil {
		return Record{}, fmt.Errorf("mock gateway: %w", err)
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return Record{
		ID:            "pi_" + randomID(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        "succeeded",
		Created:       now().UnixMilli(),
		PaymentMethod: req.MethodRef,
	}, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomID() string {
	b := make([]byte, 7)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ProcessorState is a copy of the sub-flow state.
type ProcessorState struct {
	Method PaymentMethod `json:"method"`
	Status PaymentStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	Data   *Record       `json:"data,omitempty"`
}

// Processor is the payment sub-flow of the payment step. Success and error
// are terminal for an attempt; a new attempt starts only after Reset, which
// selecting a payment method always performs.
type Processor struct {
	mu      sync.Mutex
	gateway Gateway
	method  PaymentMethod
	status  PaymentStatus
	errMsg  string
	data    *Record
	attempt uint64
}

func NewProcessor(gateway Gateway) *Processor {
	return &Processor{
		gateway: gateway,
		method:  MethodStripeCard,
		status:  PaymentIdle,
	}
}

// SelectMethod switches the payment tab and resets the sub-flow.
func (p *Processor) SelectMethod(m PaymentMethod) {
	p.mu.Lock()
	p.method = m
	p.mu.Unlock()

	p.Reset()
}

func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = PaymentIdle
	p.errMsg = ""
	p.data = nil
	p.attempt++
}

// Begin moves an idle processor to processing. It is split from Process so a
// caller can report "processing" before the charge runs in the background.
func (p *Processor) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.status {
	case PaymentProcessing:
		return ErrPaymentInProgress
	case PaymentSucceeded, PaymentFailed:
		return ErrAttemptFinished
	}
	if !p.method.Chargeable() {
		return ErrMethodNotChargeable
	}
	p.status = PaymentProcessing
	return nil
}

// Complete runs the charge for an attempt started with Begin.
func (p *Processor) Complete(ctx context.Context, amount int64, currency, methodRef string) (Record, error) {
	p.mu.Lock()
	attempt := p.attempt
	p.mu.Unlock()

	rec, err := p.gateway.Charge(ctx, ChargeRequest{
		Amount:    amount,
		Currency:  currency,
		MethodRef: methodRef,
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	// a Reset during the charge abandons the attempt
	if attempt != p.attempt || p.status != PaymentProcessing {
		if err != nil {
			return Record{}, err
		}
		return Record{}, ErrAttemptFinished
	}

	if err != nil {
		p.status = PaymentFailed
		p.errMsg = err.Error()
		return Record{}, err
	}
	p.status = PaymentSucceeded
	p.data = &rec
	return rec, nil
}

// Process runs one full attempt: idle, processing, then success or error.
func (p *Processor) Process(ctx context.Context, amount int64, currency, methodRef string) (Record, error) {
	if err := p.Begin(); err != nil {
		return Record{}, err
	}
	return p.Complete(ctx, amount, currency, methodRef)
}

func (p *Processor) State() ProcessorState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := ProcessorState{
		Method: p.method,
		Status: p.status,
		Error:  p.errMsg,
	}
	if p.data != nil {
		rec := *p.data
		st.Data = &rec
	}
	return st
}

func (p *Processor) Status() PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
