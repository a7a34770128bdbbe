package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PaymentRecorder is the part of the session the payment sub-flow may touch.
type PaymentRecorder interface {
	RecordPayment(rec Record) error
}

type SessionConfig struct {
	AutoAdvanceDelay  time.Duration
	ChargeQuotedPrice bool
	Currency          string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AutoAdvanceDelay: DefaultAutoAdvanceDelay,
		Currency:         DefaultCurrency,
	}
}

// Order is what a paid session turns into when the user places it.
type Order struct {
	SessionID    string       `json:"session_id"`
	Category     Category     `json:"category"`
	Transmission Transmission `json:"transmission"`
	Price        Price        `json:"price"`
	Address      Address      `json:"address"`
	GiftEmail    string       `json:"gift_email,omitempty"`
	Instructor   string       `json:"instructor,omitempty"`
	PaymentID    string       `json:"payment_id"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	CreatedAt    time.Time    `json:"created_at"`
}

type SessionView struct {
	ID            string         `json:"id"`
	Wizard        View           `json:"wizard"`
	Payment       ProcessorState `json:"payment"`
	Address       Address        `json:"address"`
	AddressErrors FieldErrors    `json:"address_errors,omitempty"`
	Gift          Gift           `json:"gift"`
	GiftErrors    FieldErrors    `json:"gift_errors,omitempty"`
	Instructor    *Instructor    `json:"instructor,omitempty"`
}

// Session is one user's pass through the checkout wizard. It lives in memory
// only and is gone after Close.
type Session struct {
	ID        string
	CreatedAt time.Time

	wizard     *Wizard
	processor  *Processor
	instructor *Instructor
	cfg        SessionConfig
	logger     *zap.Logger

	mu       sync.Mutex
	address  Address
	gift     Gift
	lastSeen time.Time
	closed   bool

	// placeMu serializes PlaceOrder so a session yields one order.
	placeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(id string, category Category, instructorID string, gateway Gateway, cfg SessionConfig, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s := &Session{
		ID:        id,
		CreatedAt: now,
		processor: NewProcessor(gateway),
		cfg:       cfg,
		logger:    logger.With(zap.String("session_id", id)),
		lastSeen:  now,
		ctx:       ctx,
		cancel:    cancel,
	}
	if in, ok := LookupInstructor(instructorID); ok {
		s.instructor = &in
	}

	s.wizard = NewWizard(category,
		WithAutoAdvanceDelay(cfg.AutoAdvanceDelay),
		WithOnAdvance(func(v View) {
			s.logger.Info("Checkout advanced to review after payment",
				zap.String("payment_id", v.Payment.ID))
		}),
	)
	return s
}

func (s *Session) Wizard() *Wizard {
	s.touch()
	return s.wizard
}

func (s *Session) SelectMethod(m PaymentMethod) error {
	if s.wizard.Closed() {
		return ErrSessionClosed
	}
	s.touch()
	s.processor.SelectMethod(m)
	return nil
}

// Pay starts a charge in the background and returns the sub-flow state,
// which is "processing" on success. The result reaches the wizard through
// RecordPayment.
func (s *Session) Pay(methodRef string) (ProcessorState, error) {
	s.touch()

	if s.wizard.Closed() {
		return ProcessorState{}, ErrSessionClosed
	}
	if s.wizard.Step() != StepPayment {
		return ProcessorState{}, ErrNotOnPayment
	}
	if s.wizard.PaymentSuccess() {
		return ProcessorState{}, ErrAlreadyPaid
	}
	if methodRef == "" {
		return ProcessorState{}, ErrMissingMethodRef
	}
	// wg.Add must not race with the Wait in Close.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ProcessorState{}, ErrSessionClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.processor.Begin(); err != nil {
		s.wg.Done()
		return ProcessorState{}, err
	}

	amount := DemoChargeAmount
	if s.cfg.ChargeQuotedPrice {
		amount = s.wizard.Quote().Price.MinorUnits()
	}
	currency := s.cfg.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	go s.charge(s.wizard, amount, currency, methodRef)

	return s.processor.State(), nil
}

func (s *Session) charge(recorder PaymentRecorder, amount int64, currency, methodRef string) {
	defer s.wg.Done()

	rec, err := s.processor.Complete(s.ctx, amount, currency, methodRef)
	if err != nil {
		s.logger.Warn("Payment attempt failed",
			zap.Int64("amount", amount),
			zap.String("currency", currency),
			zap.Error(err))
		return
	}

	if err := recorder.RecordPayment(rec); err != nil {
		s.logger.Warn("Payment not recorded on session",
			zap.String("payment_id", rec.ID),
			zap.Error(err))
		return
	}
	s.logger.Info("Payment succeeded",
		zap.String("payment_id", rec.ID),
		zap.Int64("amount", rec.Amount))
}

// SetAddress stores the form and returns the inline field errors.
func (s *Session) SetAddress(a Address) (FieldErrors, error) {
	if s.wizard.Closed() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	s.address = a
	return a.Validate(), nil
}

func (s *Session) SetGift(g Gift) (FieldErrors, error) {
	if s.wizard.Closed() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	s.gift = g.Normalize()
	return s.gift.Validate(), nil
}

// PlaceOrder turns a paid session on the review step into an order, hands
// it to persist and closes the session once persist succeeds. When persist
// fails the session stays open so the caller can retry. A nil persist only
// closes the session.
func (s *Session) PlaceOrder(persist func(Order) error) (Order, error) {
	s.placeMu.Lock()
	defer s.placeMu.Unlock()

	if s.wizard.Closed() {
		return Order{}, ErrSessionClosed
	}
	v := s.wizard.Snapshot()
	if v.Step != StepReview || v.Payment == nil {
		return Order{}, ErrNotReviewable
	}

	s.mu.Lock()
	order := Order{
		SessionID:    s.ID,
		Category:     v.Category,
		Transmission: v.Transmission,
		Price:        v.Quote.Price,
		Address:      s.address,
		GiftEmail:    s.gift.Email,
		PaymentID:    v.Payment.ID,
		Amount:       v.Payment.Amount,
		Currency:     v.Payment.Currency,
		CreatedAt:    time.Now(),
	}
	if s.instructor != nil {
		order.Instructor = s.instructor.Name
	}
	s.mu.Unlock()

	if persist != nil {
		if err := persist(order); err != nil {
			return Order{}, err
		}
	}

	s.Close()
	return order, nil
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	v := SessionView{
		ID:            s.ID,
		Address:       s.address,
		AddressErrors: s.address.Validate(),
		Gift:          s.gift,
		GiftErrors:    s.gift.Validate(),
		Instructor:    s.instructor,
	}
	s.mu.Unlock()

	v.Wizard = s.wizard.Snapshot()
	v.Payment = s.processor.State()
	return v
}

// Close cancels a running charge and a pending auto-advance, then waits for
// the background charge to return.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wizard.Close()
	s.wg.Wait()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
