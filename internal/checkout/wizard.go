package checkout

import (
	"sync"
	"time"
)

// Step is the position of a session in the three step checkout wizard.
type Step int

const (
	StepAddress Step = iota
	StepPayment
	StepReview
)

const DefaultAutoAdvanceDelay = 1500 * time.Millisecond

func (s Step) String() string {
	switch s {
	case StepAddress:
		return "address"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// View is a point-in-time copy of the wizard state.
type View struct {
	Step           Step         `json:"active_step"`
	StepName       string       `json:"step_name"`
	Category       Category     `json:"category"`
	Transmission   Transmission `json:"transmission"`
	Quote          Quote        `json:"quote"`
	PaymentSuccess bool         `json:"payment_success"`
	Payment        *Record      `json:"payment_data,omitempty"`
	CanAdvance     bool         `json:"can_advance"`
}

type WizardOption func(*Wizard)

// WithAutoAdvanceDelay overrides the pause between a successful payment and
// the automatic move to the review step.
func WithAutoAdvanceDelay(d time.Duration) WizardOption {
	return func(w *Wizard) {
		w.delay = d
	}
}

// WithOnAdvance registers a hook that runs after an automatic advance. It is
// called without the wizard lock held.
func WithOnAdvance(fn func(View)) WizardOption {
	return func(w *Wizard) {
		w.onAdvance = fn
	}
}

// Wizard is the checkout step state machine. The category is fixed for its
// whole lifetime; once a payment is recorded it is never cleared.
type Wizard struct {
	mu sync.Mutex

	category     Category
	transmission Transmission
	step         Step
	payment      *Record
	closed       bool

	delay     time.Duration
	timer     *time.Timer
	gen       uint64
	onAdvance func(View)
}

func NewWizard(category Category, opts ...WizardOption) *Wizard {
	w := &Wizard{
		category:     category,
		transmission: TransmissionManual,
		step:         StepAddress,
		delay:        DefaultAutoAdvanceDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrSessionClosed
	}

	switch w.step {
	case StepAddress:
		w.setStepLocked(StepPayment)
	case StepPayment:
		if w.payment == nil {
			return ErrPaymentRequired
		}
		w.setStepLocked(StepReview)
	default:
		return ErrLastStep
	}
	return nil
}

func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrSessionClosed
	}
	if w.step == StepAddress {
		return ErrFirstStep
	}
	w.setStepLocked(w.step - 1)
	return nil
}

// CanAdvance reports whether the "Next" control is enabled.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canAdvanceLocked()
}

func (w *Wizard) canAdvanceLocked() bool {
	if w.closed {
		return false
	}
	switch w.step {
	case StepAddress:
		return true
	case StepPayment:
		return w.payment != nil
	default:
		return false
	}
}

// SetTransmission changes the selected gearbox. It never moves the step.
func (w *Wizard) SetTransmission(t Transmission) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrSessionClosed
	}
	w.transmission = t
	return nil
}

// RecordPayment stores the first successful payment of the session.
func (w *Wizard) RecordPayment(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrSessionClosed
	}
	if w.payment != nil {
		return ErrAlreadyPaid
	}
	w.payment = &rec
	w.syncTimerLocked()
	return nil
}

func (w *Wizard) PaymentSuccess() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment != nil
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Category() Category {
	return w.category
}

func (w *Wizard) Quote() Quote {
	w.mu.Lock()
	defer w.mu.Unlock()
	return NewQuote(w.category, w.transmission)
}

func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Close stops a pending auto-advance. It is safe to call more than once.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	w.syncTimerLocked()
}

func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Wizard) snapshotLocked() View {
	v := View{
		Step:           w.step,
		StepName:       w.step.String(),
		Category:       w.category,
		Transmission:   w.transmission,
		Quote:          NewQuote(w.category, w.transmission),
		PaymentSuccess: w.payment != nil,
		CanAdvance:     w.canAdvanceLocked(),
	}
	if w.payment != nil {
		rec := *w.payment
		v.Payment = &rec
	}
	return v
}

func (w *Wizard) setStepLocked(s Step) {
	w.step = s
	w.syncTimerLocked()
}

// syncTimerLocked drops any pending auto-advance and arms a new one when the
// wizard sits on the payment step with a recorded payment.
func (w *Wizard) syncTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++

	if w.closed || w.step != StepPayment || w.payment == nil {
		return
	}

	gen := w.gen
	w.timer = time.AfterFunc(w.delay, func() {
		w.autoAdvance(gen)
	})
}

func (w *Wizard) autoAdvance(gen uint64) {
	w.mu.Lock()
	// a Stop that lost the race leaves a stale callback behind
	if gen != w.gen || w.closed || w.step != StepPayment || w.payment == nil {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.step = StepReview
	w.gen++
	hook := w.onAdvance
	view := w.snapshotLocked()
	w.mu.Unlock()

	if hook != nil {
		hook(view)
	}
}
