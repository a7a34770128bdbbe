package checkout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, category Category, gateway Gateway, cfg SessionConfig) *Session {
	t.Helper()
	s := NewSession("sess-1", category, "igor", gateway, cfg, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func fastConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.AutoAdvanceDelay = 20 * time.Millisecond
	return cfg
}

func TestSession_PayAndAutoAdvance(t *testing.T) {
	s := newTestSession(t, CategoryB, NewMockGateway(10*time.Millisecond), fastConfig())

	assert.Equal(t, "700€", s.View().Wizard.Quote.Label)
	require.NoError(t, s.Wizard().Next())

	st, err := s.Pay("pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, PaymentProcessing, st.Status)
	assert.Equal(t, MethodStripeCard, st.Method)

	require.Eventually(t, func() bool {
		return s.Wizard().Step() == StepReview
	}, 2*time.Second, 5*time.Millisecond)

	v := s.View()
	assert.True(t, v.Wizard.PaymentSuccess)
	require.NotNil(t, v.Wizard.Payment)
	assert.Equal(t, int64(10000), v.Wizard.Payment.Amount)
	assert.Equal(t, "eur", v.Wizard.Payment.Currency)
	assert.Equal(t, "pm_card_visa", v.Wizard.Payment.PaymentMethod)
	assert.Equal(t, PaymentSucceeded, v.Payment.Status)
	assert.Equal(t, "Igor Nagorski", v.Instructor.Name)
}

func TestSession_ChargeQuotedPrice(t *testing.T) {
	cfg := fastConfig()
	cfg.ChargeQuotedPrice = true
	s := newTestSession(t, CategoryB, NewMockGateway(0), cfg)

	require.NoError(t, s.Wizard().SetTransmission(TransmissionAutomatic))
	require.NoError(t, s.Wizard().Next())
	_, err := s.Pay("pm_1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Wizard().PaymentSuccess()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(84000), s.View().Wizard.Payment.Amount)
}

func TestSession_TabSwitchKeepsPayment(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.AutoAdvanceDelay = time.Hour
	s := newTestSession(t, CategoryA, NewMockGateway(0), cfg)

	require.NoError(t, s.Wizard().Next())
	_, err := s.Pay("pm_1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Wizard().PaymentSuccess()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SelectMethod(MethodCreditCard))

	v := s.View()
	assert.Equal(t, PaymentIdle, v.Payment.Status)
	assert.Equal(t, MethodCreditCard, v.Payment.Method)
	assert.True(t, v.Wizard.PaymentSuccess)
	assert.True(t, v.Wizard.CanAdvance)

	_, err = s.Pay("pm_2")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestSession_PayRejected(t *testing.T) {
	s := newTestSession(t, CategoryA, NewMockGateway(0), fastConfig())

	_, err := s.Pay("pm_1")
	assert.ErrorIs(t, err, ErrNotOnPayment)

	require.NoError(t, s.Wizard().Next())
	_, err = s.Pay("")
	assert.ErrorIs(t, err, ErrMissingMethodRef)

	require.NoError(t, s.SelectMethod(MethodBankTransfer))
	_, err = s.Pay("pm_1")
	assert.ErrorIs(t, err, ErrMethodNotChargeable)
}

func TestSession_PlaceOrder(t *testing.T) {
	s := newTestSession(t, CategoryC, NewMockGateway(0), fastConfig())

	_, err := s.PlaceOrder(nil)
	assert.ErrorIs(t, err, ErrNotReviewable)

	errs, err := s.SetAddress(Address{
		FirstName: "Mari", LastName: "Tamm", Phone: "+3725550000",
		Email: "mari@example.ee", Address1: "Narva mnt 5", City: "Tallinn",
		State: "Harju", Zip: "10117", Country: "EE",
	})
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = s.SetGift(Gift{Enabled: true, Email: " friend@example.ee "})
	require.NoError(t, err)
	assert.Empty(t, errs)

	require.NoError(t, s.Wizard().Next())
	_, err = s.Pay("pm_1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Wizard().Step() == StepReview
	}, time.Second, 5*time.Millisecond)

	order, err := s.PlaceOrder(nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", order.SessionID)
	assert.Equal(t, CategoryC, order.Category)
	assert.Equal(t, Price(150), order.Price)
	assert.Equal(t, "Tallinn", order.Address.City)
	assert.Equal(t, "friend@example.ee", order.GiftEmail)
	assert.Equal(t, "Igor Nagorski", order.Instructor)
	assert.NotEmpty(t, order.PaymentID)

	_, err = s.PlaceOrder(nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.SetAddress(Address{})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SelectMethod(MethodStripeCard), ErrSessionClosed)
}

func TestSession_AddressNeverBlocksNext(t *testing.T) {
	s := newTestSession(t, CategoryA, NewMockGateway(0), fastConfig())

	errs, err := s.SetAddress(Address{Email: "not-an-email"})
	require.NoError(t, err)
	assert.Equal(t, "invalid email", errs["email"])
	assert.Equal(t, "required", errs["first_name"])

	require.NoError(t, s.Wizard().Next())
	assert.Equal(t, StepPayment, s.Wizard().Step())
}

func TestSession_CloseCancelsCharge(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession("sess-2", CategoryA, "", NewMockGateway(time.Hour), fastConfig(), zap.NewNop())
	require.NoError(t, s.Wizard().Next())

	_, err := s.Pay("pm_1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	v := s.View()
	assert.Equal(t, PaymentFailed, v.Payment.Status)
	assert.Contains(t, v.Payment.Error, "context canceled")
	assert.False(t, v.Wizard.PaymentSuccess)
	assert.Nil(t, v.Instructor)
}

func reviewableSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t, CategoryA, NewMockGateway(0), fastConfig())
	require.NoError(t, s.Wizard().Next())
	require.NoError(t, s.Wizard().RecordPayment(Record{ID: "pay_1", Amount: 10000, Currency: "eur"}))
	require.Eventually(t, func() bool {
		return s.Wizard().Step() == StepReview
	}, time.Second, 5*time.Millisecond)
	return s
}

func TestSession_PlaceOrderPersistFailureKeepsSession(t *testing.T) {
	s := reviewableSession(t)

	_, err := s.PlaceOrder(func(Order) error { return errors.New("db down") })
	assert.EqualError(t, err, "db down")
	assert.False(t, s.Wizard().Closed())
	assert.Equal(t, StepReview, s.Wizard().Step())

	var persisted Order
	order, err := s.PlaceOrder(func(o Order) error {
		persisted = o
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", order.PaymentID)
	assert.Equal(t, order, persisted)
	assert.True(t, s.Wizard().Closed())
}

func TestSession_PlaceOrderOnce(t *testing.T) {
	s := reviewableSession(t)

	var (
		mu        sync.Mutex
		persisted int
		placed    int
		closed    int
		wg        sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PlaceOrder(func(Order) error {
				mu.Lock()
				persisted++
				mu.Unlock()
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, ErrSessionClosed):
				closed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, persisted)
	assert.Equal(t, 1, placed)
	assert.Equal(t, 7, closed)
}

func TestSession_PayRacingClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 50; i++ {
		s := NewSession("sess-race", CategoryA, "", NewMockGateway(time.Millisecond), fastConfig(), zap.NewNop())
		require.NoError(t, s.Wizard().Next())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Pay("pm_1"); err != nil {
				assert.ErrorIs(t, err, ErrSessionClosed)
			}
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
		wg.Wait()
		s.Close()

		_, err := s.Pay("pm_1")
		assert.ErrorIs(t, err, ErrSessionClosed)
	}
}
