package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingGateway struct {
	err error
}

func (g failingGateway) Charge(context.Context, ChargeRequest) (Record, error) {
	return Record{}, g.err
}

func TestMockGateway_Charge(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &MockGateway{Delay: 20 * time.Millisecond, Now: func() time.Time { return fixed }}

	start := time.Now()
	rec, err := g.Charge(context.Background(), ChargeRequest{Amount: 10000, Currency: "eur", MethodRef: "pm_123"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.True(t, strings.HasPrefix(rec.ID, "pi_"))
	assert.Equal(t, int64(10000), rec.Amount)
	assert.Equal(t, "eur", rec.Currency)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, "pm_123", rec.PaymentMethod)
	assert.Equal(t, fixed.UnixMilli(), rec.Created)
}

func TestMockGateway_UniqueIDs(t *testing.T) {
	g := NewMockGateway(0)
	a, err := g.Charge(context.Background(), ChargeRequest{})
	require.NoError(t, err)
	b, err := g.Charge(context.Background(), ChargeRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMockGateway_Cancelled(t *testing.T) {
	g := NewMockGateway(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Charge(ctx, ChargeRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessor_Success(t *testing.T) {
	p := NewProcessor(NewMockGateway(time.Millisecond))
	assert.Equal(t, PaymentIdle, p.Status())

	rec, err := p.Process(context.Background(), 10000, "eur", "pm_1")
	require.NoError(t, err)

	st := p.State()
	assert.Equal(t, PaymentSucceeded, st.Status)
	assert.Equal(t, rec, *st.Data)
	assert.Empty(t, st.Error)
}

func TestProcessor_StatusWhileProcessing(t *testing.T) {
	p := NewProcessor(NewMockGateway(50 * time.Millisecond))

	require.NoError(t, p.Begin())
	assert.Equal(t, PaymentProcessing, p.Status())
	assert.ErrorIs(t, p.Begin(), ErrPaymentInProgress)

	_, err := p.Complete(context.Background(), 10000, "eur", "pm_1")
	require.NoError(t, err)
	assert.Equal(t, PaymentSucceeded, p.Status())
}

func TestProcessor_Error(t *testing.T) {
	declined := errors.New("card declined")
	p := NewProcessor(failingGateway{err: declined})

	_, err := p.Process(context.Background(), 10000, "eur", "pm_1")
	assert.ErrorIs(t, err, declined)

	st := p.State()
	assert.Equal(t, PaymentFailed, st.Status)
	assert.Equal(t, "card declined", st.Error)
	assert.Nil(t, st.Data)
}

func TestProcessor_TerminalUntilReset(t *testing.T) {
	p := NewProcessor(NewMockGateway(0))

	_, err := p.Process(context.Background(), 10000, "eur", "pm_1")
	require.NoError(t, err)

	_, err = p.Process(context.Background(), 10000, "eur", "pm_1")
	assert.ErrorIs(t, err, ErrAttemptFinished)

	p.SelectMethod(MethodCreditCard)
	st := p.State()
	assert.Equal(t, PaymentIdle, st.Status)
	assert.Equal(t, MethodCreditCard, st.Method)
	assert.Nil(t, st.Data)

	_, err = p.Process(context.Background(), 10000, "eur", "pm_2")
	assert.NoError(t, err)
}

func TestProcessor_SelectSameMethodStillResets(t *testing.T) {
	p := NewProcessor(failingGateway{err: errors.New("boom")})
	_, _ = p.Process(context.Background(), 1, "eur", "pm")
	require.Equal(t, PaymentFailed, p.Status())

	p.SelectMethod(MethodStripeCard)
	assert.Equal(t, PaymentIdle, p.Status())
	assert.Empty(t, p.State().Error)
}

func TestProcessor_BankTransferNotChargeable(t *testing.T) {
	p := NewProcessor(NewMockGateway(0))
	p.SelectMethod(MethodBankTransfer)

	_, err := p.Process(context.Background(), 10000, "eur", "pm_1")
	assert.ErrorIs(t, err, ErrMethodNotChargeable)
	assert.Equal(t, PaymentIdle, p.Status())
}

func TestProcessor_ResetDuringChargeAbandonsAttempt(t *testing.T) {
	p := NewProcessor(NewMockGateway(30 * time.Millisecond))
	require.NoError(t, p.Begin())

	done := make(chan error, 1)
	go func() {
		_, err := p.Complete(context.Background(), 10000, "eur", "pm_1")
		done <- err
	}()
	p.SelectMethod(MethodCreditCard)

	assert.ErrorIs(t, <-done, ErrAttemptFinished)
	assert.Equal(t, PaymentIdle, p.Status())
	assert.Nil(t, p.State().Data)
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("bankTransfer")
	require.NoError(t, err)
	assert.False(t, m.Chargeable())

	_, err = ParsePaymentMethod("cash")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}
