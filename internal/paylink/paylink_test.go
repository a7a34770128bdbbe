package paylink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"autokool/internal/checkout"
)

func TestLinkFor(t *testing.T) {
	tests := []struct {
		category checkout.Category
		want     string
	}{
		{checkout.CategoryA, "https://buy.stripe.com/8x2aEYewiaJW94hdTa3ZK02"},
		{checkout.CategoryB, "https://buy.stripe.com/14A28s0Fs4lycgtg1i3ZK00"},
		{checkout.CategoryC, "https://buy.stripe.com/eVq5kEgEqcS4a8l5mE3ZK01"},
		{checkout.CategoryDefault, "https://buy.stripe.com/8x2aEYewiaJW94hdTa3ZK02"},
		{checkout.Category("category-x"), "https://buy.stripe.com/8x2aEYewiaJW94hdTa3ZK02"},
	}
	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LinkFor(tt.category))
		})
	}
}

func TestDispatcher_RecordsEventBeforeRedirect(t *testing.T) {
	var got []Event
	rec := RecorderFunc(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	d := NewDispatcher(zap.NewNop(), rec)

	url := d.Dispatch(context.Background(), checkout.CategoryB, Click{
		ButtonName: "quick_decision_manual",
		Location:   "category_b_page",
		Text:       "Quick Decision: Manual",
	})

	assert.Equal(t, "https://buy.stripe.com/14A28s0Fs4lycgtg1i3ZK00", url)
	require.Len(t, got, 1)
	assert.Equal(t, EventButtonClick, got[0].Name)
	assert.Equal(t, "payment", got[0].Category)
	assert.Equal(t, "quick_decision_manual", got[0].ButtonName)
	assert.Equal(t, "category_b_page", got[0].Location)
	assert.Equal(t, url, got[0].URL)
	assert.Equal(t, checkout.CategoryB, got[0].Course)
}

func TestDispatcher_Defaults(t *testing.T) {
	var got Event
	d := NewDispatcher(zap.NewNop(), RecorderFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	}))

	d.Dispatch(context.Background(), checkout.CategoryC, Click{})
	assert.Equal(t, "payment_link_category-c", got.ButtonName)
	assert.Equal(t, "unknown", got.Location)
}

func TestDispatcher_RecorderFailureDoesNotBlock(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var second bool
	d := NewDispatcher(zap.New(core),
		RecorderFunc(func(context.Context, Event) error { return errors.New("db down") }),
		RecorderFunc(func(context.Context, Event) error { second = true; return nil }),
	)

	url := d.Dispatch(context.Background(), checkout.CategoryA, Click{})
	assert.Equal(t, "https://buy.stripe.com/8x2aEYewiaJW94hdTa3ZK02", url)
	assert.True(t, second)
	assert.Equal(t, 1, logs.FilterMessage("Failed to record payment link click").Len())
}

func TestLogRecorder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewDispatcher(zap.NewNop(), NewLogRecorder(zap.New(core)))

	d.Dispatch(context.Background(), checkout.CategoryA, Click{ButtonName: "hero_cta", Location: "hero"})

	entries := logs.FilterMessage("Analytics event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hero_cta", entries[0].ContextMap()["button_name"])
	assert.Equal(t, "button_click", entries[0].ContextMap()["event"])
}
