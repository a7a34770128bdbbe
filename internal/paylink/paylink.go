// Package paylink sends users to the hosted Stripe Payment Link of a course.
package paylink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"autokool/internal/checkout"
)

const baseURL = "https://buy.stripe.com/"

// one hosted link per course; unknown categories pay for category A
var links = map[checkout.Category]string{
	checkout.CategoryA: "8x2aEYewiaJW94hdTa3ZK02",
	checkout.CategoryB: "14A28s0Fs4lycgtg1i3ZK00",
	checkout.CategoryC: "eVq5kEgEqcS4a8l5mE3ZK01",
}

// LinkFor returns the Payment Link URL for a category.
func LinkFor(category checkout.Category) string {
	id, ok := links[category]
	if !ok {
		id = links[checkout.CategoryA]
	}
	return baseURL + id
}

const (
	EventButtonClick = "button_click"
	EventCategory    = "payment"
	unknownLocation  = "unknown"
)

// Click describes the control that triggered the redirect.
type Click struct {
	ButtonName string
	Location   string
	Text       string
}

// Event is the analytics record of one redirect.
type Event struct {
	Name       string            `json:"event"`
	Category   string            `json:"event_category"`
	ButtonName string            `json:"button_name"`
	Location   string            `json:"button_location"`
	Text       string            `json:"button_text"`
	URL        string            `json:"button_url"`
	Course     checkout.Category `json:"course"`
	At         time.Time         `json:"at"`
}

type Recorder interface {
	RecordClick(ctx context.Context, e Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, e Event) error

func (f RecorderFunc) RecordClick(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Dispatcher resolves the Payment Link and records the click. It never
// touches a checkout session.
type Dispatcher struct {
	recorders []Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(logger *zap.Logger, recorders ...Recorder) *Dispatcher {
	return &Dispatcher{
		recorders: recorders,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch returns the URL to redirect to. Recorder failures are logged and
// do not prevent the redirect.
func (d *Dispatcher) Dispatch(ctx context.Context, category checkout.Category, click Click) string {
	url := LinkFor(category)

	e := Event{
		Name:       EventButtonClick,
		Category:   EventCategory,
		ButtonName: click.ButtonName,
		Location:   click.Location,
		Text:       click.Text,
		URL:        url,
		Course:     category,
		At:         d.now(),
	}
	if e.ButtonName == "" {
		e.ButtonName = "payment_link_" + category.String()
	}
	if e.Location == "" {
		e.Location = unknownLocation
	}

	for _, r := range d.recorders {
		if err := r.RecordClick(ctx, e); err != nil {
			d.logger.Warn("Failed to record payment link click",
				zap.String("button_name", e.ButtonName),
				zap.String("course", category.String()),
				zap.Error(err))
		}
	}
	return url
}

// LogRecorder writes click events to the structured log.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) RecordClick(_ context.Context, e Event) error {
	r.logger.Info("Analytics event",
		zap.String("event", e.Name),
		zap.String("event_category", e.Category),
		zap.String("button_name", e.ButtonName),
		zap.String("button_location", e.Location),
		zap.String("button_text", e.Text),
		zap.String("button_url", e.URL))
	return nil
}
