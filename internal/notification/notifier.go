// Package notification provides alert delivery to external channels
// (Discord, Telegram, webhooks, or the process log).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Title and Message carry the
// rendered text; the remaining fields are for structured channels.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`

	Symbol  string    `json:"symbol,omitempty"`
	State   string    `json:"state,omitempty"`
	Signals []string  `json:"signals,omitempty"`
	At      time.Time `json:"ts"`
}

// Text is the plain-text rendering used by channels without a title field.
func (a Alert) Text() string {
	if a.Title == "" {
		return a.Message
	}
	if a.Message == "" {
		return a.Title
	}
	return a.Title + "\n" + a.Message
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all backends. A failing backend does not stop
// delivery to the rest; failures are joined into one error.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of backends.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] %s failed: %v", n.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Result reports the outcome of one delivery attempt.
type Result struct {
	Notifier string
	OK       bool
	Err      error
	Elapsed  time.Duration
}

// Deliver sends alert through n and reports the outcome instead of failing.
// A panicking backend is recovered and reported as an error.
func Deliver(ctx context.Context, n Notifier, alert Alert) (res Result) {
	res.Notifier = n.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Err = fmt.Errorf("notification: %s panicked: %v", res.Notifier, r)
		}
		res.Elapsed = time.Since(start)
	}()

	if err := n.Send(ctx, alert); err != nil {
		res.Err = err
		return res
	}
	res.OK = true
	return res
}
