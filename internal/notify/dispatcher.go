package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
)

// Dispatcher delivers a formatted alert message
type Dispatcher interface {
	Send(ctx context.Context, message string) error
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(ctx context.Context, message string) error

// Send calls f
func (f DispatcherFunc) Send(ctx context.Context, message string) error { return f(ctx, message) }

// DeliveryResult is what the SMS gateway reports for an accepted message
type DeliveryResult struct {
	ID     string
	Status string
}

// Gateway is a third-party messaging provider
type Gateway interface {
	SendMessage(ctx context.Context, body, from, to string) (DeliveryResult, error)
}

var (
	ErrMissingSender    = errors.New("sender number is required")
	ErrMissingRecipient = errors.New("recipient number is required")
	ErrEmptyMessage     = errors.New("message cannot be empty")
)

// SMSDispatcher sends every message from one number to one operator number
type SMSDispatcher struct {
	gateway Gateway
	from    string
	to      string
}

// NewSMSDispatcher creates a dispatcher routing through gateway
func NewSMSDispatcher(gateway Gateway, from, to string) (*SMSDispatcher, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, ErrMissingSender
	}
	if to == "" {
		return nil, ErrMissingRecipient
	}
	return &SMSDispatcher{gateway: gateway, from: from, to: to}, nil
}

// Send delivers message through the gateway
func (d *SMSDispatcher) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return Permanent(ErrEmptyMessage)
	}

	log := logger.WithComponent("notify")
	start := time.Now()

	result, err := d.gateway.SendMessage(ctx, message, d.from, d.to)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	log.Info().
		Str("message_id", result.ID).
		Str("delivery_status", result.Status).
		Str("to", d.to).
		Msg("sms accepted by gateway")
	return nil
}

// LogDispatcher only logs messages. Used when no SMS gateway is configured.
type LogDispatcher struct{}

// NewLogDispatcher creates a dry-run dispatcher
func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

// Send logs the message
func (LogDispatcher) Send(_ context.Context, message string) error {
	log := logger.WithComponent("notify")
	log.Warn().Str("body", message).Msg("sms gateway not configured, alert logged only")
	return nil
}
