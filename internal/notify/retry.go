package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
)

// RetryPolicy bounds retries of a failed send
type RetryPolicy struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// DefaultRetryPolicy returns a single attempt. Raising MaxAttempts turns on
// exponential backoff starting at InitialBackoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxBackoff > 0 && p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// permanentError marks an error that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so WithRetry gives up immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type retryDispatcher struct {
	next   Dispatcher
	policy RetryPolicy
}

// WithRetry decorates d with at most policy.MaxAttempts attempts
func WithRetry(d Dispatcher, policy RetryPolicy) Dispatcher {
	return &retryDispatcher{next: d, policy: policy.normalized()}
}

// Send tries the wrapped dispatcher with exponential backoff between attempts
func (r *retryDispatcher) Send(ctx context.Context, message string) error {
	log := logger.WithComponent("notify")
	var lastErr error
	backoff := r.policy.InitialBackoff

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("retrying notification")

			metrics.NotificationRetries.Inc()

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * r.policy.Multiplier)
			if r.policy.MaxBackoff > 0 && backoff > r.policy.MaxBackoff {
				backoff = r.policy.MaxBackoff
			}
		}

		err := r.next.Send(ctx, message)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("notification attempt failed")

		// Check for non-retryable errors
		if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("notification failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}
