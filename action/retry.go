package action

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-async/config"
	"github.com/amp-labs/amp-async/loop"
)

// RetryPolicy controls Retry. Backoff grows by Multiplier after each failed
// attempt, capped at MaxBackoff when that is positive.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration

	// ShouldRetry decides whether an error is worth another attempt. Nil
	// retries every error.
	ShouldRetry func(err error) bool
}

// PolicyFromConfig builds a RetryPolicy from the retry section of the config.
func PolicyFromConfig(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		Attempts:       cfg.Attempts,
		InitialBackoff: cfg.InitialBackoff,
		Multiplier:     cfg.Multiplier,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// Backoff returns the wait before attempt n+1, after n failures.
func (p RetryPolicy) Backoff(n int) time.Duration {
	backoff := float64(p.InitialBackoff)

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	for i := 1; i < n; i++ {
		backoff *= mult

		if p.MaxBackoff > 0 && backoff >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}

	return time.Duration(backoff)
}

// Retry runs a fresh action from factory until one succeeds or the policy
// gives up. The attempt number starts at 1. Cancelling the Retry cancels the
// running attempt and any pending backoff.
func Retry(l *loop.Loop, name string, factory func(attempt int) Action, policy RetryPolicy) *Base {
	return New(l, name, func(retry *Base) {
		var attempt func(n int)

		attempt = func(n int) {
			child := factory(n)

			child.OnSuccess(retry.EmitSuccess)
			child.OnError(func(err error) {
				giveUp := n >= policy.Attempts ||
					(policy.ShouldRetry != nil && !policy.ShouldRetry(err))
				if giveUp {
					retry.EmitError(fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, n, err))

					return
				}

				retry.Logger().Debug("retrying action", "attempt", n, "error", err)

				stop := l.PostDelayed(policy.Backoff(n), func() {
					if !retry.Done() {
						attempt(n + 1)
					}
				})

				retry.OnCancel(func() { stop() })
			})

			retry.AddAction(child, NoBubble())
		}

		attempt(1)
	})
}
