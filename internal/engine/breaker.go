package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/taskflow/internal/retry"
)

// ErrBreakerOpen is returned for attempts rejected by an open circuit breaker.
var ErrBreakerOpen = errors.New("circuit breaker open")

// breaker is a circuit breaker shared by every worker of a run. A nil
// *breaker passes calls straight through.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(name string, threshold int, cooldown time.Duration, logger *slog.Logger) *breaker {
	if threshold <= 0 {
		return nil
	}

	return &breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0, // Don't clear counts automatically
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Only transport-level trouble counts; a logical task failure
			// arrives as a nil error. Cancellation is not the backend's fault.
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})}
}

func (b *breaker) call(fn func() (retry.Result, error)) (retry.Result, error) {
	if b == nil {
		return fn()
	}

	var res retry.Result
	_, err := b.cb.Execute(func() (interface{}, error) {
		var err error
		res, err = fn()
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Result{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	return res, err
}

func (b *breaker) state() gobreaker.State {
	if b == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}
