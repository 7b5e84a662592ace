package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jstittsworth/player-valuation/internal/metrics"
)

// CircuitBreakerService keeps one breaker per upstream source. Breakers are created on first use
// because leaderboards and roster platforms are configured at runtime.
type CircuitBreakerService struct {
	threshold uint32
	timeout   time.Duration
	logger    *logrus.Logger
	metrics   *metrics.Recorder

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewCircuitBreakerService(threshold int, timeout time.Duration, recorder *metrics.Recorder, logger *logrus.Logger) *CircuitBreakerService {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreakerService{
		threshold: uint32(threshold),
		timeout:   timeout,
		logger:    logger,
		metrics:   recorder,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (cb *CircuitBreakerService) breaker(source string) *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if b, ok := cb.breakers[source]; ok {
		return b
	}

	threshold := cb.threshold
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Timeout:     cb.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller giving up is not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
			cb.metrics.SetBreakerState(name, int(to))
		},
	})
	cb.breakers[source] = b
	return b
}

// Execute wraps a function call with circuit breaker protection
func (cb *CircuitBreakerService) Execute(source string, fn func() (interface{}, error)) (interface{}, error) {
	if cb == nil {
		return fn()
	}
	return cb.breaker(source).Execute(fn)
}

// GetState returns the current state of a source's breaker
func (cb *CircuitBreakerService) GetState(source string) gobreaker.State {
	if cb == nil {
		return gobreaker.StateClosed
	}
	cb.mu.Lock()
	b, ok := cb.breakers[source]
	cb.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return b.State()
}

// States returns every known breaker's state
func (cb *CircuitBreakerService) States() map[string]string {
	out := map[string]string{}
	if cb == nil {
		return out
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for name, b := range cb.breakers {
		out[name] = b.State().String()
	}
	return out
}

// IsBreakerOpen reports whether err came from an open or saturated half-open breaker
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
