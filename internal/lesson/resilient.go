package lesson

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"
)

// ResilientGenerator wraps a Generator with a circuit breaker, retry with
// exponential backoff and a concurrency bulkhead.
type ResilientGenerator struct {
	next           Generator
	circuitBreaker circuitbreaker.CircuitBreaker[string]
	retrier        retry.Retry[string]
	bulkhead       bulkhead.Bulkhead[string]
}

// ResilientConfig tunes the wrapper. Zero values take the defaults.
type ResilientConfig struct {
	MaxAttempts   int           // default 3
	InitialDelay  time.Duration // default 1s
	MaxDelay      time.Duration // default 10s
	MaxConcurrent int           // default 5
	Logger        *zap.Logger
}

func NewResilientGenerator(next Generator, cfg ResilientConfig) *ResilientGenerator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResilientGenerator{
		next: next,
		circuitBreaker: circuitbreaker.New[string](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("lesson generator circuit breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		retrier: retry.New[string](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
		bulkhead: bulkhead.New[string](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxConcurrent * 2,
			QueueTimeout:  30 * time.Second,
		}),
	}
}

func (g *ResilientGenerator) Generate(ctx context.Context, topic, prompt string) (string, error) {
	if err := checkArgs(topic, prompt); err != nil {
		return "", err
	}

	operation := func(ctx context.Context) (string, error) {
		return g.bulkhead.Execute(ctx, func(ctx context.Context) (string, error) {
			return g.next.Generate(ctx, topic, prompt)
		})
	}

	return g.circuitBreaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return g.retrier.Do(ctx, operation)
	})
}

// isRetryable retries throttling and upstream 5xx answers only.
func isRetryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
