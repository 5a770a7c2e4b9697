package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/dwarvesf/mint-relayer/internal/baserpc"
	"github.com/dwarvesf/mint-relayer/internal/model"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

const baseRPCService = "base_rpc"

// CircuitBreakerBaseRPC wraps baserpc.IBaseRPC with circuit breaker functionality.
// An unknown receipt is an answer, not a failure, so it never trips the breaker.
type CircuitBreakerBaseRPC struct {
	wrapped        baserpc.IBaseRPC
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
	timeoutConfig  TimeoutConfig
}

// callerGoneError is the caller's own cancellation; it says nothing about upstream health.
type callerGoneError struct {
	err error
}

func (e callerGoneError) Error() string { return e.err.Error() }

func (e callerGoneError) Unwrap() error { return e.err }

// NewCircuitBreakerBaseRPCWithTimeout rejects invalid breaker settings. Non-positive
// timeouts take the defaults.
func NewCircuitBreakerBaseRPCWithTimeout(wrapped baserpc.IBaseRPC, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) (*CircuitBreakerBaseRPC, error) {
	if err := validateCircuitBreakerConfig(config); err != nil {
		return nil, errors.Wrapf(err, "%s circuit breaker", baseRPCService)
	}
	if timeoutConfig.RequestTimeout <= 0 {
		timeoutConfig.RequestTimeout = DefaultTimeoutConfig.RequestTimeout
	}
	if timeoutConfig.HealthCheckTimeout <= 0 {
		timeoutConfig.HealthCheckTimeout = DefaultTimeoutConfig.HealthCheckTimeout
	}

	cb := &CircuitBreakerBaseRPC{
		wrapped:       wrapped,
		metrics:       metrics,
		logger:        logger,
		timeoutConfig: timeoutConfig,
	}

	settings := gobreaker.Settings{
		Name:        baseRPCService,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			var gone callerGoneError
			return err == nil || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(baseRPCService, to)
		},
	}

	cb.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	return cb, nil
}

// State exposes the breaker state for health reporting.
func (cb *CircuitBreakerBaseRPC) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

func (cb *CircuitBreakerBaseRPC) Client() *ethclient.Client {
	return cb.wrapped.Client()
}

type receiptLookup struct {
	receipt  *types.Receipt
	notFound bool
}

func (cb *CircuitBreakerBaseRPC) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	result, err := cb.execute(ctx, "transaction_receipt", func(ctx context.Context) (interface{}, error) {
		receipt, err := cb.wrapped.TransactionReceipt(ctx, hash)
		if errors.Is(err, baserpc.ErrReceiptNotFound) {
			return receiptLookup{notFound: true}, nil
		}
		if err != nil {
			return nil, err
		}
		return receiptLookup{receipt: receipt}, nil
	})
	if err != nil {
		return nil, err
	}

	lookup := result.(receiptLookup)
	if lookup.notFound {
		return nil, baserpc.ErrReceiptNotFound
	}
	return lookup.receipt, nil
}

func (cb *CircuitBreakerBaseRPC) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := cb.execute(ctx, "block_number", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.BlockNumber(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

func (cb *CircuitBreakerBaseRPC) BalanceAt(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	result, err := cb.execute(ctx, "balance_at", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.BalanceAt(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Web3BigInt), nil
}

// execute runs fn through the breaker under a per-call deadline. Breaker
// rejections and deadline misses surface as baserpc.ErrUpstreamUnavailable.
// A caller that goes away gets its own context error back and the breaker
// does not count it.
func (cb *CircuitBreakerBaseRPC) execute(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		return cb.executeWithTimeout(ctx, operation, fn)
	})
	if err == nil {
		return result, nil
	}

	var gone callerGoneError
	if errors.As(err, &gone) {
		return nil, gone.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.metrics.RecordAPICall(baseRPCService, operation, "rejected", 0)
		return nil, errors.Wrap(baserpc.ErrUpstreamUnavailable, "circuit breaker is open")
	}
	if errors.Is(err, baserpc.ErrUpstreamUnavailable) {
		return nil, err
	}
	return nil, errors.Wrap(baserpc.ErrUpstreamUnavailable, err.Error())
}

func (cb *CircuitBreakerBaseRPC) executeWithTimeout(parent context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()

	timeout := cb.timeoutConfig.RequestTimeout
	if operation == "health_check" {
		timeout = cb.timeoutConfig.HealthCheckTimeout
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan struct{})
	var result interface{}
	var err error

	go func() {
		defer close(done)
		result, err = fn(ctx)
	}()

	select {
	case <-done:
		if err != nil && parent.Err() != nil {
			return nil, cb.callerGone(parent, operation, start)
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, cb.timedOut(operation, timeout, start)
		}
		duration := time.Since(start).Seconds()
		status := "success"
		if err != nil {
			status = "error"
			cb.logError(operation, duration, err)
		}
		cb.metrics.RecordAPICall(baseRPCService, operation, status, duration)
		return result, err
	case <-ctx.Done():
		if parent.Err() != nil {
			return nil, cb.callerGone(parent, operation, start)
		}
		return nil, cb.timedOut(operation, timeout, start)
	}
}

func (cb *CircuitBreakerBaseRPC) callerGone(parent context.Context, operation string, start time.Time) error {
	cb.metrics.RecordAPICall(baseRPCService, operation, "canceled", time.Since(start).Seconds())
	return callerGoneError{err: parent.Err()}
}

func (cb *CircuitBreakerBaseRPC) timedOut(operation string, timeout time.Duration, start time.Time) error {
	duration := time.Since(start).Seconds()
	cb.metrics.RecordTimeout(baseRPCService, operation)
	cb.metrics.RecordAPICall(baseRPCService, operation, "timeout", duration)
	err := fmt.Errorf("%s timeout after %v", operation, timeout)
	cb.logError(operation, duration, err)
	return err
}

func (cb *CircuitBreakerBaseRPC) logError(operation string, duration float64, err error) {
	cb.logger.Error("External API call failed", map[string]string{
		"service":    baseRPCService,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   cb.circuitBreaker.State().String(),
	})
}

// classifyError buckets errors for metrics and logging.
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case containsAny(errMsg, "timeout", "deadline exceeded", "context canceled"):
		return ErrorTypeTimeout
	case containsAny(errMsg, "network", "connection", "unreachable", "dns"):
		return ErrorTypeNetworkError
	case containsAny(errMsg, "500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"):
		return ErrorTypeServerError
	case containsAny(errMsg, "400", "401", "403", "404", "429", "bad request", "unauthorized", "forbidden", "rate limit"):
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	return nil
}
