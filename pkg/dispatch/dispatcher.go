// Package dispatch sends action messages through channel gateways with
// retry, backoff and per-workflow rate limiting. The engine decides what
// to send; this package decides how hard to try.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fideliza/fideliza/pkg/gateways"
	"github.com/fideliza/fideliza/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRateLimited means the bucket is exhausted; the caller should
	// delay the dispatch, not fail the run.
	ErrRateLimited = errors.New("dispatch rate limited")

	// ErrDispatchFailed means the gateway rejected the send after all
	// retries. The run takes its error edge or fails.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrNoGateway means no gateway is wired for the channel.
	ErrNoGateway = errors.New("no gateway for channel")
)

const (
	maxAttempts = 3
	backoffBase = 30 * time.Second
)

type Dispatcher struct {
	gateways gateways.Gateways
	limiter  RateLimiter
	logger   *slog.Logger
	tracer   trace.Tracer

	// sleep is swapped out by tests; production uses a ctx-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option tweaks dispatcher internals.
type Option func(*Dispatcher)

// WithSleep replaces the backoff wait. Tests use it to skip real time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

func NewDispatcher(gw gateways.Gateways, limiter RateLimiter, logger *slog.Logger, tracer trace.Tracer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gateways: gw,
		limiter:  limiter,
		logger:   logger.With("module", "dispatcher"),
		tracer:   tracer,
		sleep:    sleepCtx,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result reports how a dispatch went, including how many attempts were
// burned; the engine records one RunStep per failed attempt.
type Result struct {
	Receipt  gateways.Receipt
	Attempts int
	// AttemptErrors holds the error of each failed attempt, in order.
	AttemptErrors []error
}

// Dispatch sends the message, retrying transient failures with exponential
// backoff (base 30s). Rate-limit exhaustion returns ErrRateLimited without
// consuming an attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, msg gateways.Message) (Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatch",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ChannelKey, string(msg.Channel)),
	)
	defer span.End()

	gateway := d.gateways.For(msg.Channel)
	if gateway == nil {
		err := fmt.Errorf("%w: %s", ErrNoGateway, msg.Channel)
		otelhelper.SetError(span, err)

		return Result{}, err
	}

	allowed, err := d.limiter.Allow(ctx, workflowID, string(msg.Channel))
	if err != nil {
		otelhelper.SetError(span, err)

		return Result{}, err
	}

	if !allowed {
		d.logger.InfoContext(ctx, "Dispatch rate limited",
			"workflow_id", workflowID, "channel", msg.Channel, "entity_id", msg.EntityID)

		return Result{}, ErrRateLimited
	}

	var result Result

	logger := d.logger.With("workflow_id", workflowID, "channel", msg.Channel, "entity_id", msg.EntityID)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		receipt, err := gateway.Send(ctx, msg)
		if err == nil && receipt.Accepted {
			result.Receipt = receipt

			logger.InfoContext(ctx, "Dispatch accepted",
				"provider_id", receipt.ProviderID, "attempt", attempt)

			return result, nil
		}

		if err == nil {
			err = fmt.Errorf("%w: provider did not accept", ErrDispatchFailed)
		}

		result.AttemptErrors = append(result.AttemptErrors, err)

		logger.WarnContext(ctx, "Dispatch attempt failed", "attempt", attempt, "error", err)

		if attempt == maxAttempts {
			break
		}

		// 30s, 60s, 120s...
		backoff := backoffBase * (1 << (attempt - 1))
		if err := d.sleep(ctx, backoff); err != nil {
			otelhelper.SetError(span, err)

			return result, err
		}
	}

	err = fmt.Errorf("%w after %d attempts", ErrDispatchFailed, result.Attempts)
	otelhelper.SetError(span, err)

	return result, err
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsDispatchFailed(err error) bool {
	return errors.Is(err, ErrDispatchFailed)
}
