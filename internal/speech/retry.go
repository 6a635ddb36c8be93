package speech

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/pkg/tokenizer"
)

type haltKey struct{}

// WithHalt attaches a cancellation signal that stops further retries without
// aborting a provider call that is already in flight.
func WithHalt(ctx context.Context, halt <-chan struct{}) context.Context {
	return context.WithValue(ctx, haltKey{}, halt)
}

func haltFrom(ctx context.Context) <-chan struct{} {
	halt, _ := ctx.Value(haltKey{}).(<-chan struct{})
	return halt
}

func halted(halt <-chan struct{}) bool {
	if halt == nil {
		return false
	}
	select {
	case <-halt:
		return true
	default:
		return false
	}
}

var errHalted = errors.New("halted")

// backoff returns the delay before retry n (1-based).
func (o *Orchestrator) backoff(n int) time.Duration {
	d := float64(o.cfg.BackoffBase) * math.Pow(o.cfg.BackoffFactor, float64(n-1))
	return time.Duration(d)
}

func sleep(ctx context.Context, halt <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		if halted(halt) {
			return errHalted
		}
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-halt:
		return errHalted
	case <-timer.C:
		return nil
	}
}

type dispatchResult struct {
	success  llm.Success
	provider llm.Descriptor
	attempts int
}

// dispatch resolves a provider and sends req, retrying transient failures.
// Exhaustion and non-transient failures surface as failKind.
func (o *Orchestrator) dispatch(ctx context.Context, kind llm.Kind, req llm.ChatRequest, failKind Kind) (*dispatchResult, error) {
	adapter, desc, err := o.providers.Resolve(kind)
	if err != nil {
		return nil, registryError(err)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = o.cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = o.cfg.Temperature
	}

	promptText := req.System + "\n" + joinTurns(req.Turns)
	slog.Debug("dispatching prompt", "provider", desc.Kind,
		"prompt_chars", len(promptText), "estimated_tokens", tokenizer.Estimate(promptText))

	halt := haltFrom(ctx)
	var last *llm.Failure
	attempts := 0
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.backoff(attempt)
			slog.Info("retrying provider call",
				"provider", desc.Kind, "attempt", attempt+1, "delay", delay, "last_failure", last.Kind)
			if err := sleep(ctx, halt, delay); err != nil {
				return nil, stopped(err, attempts, last)
			}
		}
		if halted(halt) {
			return nil, stopped(errHalted, attempts, last)
		}

		attempts++
		res := adapter.Send(ctx, req)
		if res.OK() {
			return &dispatchResult{success: *res.Success, provider: desc, attempts: attempts}, nil
		}

		last = res.Failure
		slog.Warn("provider call failed",
			"provider", desc.Kind, "attempt", attempts, "kind", last.Kind, "error", last.Message)
		if !last.Kind.Transient() || ctx.Err() != nil {
			break
		}
	}

	if halted(halt) {
		return nil, stopped(errHalted, attempts, last)
	}
	return nil, &Error{
		Kind:     failKind,
		Message:  last.Error(),
		Attempts: attempts,
		Failure:  last,
	}
}

func stopped(err error, attempts int, last *llm.Failure) *Error {
	if errors.Is(err, errHalted) {
		return &Error{Kind: KindCancelled, Message: "cancelled by caller", Attempts: attempts, Failure: last}
	}
	return &Error{Kind: KindCancelled, Message: err.Error(), Attempts: attempts, Failure: last, Cause: err}
}

func registryError(err error) *Error {
	if errors.Is(err, llm.ErrNoProviderConfigured) {
		return &Error{Kind: KindNoProviderConfigured, Message: err.Error(), Cause: err}
	}
	return &Error{Kind: KindNoProviderAvailable, Message: err.Error(), Cause: err}
}

func joinTurns(turns []llm.Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Text
	}
	return strings.Join(parts, "\n")
}
