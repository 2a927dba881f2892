package draconic

import (
	"context"
	"errors"
	"sync/atomic"
)

// countingContext is a context.Context that cancels itself after Done() has
// been called limit times. The interpreter calls Done() once per operation,
// making this an exact operation budget.
type countingContext struct {
	context.Context
	cancel    context.CancelCauseFunc
	remaining *atomic.Int64
}

// Done returns the underlying cancellation channel. Each call decrements the
// remaining counter; once it is exhausted the context is cancelled with a
// TooManyStatements cause.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) < 0 {
		c.cancel(&LimitError{Kind: TooManyStatements, Msg: "script ran too many operations"})
	}
	return c.Context.Done()
}

// newCountingContext returns a child of parent that cancels after limit calls to Done().
//
// Precondition: limit > 0.
func newCountingContext(parent context.Context, limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancelCause(parent)
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, func() { cancel(context.Canceled) }
}

// tick spends one operation and reports why the evaluation must stop, if it must.
func tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return contextError(ctx)
	default:
		return nil
	}
}

// contextError maps a finished context onto the interpreter's error taxonomy.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	var le *LimitError
	if errors.As(cause, &le) {
		return le
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return &LimitError{Kind: Timeout, Msg: "script took too long"}
	}
	if cause != nil {
		return cause
	}
	return ctx.Err()
}
