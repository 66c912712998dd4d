// Package budget implements the expensive-function budget of a render.
//
// A broad category query must report itself through Counter exactly once
// before it runs. The counter belongs to the host: it decides how many
// expensive calls a single render may make and fails the call with
// ErrLimitExceeded once the budget is spent.
package budget

import (
	"context"
	"errors"
	"sync"
)

// DefaultLimit matches MediaWiki's $wgExpensiveParserFunctionLimit
const DefaultLimit = 100

// ErrLimitExceeded is returned when a render has spent its expensive budget
var ErrLimitExceeded = errors.New("too many expensive function calls")

// Counter receives the expensive-call signal
type Counter interface {
	IncrementExpensive(ctx context.Context) error
}

// CounterFunc adapts a function to Counter
type CounterFunc func(ctx context.Context) error

// IncrementExpensive calls f
func (f CounterFunc) IncrementExpensive(ctx context.Context) error {
	return f(ctx)
}

// IsLimitExceeded returns true if the error is ErrLimitExceeded
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

// Limited is an in-process budget for one render
type Limited struct {
	mu    sync.Mutex
	limit int
	count int
}

// NewLimited creates a budget allowing limit expensive calls.
// A non-positive limit disables enforcement but still counts.
func NewLimited(limit int) *Limited {
	return &Limited{limit: limit}
}

// IncrementExpensive records one expensive call
func (l *Limited) IncrementExpensive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.limit > 0 && l.count > l.limit {
		return ErrLimitExceeded
	}
	return nil
}

// Count returns the number of expensive calls recorded so far
func (l *Limited) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Limit returns the configured limit
func (l *Limited) Limit() int {
	return l.limit
}
