package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/albapepper/matchsheet/internal/payload"
)

// Factory builds an Appender. It runs on first use.
type Factory func(ctx context.Context) (Appender, error)

// Lazy defers building the real Appender until the first append, so a
// missing credential fails that request instead of process startup. A
// successful build is kept; a failed one is retried on the next call.
type Lazy struct {
	mu       sync.Mutex
	factory  Factory
	appender Appender
}

// NewLazy wraps factory.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Append builds the underlying Appender if needed and delegates to it.
func (l *Lazy) Append(ctx context.Context, sheetID, rangeExpr string, table payload.Table) (Updates, error) {
	a, err := l.get(ctx)
	if err != nil {
		return Updates{}, err
	}
	return a.Append(ctx, sheetID, rangeExpr, table)
}

func (l *Lazy) get(ctx context.Context) (Appender, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appender != nil {
		return l.appender, nil
	}
	// The client outlives this request; only its values are inherited.
	a, err := l.factory(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("build sink client: %w", err)
	}
	l.appender = a
	return a, nil
}
