package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/tekikaito/stapler/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy implements a best-effort recovery strategy. Every problem
// is recorded, logged as a warning and skipped.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{Logger: logger}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("[%s] object %d %d: %w", location.Component, location.ObjectNum, location.ObjectGen, err))
	s.mu.Unlock()
	if s.Logger != nil {
		s.Logger.Warn("recovered from error",
			observability.String("component", location.Component),
			observability.Int("object", location.ObjectNum),
			observability.Int("generation", location.ObjectGen),
			observability.Int64("offset", location.ByteOffset),
			observability.Error("error", err),
		)
	}
	return ActionWarn
}

// Errors returns the problems recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
