package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/pdftools/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy records every defect, logs it at Warn and lets parsing
// continue with a best-effort value.
type LenientStrategy struct {
	Logger observability.Logger
	// MaxErrors bounds how many defects are tolerated; zero means unbounded.
	MaxErrors int

	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

// NewLoggingStrategy returns a LenientStrategy that reports through l.
func NewLoggingStrategy(l observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: l}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	n := len(s.errors)
	s.mu.Unlock()

	if s.MaxErrors > 0 && n > s.MaxErrors {
		return ActionFail
	}
	observability.OrNop(s.Logger).Warn("recovered pdf defect",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.Error("error", err),
	)
	return ActionWarn
}

// Errors returns the defects recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
