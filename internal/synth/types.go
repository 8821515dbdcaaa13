package synth

import (
	"context"
	"fmt"
)

// Request contains parameters to synthesize speech for one text chunk.
type Request struct {
	Text  string
	Voice string
}

// Synthesizer is the contract for producing audio from text. Implementations
// must be safe to invoke repeatedly for the same request: re-synthesizing a
// chunk has no side effects beyond producing new audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// ServiceError reports a synthesis service rejection or transport failure.
// Timeouts are surfaced as context.DeadlineExceeded instead so callers can
// distinguish them with errors.Is.
type ServiceError struct {
	Voice string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("synthesis service failed (voice %s): %v", e.Voice, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
