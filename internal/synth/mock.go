package synth

import (
	"context"
	"fmt"
	"time"
)

// Mock produces deterministic placeholder audio without any external service.
// Fail, when set, is consulted per request to inject scripted failures.
type Mock struct {
	Delay time.Duration
	Fail  func(req Request) error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fail != nil {
		if err := m.Fail(req); err != nil {
			return nil, err
		}
	}
	return []byte(fmt.Sprintf("mock-audio|voice=%s|chars=%d\n", req.Voice, len(req.Text))), nil
}
