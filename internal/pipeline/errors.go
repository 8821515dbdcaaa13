package pipeline

import "fmt"

// SynthesisError reports a chunk whose synthesis failed after all retries.
// Chunk is the zero-based document-order index.
type SynthesisError struct {
	Chunk int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed at chunk %d: %v", e.Chunk, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// MergeError reports a failed assembly step. Dir points at the retained
// segment directory so operators can inspect what was produced.
type MergeError struct {
	Dir string
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed (segments retained in %s): %v", e.Dir, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
