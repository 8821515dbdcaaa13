package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for ids that were never seen or already evicted.
var ErrNotFound = errors.New("job not found")

// Tracker owns the id to job mapping. The orchestrator running a job is its
// single writer; any number of pollers may read concurrently. Transitions
// replace the stored record atomically, and terminal states are final.
type Tracker struct {
	mu        sync.RWMutex
	jobs      map[string]Job
	retention time.Duration
	clock     func() time.Time
}

// NewTracker creates a tracker that evicts terminal jobs after retention.
// A zero retention keeps finished jobs until process exit.
func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{
		jobs:      make(map[string]Job),
		retention: retention,
		clock:     time.Now,
	}
}

// Create registers a new queued job and returns its snapshot.
func (t *Tracker) Create(sourceFile, outputFilename, voice string) Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock().UTC()
	job := Job{
		ID:             uuid.NewString(),
		State:          StateQueued,
		Voice:          voice,
		SourceFile:     sourceFile,
		OutputFilename: outputFilename,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	t.jobs[job.ID] = job
	return job
}

// Get returns a consistent snapshot of the job.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns snapshots of every tracked job.
func (t *Tracker) List() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job)
	}
	return out
}

// SetProcessing moves a queued job into processing at the given stage.
func (t *Tracker) SetProcessing(id string, stage Stage) (Job, error) {
	return t.update(id, func(job *Job) error {
		if job.State != StateQueued && job.State != StateProcessing {
			return fmt.Errorf("invalid transition: %s -> %s", job.State, StateProcessing)
		}
		job.State = StateProcessing
		job.Progress = Progress{Stage: stage}
		return nil
	})
}

// SetProgress publishes chunk-level progress for a processing job.
func (t *Tracker) SetProgress(id string, stage Stage, chunk, total int) (Job, error) {
	return t.update(id, func(job *Job) error {
		if job.State != StateProcessing {
			return fmt.Errorf("cannot report progress in state %s", job.State)
		}
		job.Progress = Progress{Stage: stage, Chunk: chunk, TotalChunks: total}
		return nil
	})
}

// Complete finalizes a job successfully with the output artifact location.
func (t *Tracker) Complete(id, resultPath string) (Job, error) {
	return t.update(id, func(job *Job) error {
		if job.State != StateProcessing {
			return fmt.Errorf("invalid transition: %s -> %s", job.State, StateComplete)
		}
		job.State = StateComplete
		job.ResultPath = resultPath
		return nil
	})
}

// Fail finalizes a job with a human-readable cause. diagnosticDir, when not
// empty, points at retained intermediate artifacts.
func (t *Tracker) Fail(id, detail, diagnosticDir string) (Job, error) {
	return t.update(id, func(job *Job) error {
		job.State = StateError
		job.ErrorDetail = detail
		job.DiagnosticDir = diagnosticDir
		return nil
	})
}

func (t *Tracker) update(id string, mutate func(*Job) error) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.State.Terminal() {
		return job, fmt.Errorf("job %s is already %s", id, job.State)
	}
	if err := mutate(&job); err != nil {
		return job, err
	}
	job.UpdatedAt = t.clock().UTC()
	t.jobs[id] = job
	return job, nil
}

// Sweep evicts terminal jobs older than the retention window and returns the
// evicted snapshots so callers can remove their artifacts.
func (t *Tracker) Sweep() []Job {
	if t.retention <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock().UTC().Add(-t.retention)
	var evicted []Job
	for id, job := range t.jobs {
		if job.State.Terminal() && job.UpdatedAt.Before(cutoff) {
			evicted = append(evicted, job)
			delete(t.jobs, id)
		}
	}
	return evicted
}

// Janitor runs Sweep on the given interval until ctx is cancelled. Evicted
// jobs are passed to onEvict when set.
func (t *Tracker) Janitor(ctx context.Context, interval time.Duration, onEvict func(Job)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, job := range t.Sweep() {
				if onEvict != nil {
					onEvict(job)
				}
			}
		}
	}
}
