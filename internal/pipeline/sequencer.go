package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/habsgoalie/text-to-audio-converter/internal/chunker"
	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/synth"
)

// Sequencer synthesizes chunks with bounded parallelism and hands the
// resulting audio to the caller strictly in ascending chunk order, no matter
// in which order the synthesis calls finish. Failed chunks never cause later
// chunks to be delivered out of position.
type Sequencer struct {
	synth synth.Synthesizer
	cfg   config.PipelineConfig
	log   *slog.Logger
}

func NewSequencer(s synth.Synthesizer, cfg config.PipelineConfig, log *slog.Logger) *Sequencer {
	return &Sequencer{synth: s, cfg: cfg, log: log}
}

type segmentResult struct {
	index int
	audio []byte
	err   error
}

// Run synthesizes every chunk and invokes deliver once per successful chunk
// in index order. progress, when set, is called after each chunk settles with
// the count of settled chunks.
//
// Under fail_fast the first chunk failure cancels outstanding work and is
// returned as a *SynthesisError. Under fail_complete every chunk is
// attempted; successful segments are still delivered in order and the
// failures are returned joined together.
func (q *Sequencer) Run(ctx context.Context, chunks []chunker.Chunk, voice string, deliver func(index int, audio []byte) error, progress func(done, total int)) error {
	total := len(chunks)
	if total == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := q.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	work := make(chan chunker.Chunk)
	results := make(chan segmentResult, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				audio, err := q.synthesizeChunk(runCtx, c, voice)
				results <- segmentResult{index: c.Index, audio: audio, err: err}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, c := range chunks {
			select {
			case work <- c:
			case <-runCtx.Done():
				return
			}
		}
	}()
	defer wg.Wait()

	pending := make(map[int][]byte, total)
	skipped := make(map[int]bool)
	var failures []error
	next := 0

	for settled := 0; settled < total; settled++ {
		var res segmentResult
		select {
		case res = <-results:
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		}

		if res.err != nil {
			segErr := &SynthesisError{Chunk: res.index, Err: res.err}
			if q.cfg.FailurePolicy == "fail_complete" {
				q.log.Warn("chunk synthesis failed, continuing",
					slog.Int("chunk", res.index),
					slog.String("error", res.err.Error()))
				failures = append(failures, segErr)
				skipped[res.index] = true
			} else {
				cancel()
				return segErr
			}
		} else {
			pending[res.index] = res.audio
		}

		if progress != nil {
			progress(settled+1, total)
		}

		for {
			if skipped[next] {
				delete(skipped, next)
				next++
				continue
			}
			audio, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := deliver(next, audio); err != nil {
				cancel()
				return err
			}
			next++
		}
	}

	return errors.Join(failures...)
}

// synthesizeChunk invokes the synthesizer with a per-call timeout and retries
// transient failures with exponential backoff. Cancellation of the run is
// never retried.
func (q *Sequencer) synthesizeChunk(ctx context.Context, c chunker.Chunk, voice string) ([]byte, error) {
	var audio []byte
	attempt := 0

	op := func() error {
		attempt++
		callCtx := ctx
		if q.cfg.SynthTimeoutMS > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(q.cfg.SynthTimeoutMS)*time.Millisecond)
			defer cancel()
		}

		out, err := q.synth.Synthesize(callCtx, synth.Request{Text: c.Text, Voice: voice})
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if attempt <= q.cfg.RetryAttempts {
				q.log.Warn("chunk synthesis attempt failed, retrying",
					slog.Int("chunk", c.Index),
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
			}
			return err
		}
		audio = out
		return nil
	}

	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = time.Duration(q.cfg.RetryBackoffMS) * time.Millisecond
	ebo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(ebo, uint64(q.cfg.RetryAttempts)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return audio, nil
}
