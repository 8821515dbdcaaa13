// Package pipeline drives a conversion job through its stages: extract text
// from the uploaded document, split it into synthesis-sized chunks, produce
// one audio segment per chunk, and assemble the segments in document order
// into a single output file. The orchestrator is the only writer of a job's
// tracker record while it runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/habsgoalie/text-to-audio-converter/internal/chunker"
	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/eventstore"
	"github.com/habsgoalie/text-to-audio-converter/internal/extract"
	"github.com/habsgoalie/text-to-audio-converter/internal/jobs"
	"github.com/habsgoalie/text-to-audio-converter/internal/merge"
	"github.com/habsgoalie/text-to-audio-converter/internal/synth"
)

// Orchestrator accepts conversion jobs and processes them in the background.
// Submissions return immediately; callers observe outcome by polling the
// tracker. At most jobs.max_concurrent jobs process at once, the rest wait
// queued.
type Orchestrator struct {
	cfg     config.Config
	tracker *jobs.Tracker
	seq     *Sequencer
	concat  merge.Concatenator
	events  *eventstore.Store
	notify  func(jobs.Job)
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *pipelineMetrics

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup
}

// NewOrchestrator wires the pipeline together. notify may be nil; when set it
// receives every job snapshot after a state or progress change.
func NewOrchestrator(cfg config.Config, tracker *jobs.Tracker, s synth.Synthesizer, concat merge.Concatenator, events *eventstore.Store, notify func(jobs.Job), log *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	maxJobs := cfg.Jobs.MaxConcurrent
	if maxJobs < 1 {
		maxJobs = 1
	}
	return &Orchestrator{
		cfg:     cfg,
		tracker: tracker,
		seq:     NewSequencer(s, cfg.Pipeline, log),
		concat:  concat,
		events:  events,
		notify:  notify,
		log:     log,
		tracer:  otel.Tracer("github.com/habsgoalie/text-to-audio-converter/pipeline"),
		metrics: newPipelineMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, maxJobs),
	}
}

// Submit registers a queued job for the uploaded file and starts processing
// in the background. The returned snapshot carries the id to poll.
func (o *Orchestrator) Submit(uploadPath, originalName, voice string) (jobs.Job, error) {
	if voice == "" {
		voice = o.cfg.Synth.DefaultVoice
	}
	if !synth.ValidVoice(voice) {
		return jobs.Job{}, fmt.Errorf("unknown voice %q", voice)
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	outputName := base + "." + o.cfg.Synth.Format

	job := o.tracker.Create(uploadPath, outputName, voice)
	if err := o.events.AppendJob(o.ctx, job.ID, originalName, voice); err != nil {
		o.log.Warn("record job in event log", slog.String("error", err.Error()))
	}
	o.emit(job)

	o.log.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("source", originalName),
		slog.String("voice", voice))

	o.wg.Add(1)
	go o.run(job)

	return job, nil
}

// Shutdown stops accepting work and waits for running jobs up to ctx's
// deadline. In-flight synthesis is cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(job jobs.Job) {
	defer o.wg.Done()

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-o.ctx.Done():
		o.fail(job.ID, "service shutting down before job started", "")
		return
	}

	ctx, span := o.tracer.Start(o.ctx, "pipeline.convert",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.voice", job.Voice)))
	defer span.End()

	start := time.Now()
	o.metrics.jobsStarted.Add(ctx, 1)

	o.transition(job.ID, jobs.StageExtracting)
	text, err := o.extractText(job.SourceFile)
	if err != nil {
		o.fail(job.ID, err.Error(), "")
		return
	}

	var chunks []chunker.Chunk
	if o.cfg.Pipeline.ChunkingEnabled {
		chunks, err = chunker.Split(text, o.cfg.Pipeline.MaxChunkChars)
		if err != nil {
			o.fail(job.ID, err.Error(), "")
			return
		}
	} else {
		chunks = chunker.Single(text)
	}

	workDir, err := o.makeWorkDir(job.ID)
	if err != nil {
		o.fail(job.ID, fmt.Sprintf("create work dir: %v", err), "")
		return
	}

	o.transition(job.ID, jobs.StageSynthesizing)
	segPaths, err := o.synthesizeSegments(ctx, job, chunks, workDir)
	if err != nil {
		span.RecordError(err)
		o.fail(job.ID, err.Error(), workDir)
		return
	}

	o.transition(job.ID, jobs.StageMerging)
	outPath, err := o.assemble(ctx, job, segPaths, workDir)
	if err != nil {
		span.RecordError(err)
		o.fail(job.ID, err.Error(), workDir)
		return
	}

	if updated, err := o.tracker.Complete(job.ID, outPath); err != nil {
		o.log.Error("finalize job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	} else {
		o.record(updated)
	}

	o.cleanup(job, workDir)
	o.metrics.jobsComplete.Add(ctx, 1)
	o.metrics.jobDuration.Record(ctx, time.Since(start).Seconds())
	o.log.Info("job complete",
		slog.String("job_id", job.ID),
		slog.Int("chunks", len(chunks)),
		slog.String("output", outPath),
		slog.Duration("elapsed", time.Since(start)))
}

func (o *Orchestrator) extractText(path string) (string, error) {
	ex, err := extract.ForFile(path)
	if err != nil {
		return "", err
	}
	return ex.Extract(path)
}

func (o *Orchestrator) makeWorkDir(jobID string) (string, error) {
	base := o.cfg.Storage.WorkDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(base, "tta-"+jobID+"-")
}

// synthesizeSegments runs the sequencer and writes each delivered segment to
// workDir, returning the segment paths in chunk order.
func (o *Orchestrator) synthesizeSegments(ctx context.Context, job jobs.Job, chunks []chunker.Chunk, workDir string) ([]string, error) {
	total := len(chunks)
	segPaths := make([]string, 0, total)

	deliver := func(index int, audio []byte) error {
		path := filepath.Join(workDir, fmt.Sprintf("seg_%04d.%s", index, o.cfg.Synth.Format))
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return fmt.Errorf("write segment %d: %w", index, err)
		}
		segPaths = append(segPaths, path)
		o.metrics.chunksSynth.Add(ctx, 1)
		return nil
	}

	progress := func(done, totalChunks int) {
		if updated, err := o.tracker.SetProgress(job.ID, jobs.StageSynthesizing, done, totalChunks); err == nil {
			o.record(updated)
		}
	}

	if err := o.seq.Run(ctx, chunks, job.Voice, deliver, progress); err != nil {
		return nil, err
	}
	return segPaths, nil
}

func (o *Orchestrator) assemble(ctx context.Context, job jobs.Job, segPaths []string, workDir string) (string, error) {
	if err := os.MkdirAll(o.cfg.Storage.OutputDir, 0o755); err != nil {
		return "", &MergeError{Dir: workDir, Err: err}
	}
	outPath := filepath.Join(o.cfg.Storage.OutputDir, job.ID+"."+o.cfg.Synth.Format)
	if err := o.concat.Concat(ctx, segPaths, outPath); err != nil {
		return "", &MergeError{Dir: workDir, Err: err}
	}
	return outPath, nil
}

// cleanup removes intermediate artifacts after success. Failures retain both
// the upload and the work dir for inspection.
func (o *Orchestrator) cleanup(job jobs.Job, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		o.log.Warn("remove work dir", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	if err := os.Remove(job.SourceFile); err != nil && !os.IsNotExist(err) {
		o.log.Warn("remove upload", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) transition(jobID string, stage jobs.Stage) {
	if updated, err := o.tracker.SetProcessing(jobID, stage); err != nil {
		o.log.Error("job transition", slog.String("job_id", jobID), slog.String("error", err.Error()))
	} else {
		o.record(updated)
	}
}

func (o *Orchestrator) fail(jobID, detail, diagnosticDir string) {
	o.metrics.jobsFailed.Add(o.ctx, 1)
	updated, err := o.tracker.Fail(jobID, detail, diagnosticDir)
	if err != nil {
		o.log.Error("mark job failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return
	}
	o.record(updated)
	o.log.Error("job failed",
		slog.String("job_id", jobID),
		slog.String("detail", detail),
		slog.String("diagnostic_dir", diagnosticDir))
}

// record persists the snapshot to the event log and fans it out to the bus.
func (o *Orchestrator) record(job jobs.Job) {
	evt := eventstore.Event{
		JobID:       job.ID,
		Type:        "state",
		State:       string(job.State),
		Stage:       string(job.Progress.Stage),
		Chunk:       job.Progress.Chunk,
		TotalChunks: job.Progress.TotalChunks,
		Detail:      job.ErrorDetail,
	}
	if job.State == jobs.StateProcessing && job.Progress.TotalChunks > 0 {
		evt.Type = "progress"
	}
	if err := o.events.AppendEvent(o.ctx, evt); err != nil {
		o.log.Warn("append job event", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	o.emit(job)
}

func (o *Orchestrator) emit(job jobs.Job) {
	if o.notify != nil {
		o.notify(job)
	}
}
