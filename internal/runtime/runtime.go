// Package runtime assembles the daemon: configuration, telemetry, the event
// log, the optional bus, the conversion pipeline, and the HTTP surface.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habsgoalie/text-to-audio-converter/internal/bus"
	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/eventstore"
	"github.com/habsgoalie/text-to-audio-converter/internal/httpapi"
	"github.com/habsgoalie/text-to-audio-converter/internal/jobs"
	"github.com/habsgoalie/text-to-audio-converter/internal/merge"
	"github.com/habsgoalie/text-to-audio-converter/internal/natsserver"
	"github.com/habsgoalie/text-to-audio-converter/internal/pipeline"
	"github.com/habsgoalie/text-to-audio-converter/internal/synth"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	ready  atomic.Bool
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, then blocks until ctx is cancelled and
// tears them down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	events, err := eventstore.Open(ctx, r.cfg.EventLog, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer events.Close()

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger.With(slog.String("component", "natsserver")))
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		defer embedded.Shutdown()

		busCfg := r.cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", r.cfg.Bus.Port)}
		}
		busClient, err = bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer busClient.Close()
	}

	synthesizer, err := r.buildSynthesizer()
	if err != nil {
		return err
	}
	concat := r.buildConcatenator()

	tracker := jobs.NewTracker(time.Duration(r.cfg.Jobs.RetentionMinutes) * time.Minute)

	var notify func(jobs.Job)
	if busClient != nil {
		notify = busClient.PublishJobEvent
	}
	orc := pipeline.NewOrchestrator(r.cfg, tracker, synthesizer, concat, events,
		notify, r.logger.With(slog.String("component", "pipeline")))

	r.startJanitor(ctx, tracker, events)

	api := &httpapi.Server{
		Cfg:     r.cfg,
		Pipe:    orc,
		Tracker: tracker,
		Events:  events,
		Ready:   r.ready.Load,
		Log:     r.logger.With(slog.String("component", "httpapi")),
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	metricsServer := r.startMetricsServer(metricsHandler, cancel)

	r.ready.Store(true)
	r.logger.Info("service started",
		slog.String("addr", addr),
		slog.String("synth_mode", r.cfg.Synth.Mode),
		slog.String("merge_mode", r.cfg.Merge.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("service stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := orc.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("pipeline shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildSynthesizer() (synth.Synthesizer, error) {
	switch r.cfg.Synth.Mode {
	case "mock":
		return synth.NewMock(), nil
	case "exec":
		s, err := synth.NewExecSynth(r.cfg.Synth.Command, r.cfg.Synth.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to configure exec synthesizer: %w", err)
		}
		return s, nil
	case "http":
		return synth.NewHTTPSynth(r.cfg.Synth.Endpoint, r.cfg.Synth.APIKey, r.cfg.Synth.Model, r.cfg.Synth.Format), nil
	default:
		return nil, fmt.Errorf("unknown synth mode %q", r.cfg.Synth.Mode)
	}
}

func (r *Runtime) buildConcatenator() merge.Concatenator {
	if r.cfg.Merge.Mode == "wav" {
		return merge.NewWAVConcat()
	}
	return merge.NewFFmpegConcat(r.cfg.Merge.FFmpegPath)
}

// startJanitor periodically evicts expired terminal jobs, deletes their
// output artifacts, and applies event log retention.
func (r *Runtime) startJanitor(ctx context.Context, tracker *jobs.Tracker, events *eventstore.Store) {
	if r.cfg.Jobs.RetentionMinutes <= 0 {
		return
	}
	log := r.logger.With(slog.String("component", "janitor"))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		tracker.Janitor(ctx, time.Minute, func(job jobs.Job) {
			removeArtifacts(job, log)
		})
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := events.Prune(ctx); err != nil {
					log.Warn("event log prune failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

func removeArtifacts(job jobs.Job, log *slog.Logger) {
	for _, path := range []string{job.ResultPath, job.DiagnosticDir, job.SourceFile} {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.Warn("remove evicted artifact",
				slog.String("job_id", job.ID),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	log.Info("evicted finished job", slog.String("job_id", job.ID), slog.String("state", string(job.State)))
}

func (r *Runtime) startMetricsServer(handler http.Handler, cancel context.CancelFunc) *http.Server {
	if handler == nil || r.cfg.Telemetry.PrometheusBind == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return srv
}
