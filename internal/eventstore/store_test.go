package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/habsgoalie/text-to-audio-converter/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventLogConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{JobID: "job-1", Type: "state"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventLogConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	jobID := "job-123"
	if err := es.AppendJob(context.Background(), jobID, "book.epub", "en-US-AriaNeural"); err != nil {
		t.Fatalf("append job: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{JobID: jobID, Type: "state", State: "processing", Stage: "extracting"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{JobID: jobID, Type: "progress", Stage: "synthesizing", Chunk: 2, TotalChunks: 3}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := es.ListJobEvents(context.Background(), jobID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Stage != "extracting" {
		t.Fatalf("events out of order: %+v", events)
	}
	if events[1].Chunk != 2 || events[1].TotalChunks != 3 {
		t.Fatalf("progress fields lost: %+v", events[1])
	}
}

func TestPruneByDaysAndJobs(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventLogConfig{
		Path:          filepath.Join(tmp, "events.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxJobs:       1,
	}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendJob(context.Background(), "old-job", "a.pdf", "v"); err != nil {
		t.Fatalf("append job: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{JobID: "old-job", Type: "state", State: "complete"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendJob(context.Background(), "new-job", "b.pdf", "v"); err != nil {
		t.Fatalf("append job: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListJobEvents(context.Background(), "old-job", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected pruned timeline, got %d events", len(events))
	}
}
