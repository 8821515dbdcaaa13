package pipeline

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type pipelineMetrics struct {
	jobsStarted  metric.Int64Counter
	jobsComplete metric.Int64Counter
	jobsFailed   metric.Int64Counter
	chunksSynth  metric.Int64Counter
	jobDuration  metric.Float64Histogram
}

func newPipelineMetrics() *pipelineMetrics {
	meter := otel.Meter("github.com/habsgoalie/text-to-audio-converter/pipeline")
	m := &pipelineMetrics{}

	m.jobsStarted, _ = meter.Int64Counter("tta.jobs.started",
		metric.WithDescription("Conversion jobs accepted for processing"))
	m.jobsComplete, _ = meter.Int64Counter("tta.jobs.complete",
		metric.WithDescription("Conversion jobs finished successfully"))
	m.jobsFailed, _ = meter.Int64Counter("tta.jobs.failed",
		metric.WithDescription("Conversion jobs that ended in error"))
	m.chunksSynth, _ = meter.Int64Counter("tta.chunks.synthesized",
		metric.WithDescription("Text chunks synthesized to audio"))
	m.jobDuration, _ = meter.Float64Histogram("tta.job.duration_seconds",
		metric.WithDescription("End-to-end conversion duration"))

	return m
}
