// tta-convert converts one document to one audio file without the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/habsgoalie/text-to-audio-converter/internal/chunker"
	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/extract"
	"github.com/habsgoalie/text-to-audio-converter/internal/merge"
	"github.com/habsgoalie/text-to-audio-converter/internal/pipeline"
	"github.com/habsgoalie/text-to-audio-converter/internal/synth"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		voice       string
		outPath     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "tta.yaml", "Path to configuration file")
	flag.StringVar(&voice, "voice", "", "Voice to synthesize with (default from config)")
	flag.StringVar(&outPath, "o", "", "Output file path (default: input name with audio extension)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tta-convert [flags] <document.epub|document.pdf>")
		os.Exit(2)
	}
	input := flag.Arg(0)

	configSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configSet = true
		}
	})
	if !configSet {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = ""
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if voice == "" {
		voice = cfg.Synth.DefaultVoice
	}
	if !synth.ValidVoice(voice) {
		logger.Error("unknown voice", slog.String("voice", voice))
		os.Exit(1)
	}
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		outPath = base + "." + cfg.Synth.Format
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := convert(ctx, cfg, logger, input, outPath, voice); err != nil {
		logger.Error("conversion failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("conversion complete", slog.String("output", outPath))
}

func convert(ctx context.Context, cfg config.Config, logger *slog.Logger, input, outPath, voice string) error {
	ex, err := extract.ForFile(input)
	if err != nil {
		return err
	}
	text, err := ex.Extract(input)
	if err != nil {
		return err
	}

	var chunks []chunker.Chunk
	if cfg.Pipeline.ChunkingEnabled {
		chunks, err = chunker.Split(text, cfg.Pipeline.MaxChunkChars)
		if err != nil {
			return err
		}
	} else {
		chunks = chunker.Single(text)
	}
	logger.Info("document extracted",
		slog.Int("chars", len(text)),
		slog.Int("chunks", len(chunks)))

	synthesizer, err := buildSynthesizer(cfg.Synth)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "tta-convert-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	var segPaths []string
	deliver := func(index int, audio []byte) error {
		path := filepath.Join(workDir, fmt.Sprintf("seg_%04d.%s", index, cfg.Synth.Format))
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return fmt.Errorf("write segment %d: %w", index, err)
		}
		segPaths = append(segPaths, path)
		return nil
	}
	progress := func(done, total int) {
		logger.Info("synthesizing", slog.Int("done", done), slog.Int("total", total))
	}

	seq := pipeline.NewSequencer(synthesizer, cfg.Pipeline, logger)
	if err := seq.Run(ctx, chunks, voice, deliver, progress); err != nil {
		logger.Warn("segments retained for inspection", slog.String("dir", workDir))
		return err
	}

	var concat merge.Concatenator
	if cfg.Merge.Mode == "wav" {
		concat = merge.NewWAVConcat()
	} else {
		concat = merge.NewFFmpegConcat(cfg.Merge.FFmpegPath)
	}
	if err := concat.Concat(ctx, segPaths, outPath); err != nil {
		logger.Warn("segments retained for inspection", slog.String("dir", workDir))
		return err
	}

	return os.RemoveAll(workDir)
}

func buildSynthesizer(cfg config.SynthConfig) (synth.Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return synth.NewMock(), nil
	case "exec":
		return synth.NewExecSynth(cfg.Command, cfg.Format)
	case "http":
		return synth.NewHTTPSynth(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Format), nil
	default:
		return nil, fmt.Errorf("unknown synth mode %q", cfg.Mode)
	}
}
