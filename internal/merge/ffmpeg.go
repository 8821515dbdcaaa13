package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegConcat joins segments losslessly with ffmpeg's concat demuxer.
type FFmpegConcat struct {
	ffmpegPath string
	runner     commandRunner
}

func NewFFmpegConcat(ffmpegPath string) *FFmpegConcat {
	return &FFmpegConcat{ffmpegPath: ffmpegPath, runner: &execRunner{}}
}

func (c *FFmpegConcat) Concat(ctx context.Context, segmentPaths []string, outPath string) error {
	if len(segmentPaths) == 0 {
		return &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("no segments to merge")}
	}
	if len(segmentPaths) == 1 {
		return moveFile(segmentPaths[0], outPath)
	}

	listPath := filepath.Join(filepath.Dir(segmentPaths[0]), "concat_list.txt")
	var list strings.Builder
	for _, seg := range segmentPaths {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return &ToolError{Tool: "ffmpeg", Err: err}
		}
		// The concat demuxer list format takes forward slashes and quotes.
		list.WriteString("file '" + filepath.ToSlash(abs) + "'\n")
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("write concat list: %w", err)}
	}
	defer os.Remove(listPath)

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	result, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	if err != nil {
		return &ToolError{
			Tool:     "ffmpeg",
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(result.Stderr),
			Err:      err,
		}
	}
	if _, err := os.Stat(outPath); err != nil {
		return &ToolError{Tool: "ffmpeg", Err: fmt.Errorf("completed but output file is missing: %w", err)}
	}
	return nil
}
