package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecSynth shells out to a configured TTS command per chunk, edge-tts style:
// the voice, text, and output file are appended as flags and the command is
// expected to write the audio bytes to the output file.
type ExecSynth struct {
	cmd    []string
	format string
	mu     sync.Mutex
}

func NewExecSynth(command, format string) (*ExecSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	return &ExecSynth{cmd: args, format: format}, nil
}

func (e *ExecSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmp, err := os.CreateTemp("", "tta_synth_*."+e.format)
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	outPath := tmp.Name()
	tmp.Close()
	defer os.Remove(outPath)

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	args = append(args,
		"--voice", req.Voice,
		"--text", req.Text,
		"--write-media", outPath,
	)

	cmd := exec.CommandContext(ctx, base, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, &ServiceError{
			Voice: req.Voice,
			Err:   fmt.Errorf("%s failed: %w: %s", filepath.Base(base), err, stderr.String()),
		}
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &ServiceError{Voice: req.Voice, Err: fmt.Errorf("read output: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &ServiceError{Voice: req.Voice, Err: fmt.Errorf("command produced no audio")}
	}
	return audio, nil
}
