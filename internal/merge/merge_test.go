package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type fakeRunner struct {
	calls    []string
	exitCode int
	stderr   string
	onRun    func(name string, args []string)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.onRun != nil {
		f.onRun(name, args)
	}
	if f.exitCode != 0 {
		return commandResult{ExitCode: f.exitCode, Stderr: f.stderr}, errors.New("exit status " + f.stderr)
	}
	return commandResult{}, nil
}

func writeSegments(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("audio:"+name), 0o644); err != nil {
			t.Fatalf("write segment: %v", err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestFFmpegConcatSingleSegmentMoves(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "chunk_000.mp3")
	out := filepath.Join(dir, "book.mp3")

	runner := &fakeRunner{}
	c := &FFmpegConcat{ffmpegPath: "ffmpeg", runner: runner}
	if err := c.Concat(context.Background(), segs, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("single segment should not invoke ffmpeg, calls: %v", runner.calls)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "audio:chunk_000.mp3" {
		t.Fatalf("segment not moved into place: %v %q", err, data)
	}
	if _, err := os.Stat(segs[0]); !os.IsNotExist(err) {
		t.Fatal("source segment should be gone after move")
	}
}

func TestFFmpegConcatBuildsConcatCommand(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "chunk_000.mp3", "chunk_001.mp3", "chunk_002.mp3")
	out := filepath.Join(dir, "book.mp3")

	runner := &fakeRunner{}
	runner.onRun = func(name string, args []string) {
		// The list file must exist while ffmpeg runs and name segments in order.
		listPath := args[len(args)-3]
		data, err := os.ReadFile(listPath)
		if err != nil {
			t.Errorf("list file unreadable during run: %v", err)
			return
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Errorf("expected 3 list entries, got %v", lines)
		}
		for i, want := range []string{"chunk_000.mp3", "chunk_001.mp3", "chunk_002.mp3"} {
			if !strings.Contains(lines[i], want) {
				t.Errorf("list line %d = %q, want %s", i, lines[i], want)
			}
		}
		// Simulate ffmpeg writing the output.
		if err := os.WriteFile(args[len(args)-1], []byte("merged"), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}
	}

	c := &FFmpegConcat{ffmpegPath: "ffmpeg", runner: runner}
	if err := c.Concat(context.Background(), segs, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one ffmpeg invocation, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	for _, want := range []string{"-f concat", "-safe 0", "-c copy"} {
		if !strings.Contains(call, want) {
			t.Fatalf("command %q missing %q", call, want)
		}
	}
}

func TestFFmpegConcatToolFailure(t *testing.T) {
	dir := t.TempDir()
	segs := writeSegments(t, dir, "chunk_000.mp3", "chunk_001.mp3")
	out := filepath.Join(dir, "book.mp3")

	c := &FFmpegConcat{
		ffmpegPath: "ffmpeg",
		runner:     &fakeRunner{exitCode: 1, stderr: "Invalid data found"},
	}
	err := c.Concat(context.Background(), segs, out)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.ExitCode != 1 || !strings.Contains(toolErr.Stderr, "Invalid data") {
		t.Fatalf("tool error missing diagnostics: %+v", toolErr)
	}
}

func writeWAV(t *testing.T, path string, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 22050, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 22050},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestWAVConcatAppendsFrames(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "chunk_000.wav")
	b := filepath.Join(dir, "chunk_001.wav")
	writeWAV(t, a, []int{1, 2, 3})
	writeWAV(t, b, []int{4, 5})
	out := filepath.Join(dir, "book.wav")

	if err := NewWAVConcat().Concat(context.Background(), []string{a, b}, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	want := []int{1, 2, 3, 4, 5}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestWAVConcatRejectsGarbageSegment(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "chunk_000.wav")
	b := filepath.Join(dir, "chunk_001.wav")
	writeWAV(t, a, []int{1})
	if err := os.WriteFile(b, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	err := NewWAVConcat().Concat(context.Background(), []string{a, b}, filepath.Join(dir, "out.wav"))
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
}
