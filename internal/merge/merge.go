// Package merge assembles ordered per-chunk audio segments into one output
// file. Callers must pass segments strictly in chunk order; nothing here
// reorders them.
package merge

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Concatenator joins ordered audio segment files into outPath.
type Concatenator interface {
	Concat(ctx context.Context, segmentPaths []string, outPath string) error
}

// ToolError reports a failure of the external or in-process assembly tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// moveFile renames a single segment into place, copying across filesystems
// when rename is not possible.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
