package merge

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVConcat joins WAV segments in-process by appending their PCM frames, for
// synthesizers that emit WAV. All segments must share one sample format.
type WAVConcat struct{}

func NewWAVConcat() *WAVConcat { return &WAVConcat{} }

func (c *WAVConcat) Concat(ctx context.Context, segmentPaths []string, outPath string) error {
	if len(segmentPaths) == 0 {
		return &ToolError{Tool: "wav-concat", Err: fmt.Errorf("no segments to merge")}
	}
	if len(segmentPaths) == 1 {
		return moveFile(segmentPaths[0], outPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return &ToolError{Tool: "wav-concat", Err: err}
	}

	var enc *wav.Encoder
	var format *audio.Format
	var bitDepth int

	closeOut := func() {
		if enc != nil {
			_ = enc.Close()
		}
		_ = out.Close()
	}

	for _, seg := range segmentPaths {
		if err := ctx.Err(); err != nil {
			closeOut()
			return err
		}
		buf, depth, err := readSegment(seg)
		if err != nil {
			closeOut()
			return err
		}
		if enc == nil {
			format = buf.Format
			bitDepth = depth
			enc = wav.NewEncoder(out, format.SampleRate, bitDepth, format.NumChannels, 1)
		} else if buf.Format.SampleRate != format.SampleRate || buf.Format.NumChannels != format.NumChannels || depth != bitDepth {
			closeOut()
			return &ToolError{
				Tool: "wav-concat",
				Err:  fmt.Errorf("segment %s has mismatched format", seg),
			}
		}
		if err := enc.Write(buf); err != nil {
			closeOut()
			return &ToolError{Tool: "wav-concat", Err: fmt.Errorf("append %s: %w", seg, err)}
		}
	}

	if err := enc.Close(); err != nil {
		_ = out.Close()
		return &ToolError{Tool: "wav-concat", Err: err}
	}
	return out.Close()
}

func readSegment(path string) (*audio.IntBuffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &ToolError{Tool: "wav-concat", Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, &ToolError{Tool: "wav-concat", Err: fmt.Errorf("%s is not a valid wav file", path)}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, &ToolError{Tool: "wav-concat", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return buf, int(dec.BitDepth), nil
}
