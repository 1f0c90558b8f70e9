// Package transcode runs ffmpeg to produce Opus artifacts and validates
// what comes out.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"opusbot/internal/probe"
	"opusbot/internal/scratch"
	"opusbot/internal/source"
)

var commandContext = exec.CommandContext

// Artifact is the Opus-encoded output of one transcode.
type Artifact struct {
	Path        string
	Size        int64
	Duration    time.Duration
	BitrateKbps int
	Mode        Mode

	// Source metrics, kept for the user-facing caption.
	SourceSize     int64
	SourceDuration time.Duration
}

// EncodeFailedError carries the encoder's diagnostic output. It is safe
// to retry once at a reduced bitrate when the deployment opts in.
type EncodeFailedError struct {
	Reason string
	Stderr string
	Err    error
}

func (e *EncodeFailedError) Error() string {
	msg := "encode failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EncodeFailedError) Unwrap() error {
	return e.Err
}

var _ error = (*EncodeFailedError)(nil)

// Encoder produces an Opus artifact from raw media inside the job's
// scratch space. Implementations must be safe for concurrent use.
type Encoder interface {
	Transcode(ctx context.Context, raw *source.RawMedia, space *scratch.Space, opts Options) (*Artifact, error)
}

// FFmpeg encodes with the ffmpeg binary and libopus.
type FFmpeg struct {
	binary    string
	prober    probe.Prober
	timeout   time.Duration
	tolerance time.Duration

	validateContainer func(path string) error
}

// NewFFmpeg constructs the encoder. timeout bounds one ffmpeg run and
// must be shorter than the job deadline; tolerance is the accepted
// drift between source and artifact durations.
func NewFFmpeg(binary string, prober probe.Prober, timeout, tolerance time.Duration) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary:            binary,
		prober:            prober,
		timeout:           timeout,
		tolerance:         tolerance,
		validateContainer: ValidateOpusContainer,
	}
}

func (f *FFmpeg) Transcode(ctx context.Context, raw *source.RawMedia, space *scratch.Space, opts Options) (*Artifact, error) {
	opts = opts.withDefaults()
	outputPath := space.Path("encoded.ogg")

	encodeCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		encodeCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := commandContext(encodeCtx, f.binary, Args(raw.Path, outputPath, opts)...)
	// WaitDelay guarantees the process is killed shortly after the
	// context fires instead of being abandoned mid-encode.
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// The job itself was cancelled; report that, not an encode failure.
			return nil, ctx.Err()
		}
		if encodeCtx.Err() != nil {
			return nil, &EncodeFailedError{
				Reason: fmt.Sprintf("encoder exceeded its %s timeout", f.timeout),
				Stderr: trimStderr(stderr.String()),
			}
		}
		return nil, &EncodeFailedError{
			Reason: "ffmpeg exited with an error",
			Stderr: trimStderr(stderr.String()),
			Err:    err,
		}
	}

	return f.validate(ctx, raw, outputPath, opts)
}

func (f *FFmpeg) validate(ctx context.Context, raw *source.RawMedia, outputPath string, opts Options) (*Artifact, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, &EncodeFailedError{Reason: "no output file produced", Err: err}
	}
	if info.Size() == 0 {
		return nil, &EncodeFailedError{Reason: "output file is empty"}
	}

	if err := f.validateContainer(outputPath); err != nil {
		return nil, &EncodeFailedError{Reason: "output is not a valid opus file", Err: err}
	}

	duration, err := f.prober.Duration(ctx, outputPath)
	if err != nil {
		return nil, &EncodeFailedError{Reason: "output duration unreadable", Err: err}
	}

	if drift := absDuration(duration - raw.Duration); drift > f.tolerance {
		return nil, &EncodeFailedError{
			Reason: fmt.Sprintf("truncated output: got %s of %s source (drift %s, tolerance %s)",
				duration, raw.Duration, drift, f.tolerance),
		}
	}

	return &Artifact{
		Path:           outputPath,
		Size:           info.Size(),
		Duration:       duration,
		BitrateKbps:    opts.BitrateKbps,
		Mode:           opts.Mode,
		SourceSize:     raw.Size,
		SourceDuration: raw.Duration,
	}, nil
}

var _ Encoder = (*FFmpeg)(nil)

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// trimStderr keeps the tail of ffmpeg's output; the tail holds the
// actual failure, the head is banner noise.
func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	const max = 1024
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
