// Package probe reads media durations with ffprobe.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Prober reports the duration of a local media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// FFprobe shells out to ffprobe for duration probing.
type FFprobe struct {
	binary string
}

// NewFFprobe constructs a prober. An empty binary falls back to "ffprobe"
// resolved from PATH.
func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{binary: binary}
}

func (p *FFprobe) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := commandContext(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return ParseDuration(stdout.String())
}

var _ Prober = (*FFprobe)(nil)

// ParseDuration converts ffprobe's fractional-seconds output to a Duration.
func ParseDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe duration %q: %w", trimmed, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative ffprobe duration %q", trimmed)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
