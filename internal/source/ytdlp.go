package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// YTDLP downloads the best audio stream of a page URL with yt-dlp.
type YTDLP struct {
	binary string
}

// NewYTDLP constructs the extractor. An empty binary falls back to
// "yt-dlp" resolved from PATH.
func NewYTDLP(binary string) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{binary: binary}
}

// Extract downloads the audio of rawURL into destDir and returns the
// path of the downloaded file. yt-dlp picks the container, so the file
// is located afterwards by its fixed stem.
func (y *YTDLP) Extract(ctx context.Context, rawURL, destDir string) (string, error) {
	outTemplate := filepath.Join(destDir, "extracted.%(ext)s")
	cmd := commandContext(ctx, y.binary,
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--max-downloads", "1",
		"-o", outTemplate,
		rawURL,
	)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// --max-downloads makes yt-dlp exit 101 after a successful download.
		if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != 101 {
			return "", fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "extracted.*"))
	if err != nil {
		return "", fmt.Errorf("locate yt-dlp output: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("yt-dlp produced no output file")
	}
	return matches[0], nil
}

var _ Extractor = (*YTDLP)(nil)
