package delivery

import (
	"fmt"
	"strings"
	"time"

	"opusbot/internal/transcode"
)

// Caption summarizes a finished transcode for the chat message that
// carries the file.
func Caption(artifact *transcode.Artifact) string {
	mode := "music, stereo"
	if artifact.Mode == transcode.ModeVoice {
		mode = "voice, mono"
	}

	lines := []string{
		fmt.Sprintf("Opus %d kbps (%s)", artifact.BitrateKbps, mode),
		"Duration: " + FormatDuration(artifact.Duration),
		fmt.Sprintf("Size: %.1f KB", float64(artifact.Size)/1024),
	}

	if artifact.SourceSize > 0 && artifact.Size <= artifact.SourceSize {
		ratio := (1 - float64(artifact.Size)/float64(artifact.SourceSize)) * 100
		lines = append(lines, fmt.Sprintf("Compression: %.1f%%", ratio))
	}

	return strings.Join(lines, "\n")
}

// FormatDuration renders M:SS, or H:MM:SS past the hour mark.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
