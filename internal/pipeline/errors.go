package pipeline

import (
	"context"
	"errors"
	"fmt"

	"opusbot/internal/scratch"
	"opusbot/internal/source"
	"opusbot/internal/transcode"
)

// UserMessage resolves any pipeline error to the single human-readable
// summary that gets delivered back to the chat.
func UserMessage(err error) string {
	var tooLarge *source.SourceTooLargeError
	var unavailable *source.SourceUnavailableError
	var encodeErr *transcode.EncodeFailedError
	var resourceErr *scratch.ResourceError

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Timed out processing your audio. Try a shorter file."
	case errors.As(err, &tooLarge):
		if tooLarge.Duration > 0 {
			return fmt.Sprintf("That audio is too long (%s). The limit is %s.",
				tooLarge.Duration.Round(1e9), tooLarge.DurationLimit)
		}
		return fmt.Sprintf("That file is too big. The limit is %d MB.",
			tooLarge.SizeLimit/(1024*1024))
	case errors.As(err, &unavailable):
		return "Couldn't fetch audio from that reference. Check the link or file and try again."
	case errors.As(err, &encodeErr):
		return "Encoding failed: " + preview(encodeErr.Reason, encodeErr.Stderr)
	case errors.As(err, &resourceErr):
		return "The server is low on scratch space right now. Try again later."
	default:
		return "Something went wrong while processing your audio."
	}
}

// preview keeps the diagnostic short enough for a chat message.
func preview(reason, stderr string) string {
	text := reason
	if stderr != "" {
		text += ": " + stderr
	}
	const max = 200
	if len(text) > max {
		text = text[:max] + "..."
	}
	return text
}
