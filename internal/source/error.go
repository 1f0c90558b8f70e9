package source

import (
	"fmt"
	"time"
)

// SourceUnavailableError means the reference could not be turned into a
// local media file: bad URL, network failure, or the extractor rejected it.
type SourceUnavailableError struct {
	Ref string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable %q: %v", e.Ref, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

var _ error = (*SourceUnavailableError)(nil)

// SourceTooLargeError means the input exceeded the configured size or
// duration ceiling. It is raised before any encoder subprocess runs.
type SourceTooLargeError struct {
	Duration      time.Duration
	DurationLimit time.Duration
	Size          int64
	SizeLimit     int64
}

func (e *SourceTooLargeError) Error() string {
	if e.Duration > 0 {
		return fmt.Sprintf("source too long: %s exceeds limit %s", e.Duration, e.DurationLimit)
	}
	return fmt.Sprintf("source too large: %d bytes exceeds limit %d", e.Size, e.SizeLimit)
}

var _ error = (*SourceTooLargeError)(nil)
