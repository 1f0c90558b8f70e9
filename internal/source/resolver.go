// Package source turns user-supplied references into local raw media files.
//
// A reference is either a remote URL (fetched directly for plain audio
// links, or through the yt-dlp extractor for anything else) or an
// already-local payload. The resolver writes exactly one file into the
// job's scratch space and never outside it.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"opusbot/internal/probe"
	"opusbot/internal/scratch"
)

// RawMedia is a locally materialized media file.
type RawMedia struct {
	Path     string
	Size     int64
	Duration time.Duration
}

// Reference is a user-supplied pointer to audio. Exactly one of URL or
// Data is set.
type Reference struct {
	URL  string
	Data io.Reader
	Name string
}

// HTTPClient is an abstraction for making HTTP requests.
// The implementation is usually Go's stdlib http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Extractor resolves a non-direct URL (a video page, a streaming site)
// into a downloaded media file inside destDir.
type Extractor interface {
	Extract(ctx context.Context, rawURL, destDir string) (string, error)
}

// Resolver materializes references into scratch space and enforces the
// configured size and duration ceilings.
type Resolver struct {
	client      HTTPClient
	extractor   Extractor
	prober      probe.Prober
	maxDuration time.Duration
	maxSize     int64
}

func NewResolver(client HTTPClient, extractor Extractor, prober probe.Prober, maxDuration time.Duration, maxSize int64) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		client:      client,
		extractor:   extractor,
		prober:      prober,
		maxDuration: maxDuration,
		maxSize:     maxSize,
	}
}

// Resolve writes the referenced media into space and validates it.
func (r *Resolver) Resolve(ctx context.Context, ref Reference, space *scratch.Space) (*RawMedia, error) {
	var localPath string
	var err error

	switch {
	case ref.Data != nil:
		localPath, err = r.copyLocal(ref, space)
	case ref.URL != "":
		localPath, err = r.fetchRemote(ctx, ref, space)
	default:
		return nil, &SourceUnavailableError{Ref: ref.Name, Err: fmt.Errorf("empty reference")}
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref.URL, Err: err}
	}
	if info.Size() == 0 {
		return nil, &SourceUnavailableError{Ref: ref.URL, Err: fmt.Errorf("resolved file is empty")}
	}
	if r.maxSize > 0 && info.Size() > r.maxSize {
		return nil, &SourceTooLargeError{Size: info.Size(), SizeLimit: r.maxSize}
	}

	duration, err := r.prober.Duration(ctx, localPath)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref.URL, Err: fmt.Errorf("not a playable media file: %w", err)}
	}
	if r.maxDuration > 0 && duration > r.maxDuration {
		return nil, &SourceTooLargeError{Duration: duration, DurationLimit: r.maxDuration}
	}

	return &RawMedia{
		Path:     localPath,
		Size:     info.Size(),
		Duration: duration,
	}, nil
}

func (r *Resolver) copyLocal(ref Reference, space *scratch.Space) (string, error) {
	dest := space.Path(scratchFileName(ref.Name, ""))
	f, err := os.Create(dest)
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.Name, Err: err}
	}
	defer f.Close()

	written, err := io.Copy(f, limitReader(ref.Data, r.maxSize))
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.Name, Err: err}
	}
	if r.maxSize > 0 && written > r.maxSize {
		return "", &SourceTooLargeError{Size: written, SizeLimit: r.maxSize}
	}
	return dest, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, ref Reference, space *scratch.Space) (string, error) {
	if !IsDirectAudioURL(ref.URL) {
		if r.extractor == nil {
			return "", &SourceUnavailableError{Ref: ref.URL, Err: fmt.Errorf("link does not point at an audio file")}
		}
		localPath, err := r.extractor.Extract(ctx, ref.URL, space.Dir())
		if err != nil {
			return "", &SourceUnavailableError{Ref: ref.URL, Err: err}
		}
		return localPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.URL, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &SourceUnavailableError{Ref: ref.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if r.maxSize > 0 && resp.ContentLength > r.maxSize {
		return "", &SourceTooLargeError{Size: resp.ContentLength, SizeLimit: r.maxSize}
	}

	name := ref.Name
	if name == "" {
		name = fileNameFromURL(ref.URL)
	}
	dest := space.Path(scratchFileName(name, resp.Header.Get("Content-Type")))
	f, err := os.Create(dest)
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.URL, Err: err}
	}
	defer f.Close()

	written, err := io.Copy(f, limitReader(resp.Body, r.maxSize))
	if err != nil {
		return "", &SourceUnavailableError{Ref: ref.URL, Err: err}
	}
	if r.maxSize > 0 && written > r.maxSize {
		return "", &SourceTooLargeError{Size: written, SizeLimit: r.maxSize}
	}
	return dest, nil
}

// limitReader reads one byte past max so the caller can tell "at the
// limit" apart from "over the limit".
func limitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return io.LimitReader(r, max+1)
}

var directAudioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".flac": {},
	".m4a":  {},
	".ogg":  {},
	".oga":  {},
	".aac":  {},
	".opus": {},
	".wma":  {},
}

// IsDirectAudioURL reports whether the URL looks like a plain audio file
// that can be fetched with a single GET. Anything else goes through the
// extractor.
func IsDirectAudioURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := directAudioExtensions[ext]
	return ok
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// scratchFileName picks a safe file name inside scratch space. The base
// name is flattened so a hostile reference cannot escape the directory.
func scratchFileName(name, contentType string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "source"
	}
	if path.Ext(base) == "" {
		base += extensionForContentType(contentType)
	}
	return "source-" + base
}

func extensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "mpeg"):
		return ".mp3"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	default:
		return ".bin"
	}
}
