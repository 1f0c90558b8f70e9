package source_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opusbot/internal/scratch"
	"opusbot/internal/source"
)

type fakeHTTPClient struct {
	resp *http.Response
	err  error
}

func (c *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

type fakeProber struct {
	duration time.Duration
	err      error
	calls    int
}

func (p *fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	p.calls++
	return p.duration, p.err
}

type fakeExtractor struct {
	path string
	err  error
}

func (e *fakeExtractor) Extract(ctx context.Context, rawURL, destDir string) (string, error) {
	return e.path, e.err
}

func audioResponse(body string, contentLength int64) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: contentLength,
		Header:        http.Header{"Content-Type": []string{"audio/mpeg"}},
	}
}

func newSpace(t *testing.T) *scratch.Space {
	t.Helper()
	manager, err := scratch.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	space, err := manager.Acquire("test-job")
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	t.Cleanup(func() { space.Release() })
	return space
}

func TestResolveDirectURL(t *testing.T) {
	client := &fakeHTTPClient{resp: audioResponse("fake mp3 bytes", 14)}
	prober := &fakeProber{duration: 3 * time.Second}
	resolver := source.NewResolver(client, nil, prober, time.Hour, 1024)
	space := newSpace(t)

	raw, err := resolver.Resolve(context.Background(), source.Reference{URL: "https://example.com/song.mp3"}, space)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if raw.Size != 14 {
		t.Errorf("Size = %d, want 14", raw.Size)
	}
	if raw.Duration != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", raw.Duration)
	}
	if filepath.Dir(raw.Path) != space.Dir() {
		t.Errorf("resolved file %q is outside scratch space %q", raw.Path, space.Dir())
	}
}

func TestResolveLocalPayload(t *testing.T) {
	prober := &fakeProber{duration: time.Second}
	resolver := source.NewResolver(nil, nil, prober, time.Hour, 1024)
	space := newSpace(t)

	raw, err := resolver.Resolve(context.Background(), source.Reference{
		Data: strings.NewReader("voice note"),
		Name: "note.ogg",
	}, space)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if filepath.Dir(raw.Path) != space.Dir() {
		t.Errorf("resolved file %q is outside scratch space %q", raw.Path, space.Dir())
	}
}

func TestResolveSanitizesHostileNames(t *testing.T) {
	prober := &fakeProber{duration: time.Second}
	resolver := source.NewResolver(nil, nil, prober, time.Hour, 1024)
	space := newSpace(t)

	raw, err := resolver.Resolve(context.Background(), source.Reference{
		Data: strings.NewReader("payload"),
		Name: "../../../etc/passwd.mp3",
	}, space)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if filepath.Dir(raw.Path) != space.Dir() {
		t.Errorf("hostile name escaped scratch space: %q", raw.Path)
	}
}

func TestResolveRejectsOversizeByContentLength(t *testing.T) {
	client := &fakeHTTPClient{resp: audioResponse("x", 10_000)}
	prober := &fakeProber{duration: time.Second}
	resolver := source.NewResolver(client, nil, prober, time.Hour, 1024)
	space := newSpace(t)

	_, err := resolver.Resolve(context.Background(), source.Reference{URL: "https://example.com/big.mp3"}, space)
	var tooLarge *source.SourceTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *SourceTooLargeError, got %v", err)
	}
	if prober.calls != 0 {
		t.Errorf("prober invoked %d times for a rejected download, want 0", prober.calls)
	}
}

func TestResolveRejectsOversizeByStreamedBytes(t *testing.T) {
	// ContentLength -1 forces the limit to be enforced on the stream itself.
	client := &fakeHTTPClient{resp: audioResponse(strings.Repeat("a", 64), -1)}
	prober := &fakeProber{duration: time.Second}
	resolver := source.NewResolver(client, nil, prober, time.Hour, 32)
	space := newSpace(t)

	_, err := resolver.Resolve(context.Background(), source.Reference{URL: "https://example.com/big.mp3"}, space)
	var tooLarge *source.SourceTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *SourceTooLargeError, got %v", err)
	}
}

func TestResolveRejectsOverlongDuration(t *testing.T) {
	client := &fakeHTTPClient{resp: audioResponse("short file, long audio", 22)}
	prober := &fakeProber{duration: 7 * time.Hour}
	resolver := source.NewResolver(client, nil, prober, 6*time.Hour, 1024)
	space := newSpace(t)

	_, err := resolver.Resolve(context.Background(), source.Reference{URL: "https://example.com/long.mp3"}, space)
	var tooLarge *source.SourceTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *SourceTooLargeError, got %v", err)
	}
	if tooLarge.Duration != 7*time.Hour {
		t.Errorf("Duration = %v, want 7h", tooLarge.Duration)
	}
}

func TestResolveFailureModes(t *testing.T) {
	tc := []struct {
		name      string
		client    source.HTTPClient
		extractor source.Extractor
		prober    *fakeProber
		ref       source.Reference
	}{
		{
			name:   "empty reference",
			prober: &fakeProber{},
			ref:    source.Reference{},
		},
		{
			name:   "network failure",
			client: &fakeHTTPClient{err: fmt.Errorf("connection refused")},
			prober: &fakeProber{},
			ref:    source.Reference{URL: "https://example.com/a.mp3"},
		},
		{
			name: "http error status",
			client: &fakeHTTPClient{resp: &http.Response{
				StatusCode: http.StatusNotFound,
				Status:     "404 Not Found",
				Body:       io.NopCloser(strings.NewReader("")),
			}},
			prober: &fakeProber{},
			ref:    source.Reference{URL: "https://example.com/a.mp3"},
		},
		{
			name:   "empty file",
			client: &fakeHTTPClient{resp: audioResponse("", 0)},
			prober: &fakeProber{},
			ref:    source.Reference{URL: "https://example.com/a.mp3"},
		},
		{
			name:   "unprobeable file",
			client: &fakeHTTPClient{resp: audioResponse("not audio", 9)},
			prober: &fakeProber{err: fmt.Errorf("invalid data")},
			ref:    source.Reference{URL: "https://example.com/a.mp3"},
		},
		{
			name:   "page link without extractor",
			prober: &fakeProber{},
			ref:    source.Reference{URL: "https://example.com/watch?v=abc"},
		},
		{
			name:      "extractor failure",
			extractor: &fakeExtractor{err: fmt.Errorf("unsupported site")},
			prober:    &fakeProber{},
			ref:       source.Reference{URL: "https://example.com/watch?v=abc"},
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			resolver := source.NewResolver(test.client, test.extractor, test.prober, time.Hour, 1024)
			space := newSpace(t)

			_, err := resolver.Resolve(context.Background(), test.ref, space)
			var unavailable *source.SourceUnavailableError
			if !errors.As(err, &unavailable) {
				t.Fatalf("expected *SourceUnavailableError, got %v", err)
			}
		})
	}
}

func TestIsDirectAudioURL(t *testing.T) {
	tc := []struct {
		url  string
		want bool
	}{
		{"https://example.com/song.mp3", true},
		{"http://example.com/music/track.WAV", true},
		{"https://example.com/a.flac?token=1", true},
		{"https://example.com/watch?v=abc", false},
		{"https://example.com/page.html", false},
		{"ftp://example.com/song.mp3", false},
		{"not a url", false},
	}

	for _, test := range tc {
		t.Run(test.url, func(t *testing.T) {
			if got := source.IsDirectAudioURL(test.url); got != test.want {
				t.Errorf("IsDirectAudioURL(%q) = %v, want %v", test.url, got, test.want)
			}
		})
	}
}
