package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

func stubCommandContext(t *testing.T, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*captured = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestYTDLPExtract(t *testing.T) {
	var capturedArgs []string
	stubCommandContext(t, &capturedArgs)

	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(destDir, "extracted.m4a"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to seed output file: %v", err)
	}

	ytdlp := NewYTDLP("")
	got, err := ytdlp.Extract(context.Background(), "https://example.com/watch?v=abc", destDir)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got != filepath.Join(destDir, "extracted.m4a") {
		t.Errorf("Extract returned %q, want the seeded file", got)
	}

	if !slices.Contains(capturedArgs, "--no-playlist") {
		t.Errorf("expected --no-playlist in args, got %v", capturedArgs)
	}
	if capturedArgs[len(capturedArgs)-1] != "https://example.com/watch?v=abc" {
		t.Errorf("expected URL as last argument, got %v", capturedArgs)
	}
}

func TestYTDLPExtractNoOutput(t *testing.T) {
	var capturedArgs []string
	stubCommandContext(t, &capturedArgs)

	ytdlp := NewYTDLP("")
	_, err := ytdlp.Extract(context.Background(), "https://example.com/watch?v=abc", t.TempDir())
	if err == nil {
		t.Fatal("expected error when yt-dlp produced no file")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}
