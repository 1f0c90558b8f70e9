package transcode

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArgsVoiceMode(t *testing.T) {
	args := Args("/scratch/in.mp3", "/scratch/encoded.ogg", Options{BitrateKbps: 16, Mode: ModeVoice})

	pairs := map[string]string{
		"-b:a":         "16k",
		"-application": "voip",
		"-packet_loss": "3",
		"-ac":          "1",
		"-c:a":         "libopus",
		"-vbr":         "on",
	}
	for flag, want := range pairs {
		if got := valueAfter(args, flag); got != want {
			t.Errorf("flag %s = %q, want %q (args %v)", flag, got, want, args)
		}
	}

	if args[len(args)-1] != "/scratch/encoded.ogg" {
		t.Errorf("expected output path as last argument, got %v", args)
	}
	if !slices.Contains(args, "-y") {
		t.Errorf("expected -y overwrite flag, got %v", args)
	}
}

func TestArgsMusicMode(t *testing.T) {
	args := Args("/scratch/in.flac", "/scratch/encoded.ogg", Options{BitrateKbps: 32, Mode: ModeMusic})

	if got := valueAfter(args, "-application"); got != "audio" {
		t.Errorf("application = %q, want audio", got)
	}
	if got := valueAfter(args, "-packet_loss"); got != "0" {
		t.Errorf("packet_loss = %q, want 0", got)
	}
	if slices.Contains(args, "-ac") {
		t.Errorf("music mode must keep the original channel layout, got %v", args)
	}
}

func TestArgsDefaultsUnknownSettings(t *testing.T) {
	args := Args("in", "out", Options{BitrateKbps: 999, Mode: Mode("surround")})

	if got := valueAfter(args, "-b:a"); got != "24k" {
		t.Errorf("unknown bitrate should fall back to 24k, got %q", got)
	}
	if got := valueAfter(args, "-application"); got != "voip" {
		t.Errorf("unknown mode should fall back to voice, got %q", got)
	}
}

func TestArgsAreStable(t *testing.T) {
	opts := Options{BitrateKbps: 24, Mode: ModeVoice}
	want := []string{
		"-i", "in.wav",
		"-vn",
		"-c:a", "libopus",
		"-b:a", "24k",
		"-vbr", "on",
		"-compression_level", "10",
		"-frame_duration", "20",
		"-complexity", "10",
		"-application", "voip",
		"-packet_loss", "3",
		"-ac", "1",
		"-y", "out.ogg",
	}

	if diff := cmp.Diff(want, Args("in.wav", "out.ogg", opts)); diff != "" {
		t.Errorf("argument list mismatch (-want +got):\n%s", diff)
	}
}

func TestValidBitrate(t *testing.T) {
	for _, kbps := range Bitrates {
		if !ValidBitrate(kbps) {
			t.Errorf("ValidBitrate(%d) = false, want true", kbps)
		}
	}
	for _, kbps := range []int{0, 8, 20, 64, -16} {
		if ValidBitrate(kbps) {
			t.Errorf("ValidBitrate(%d) = true, want false", kbps)
		}
	}
}

func TestLowestBitrate(t *testing.T) {
	if got := LowestBitrate(); got != 16 {
		t.Errorf("LowestBitrate() = %d, want 16", got)
	}
}

func valueAfter(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
