package transcode

import (
	"slices"
	"strconv"
)

// Mode selects the encoder tuning.
type Mode string

const (
	// ModeVoice optimizes for speech: voip application, mono downmix,
	// packet loss compensation.
	ModeVoice Mode = "voice"
	// ModeMusic keeps the original channel layout and uses the
	// general-purpose audio application.
	ModeMusic Mode = "music"
)

// Bitrates are the selectable target bitrates in kbps.
var Bitrates = []int{16, 24, 32}

const DefaultBitrateKbps = 24

// ValidBitrate reports whether kbps is one of the selectable bitrates.
func ValidBitrate(kbps int) bool {
	return slices.Contains(Bitrates, kbps)
}

// LowestBitrate is used for the optional reduced-bitrate retry.
func LowestBitrate() int {
	return slices.Min(Bitrates)
}

// Options configure one transcode.
type Options struct {
	BitrateKbps int
	Mode        Mode
}

func (o Options) withDefaults() Options {
	if !ValidBitrate(o.BitrateKbps) {
		o.BitrateKbps = DefaultBitrateKbps
	}
	if o.Mode != ModeVoice && o.Mode != ModeMusic {
		o.Mode = ModeVoice
	}
	return o
}

// Args builds the ffmpeg argument list for encoding inputPath to an
// Opus-in-ogg file at outputPath.
func Args(inputPath, outputPath string, opts Options) []string {
	opts = opts.withDefaults()

	args := []string{
		"-i", inputPath,
		"-vn",
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(opts.BitrateKbps) + "k",
		"-vbr", "on",
		"-compression_level", "10",
		"-frame_duration", "20",
		"-complexity", "10",
	}

	if opts.Mode == ModeVoice {
		args = append(args,
			"-application", "voip",
			"-packet_loss", "3",
			"-ac", "1",
		)
	} else {
		args = append(args,
			"-application", "audio",
			"-packet_loss", "0",
		)
	}

	return append(args, "-y", outputPath)
}
