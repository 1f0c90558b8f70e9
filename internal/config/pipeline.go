package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// PipelineConfig controls the acquisition-and-transcode pipeline.
// Every value has a default and can be overridden at process start.
type PipelineConfig struct {
	// MaxConcurrentJobs bounds how many jobs may be in flight at once.
	// Size this to the CPU and memory available to ffmpeg.
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2"`

	// JobDeadline is the wall-clock budget for one job end-to-end.
	JobDeadline time.Duration `env:"JOB_DEADLINE, default=40m"`

	// EncodeTimeout bounds a single ffmpeg invocation. It must be
	// shorter than JobDeadline so the job can still report a failure.
	EncodeTimeout time.Duration `env:"ENCODE_TIMEOUT, default=30m"`

	// MaxSourceDuration rejects pathologically long inputs before
	// any encoder subprocess is started.
	MaxSourceDuration time.Duration `env:"MAX_SOURCE_DURATION, default=6h"`

	// MaxSourceSizeMB rejects oversized inputs at download time.
	MaxSourceSizeMB int64 `env:"MAX_SOURCE_SIZE_MB, default=150"`

	// DurationTolerance is the accepted drift between source and
	// artifact duration before an encode is treated as truncated.
	DurationTolerance time.Duration `env:"DURATION_TOLERANCE, default=500ms"`

	DefaultBitrateKbps int  `env:"DEFAULT_BITRATE_KBPS, default=24"`
	DefaultVoiceMode   bool `env:"DEFAULT_VOICE_MODE, default=true"`

	// RetryReducedBitrate re-runs a failed encode once at the lowest
	// bitrate before surfacing the failure to the user.
	RetryReducedBitrate bool `env:"RETRY_REDUCED_BITRATE, default=false"`

	ScratchRoot string `env:"SCRATCH_ROOT"`

	FFmpegBin  string `env:"FFMPEG_BIN, default=ffmpeg"`
	FFprobeBin string `env:"FFPROBE_BIN, default=ffprobe"`
	YTDLPBin   string `env:"YTDLP_BIN, default=yt-dlp"`

	HealthAddr string `env:"HEALTH_ADDR, default=:8000"`
}

func NewPipelineConfigFromEnv() (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = filepath.Join(os.TempDir(), "opusbot")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *PipelineConfig) Validate() error {
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", c.MaxConcurrentJobs)
	}
	if c.EncodeTimeout >= c.JobDeadline {
		return fmt.Errorf("ENCODE_TIMEOUT (%s) must be shorter than JOB_DEADLINE (%s)", c.EncodeTimeout, c.JobDeadline)
	}
	if c.MaxSourceDuration <= 0 {
		return fmt.Errorf("MAX_SOURCE_DURATION must be positive, got %s", c.MaxSourceDuration)
	}
	if c.DurationTolerance <= 0 {
		return fmt.Errorf("DURATION_TOLERANCE must be positive, got %s", c.DurationTolerance)
	}
	return nil
}

// MaxSourceSize is MaxSourceSizeMB in bytes.
func (c *PipelineConfig) MaxSourceSize() int64 {
	return c.MaxSourceSizeMB * 1024 * 1024
}
