package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"

	"opusbot/internal/config"
	"opusbot/internal/pipeline"
	"opusbot/internal/probe"
	"opusbot/internal/scratch"
	"opusbot/internal/source"
	"opusbot/internal/transcode"
)

// fileDeliverer copies the artifact out of scratch space to the output
// path before the job releases the space.
type fileDeliverer struct {
	outputPath string
}

func (d *fileDeliverer) DeliverArtifact(ctx context.Context, chatID string, artifact *transcode.Artifact) error {
	in, err := os.Open(artifact.Path)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(d.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}

	log.Printf("Wrote %s (%d bytes, %s, %d kbps)",
		d.outputPath, artifact.Size, artifact.Duration, artifact.BitrateKbps)
	return nil
}

func (d *fileDeliverer) DeliverFailure(ctx context.Context, chatID string, message string) error {
	log.Printf("Job failed: %s", message)
	return nil
}

var _ pipeline.Deliverer = (*fileDeliverer)(nil)

func runEncode(c *cli.Context) error {
	input := c.String("input")
	rawURL := c.String("url")
	if (input == "") == (rawURL == "") {
		return cli.Exit("Provide exactly one of --input or --url", 1)
	}

	pipelineConfig, err := config.NewPipelineConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load pipeline config: "+err.Error(), 1)
	}

	options := transcode.Options{
		BitrateKbps: c.Int("bitrate"),
		Mode:        transcode.Mode(c.String("mode")),
	}
	if !transcode.ValidBitrate(options.BitrateKbps) {
		return cli.Exit(fmt.Sprintf("Unsupported bitrate %d kbps", options.BitrateKbps), 1)
	}
	if options.Mode != transcode.ModeVoice && options.Mode != transcode.ModeMusic {
		return cli.Exit("Mode must be voice or music", 1)
	}

	scratchManager, err := scratch.NewManager(pipelineConfig.ScratchRoot)
	if err != nil {
		return cli.Exit("Failed to prepare scratch root: "+err.Error(), 1)
	}

	prober := probe.NewFFprobe(pipelineConfig.FFprobeBin)
	resolver := source.NewResolver(
		http.DefaultClient,
		source.NewYTDLP(pipelineConfig.YTDLPBin),
		prober,
		pipelineConfig.MaxSourceDuration,
		pipelineConfig.MaxSourceSize(),
	)
	encoder := transcode.NewFFmpeg(
		pipelineConfig.FFmpegBin,
		prober,
		pipelineConfig.EncodeTimeout,
		pipelineConfig.DurationTolerance,
	)

	coordinator, err := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Gate:        pipeline.NewGate(1),
		Scratch:     scratchManager,
		Resolver:    resolver,
		Encoder:     encoder,
		Deliverer:   &fileDeliverer{outputPath: c.String("output")},
		JobDeadline: pipelineConfig.JobDeadline,
	})
	if err != nil {
		return cli.Exit("Failed to create coordinator: "+err.Error(), 1)
	}

	ref := source.Reference{URL: rawURL}
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return cli.Exit("Failed to open input: "+err.Error(), 1)
		}
		defer f.Close()
		ref = source.Reference{Data: f, Name: input}
	}

	job, err := coordinator.NewJob(pipeline.Request{
		ChatID:  "cli",
		UserID:  "cli",
		Ref:     ref,
		Options: options,
	})
	if err != nil {
		return cli.Exit("Failed to create job: "+err.Error(), 1)
	}

	coordinator.Process(c.Context, job)
	if job.State() != pipeline.StateCompleted {
		return cli.Exit(fmt.Sprintf("Job ended %s: %v", job.State(), job.Err()), 1)
	}
	return nil
}

func runProbe(c *cli.Context) error {
	pipelineConfig, err := config.NewPipelineConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load pipeline config: "+err.Error(), 1)
	}

	prober := probe.NewFFprobe(pipelineConfig.FFprobeBin)
	duration, err := prober.Duration(c.Context, c.String("input"))
	if err != nil {
		return cli.Exit("Failed to probe: "+err.Error(), 1)
	}
	log.Printf("Duration: %s", duration)
	return nil
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "opusbot-cli",
		Description: "A development CLI tool for running the transcode pipeline without Discord",
		Commands: []*cli.Command{
			{
				Name:   "encode",
				Usage:  "Resolve a source and encode it to Opus",
				Action: runEncode,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input",
						Usage: "Path to a local media file",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "URL of an audio file or media page",
					},
					&cli.IntFlag{
						Name:  "bitrate",
						Usage: "Target bitrate in kbps",
						Value: transcode.DefaultBitrateKbps,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Encoder mode: voice or music",
						Value: string(transcode.ModeVoice),
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Where to write the encoded file",
						Value: "output.ogg",
					},
				},
			},
			{
				Name:   "probe",
				Usage:  "Print the duration of a media file",
				Action: runProbe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Usage:    "Path to the media file to probe",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
