package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"opusbot/internal/config"
	"opusbot/internal/datalayer"
	"opusbot/internal/delivery"
	"opusbot/internal/handler"
	"opusbot/internal/health"
	"opusbot/internal/pipeline"
	"opusbot/internal/probe"
	"opusbot/internal/repository"
	"opusbot/internal/scratch"
	"opusbot/internal/source"
	"opusbot/internal/transcode"
)

// verifyBinaries fails fast when the external tools the pipeline shells
// out to are not installed.
func verifyBinaries(binaries ...string) error {
	for _, binary := range binaries {
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("required binary %q not found on PATH: %w", binary, err)
		}
	}
	return nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	pipelineConfig, err := config.NewPipelineConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load pipeline config: %w", err)
	}

	if err := verifyBinaries(pipelineConfig.FFmpegBin, pipelineConfig.FFprobeBin, pipelineConfig.YTDLPBin); err != nil {
		return err
	}

	slog.Info("Effective pipeline settings",
		"maxConcurrentJobs", pipelineConfig.MaxConcurrentJobs,
		"jobDeadline", pipelineConfig.JobDeadline,
		"encodeTimeout", pipelineConfig.EncodeTimeout,
		"maxSourceDuration", pipelineConfig.MaxSourceDuration,
		"maxSourceSizeMB", pipelineConfig.MaxSourceSizeMB,
		"defaultBitrateKbps", pipelineConfig.DefaultBitrateKbps,
		"defaultVoiceMode", pipelineConfig.DefaultVoiceMode,
		"scratchRoot", pipelineConfig.ScratchRoot,
	)

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}

	postgresConfig, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load postgres config: %w", err)
	}

	pool, err := datalayer.NewPostgresPool(context.Background(), postgresConfig.DSN())
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer pool.Close()

	if err := datalayer.MigratePostgres(pool); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	scratchManager, err := scratch.NewManager(pipelineConfig.ScratchRoot)
	if err != nil {
		return fmt.Errorf("failed to prepare scratch root: %w", err)
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

	session, err := handler.NewSession(discordConfig.Token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	coordinator, err := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Gate:                pipeline.NewGate(pipelineConfig.MaxConcurrentJobs),
		Scratch:             scratchManager,
		Resolver:            resolver,
		Encoder:             encoder,
		Deliverer:           delivery.NewDiscord(session),
		JobDeadline:         pipelineConfig.JobDeadline,
		RetryReducedBitrate: pipelineConfig.RetryReducedBitrate,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	prefs := repository.NewPostgresPreferencesRepository(pool, repository.Preferences{
		BitrateKbps: pipelineConfig.DefaultBitrateKbps,
		VoiceMode:   pipelineConfig.DefaultVoiceMode,
	})

	handler.Handlers{
		Ready:             handler.ReadyLog,
		InteractionCreate: handler.MakeInteractionCreateHandler(coordinator, prefs),
	}.Attach(session)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := handler.EstablishCommands(session, discordConfig.GuildID); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	healthServer := health.NewServer(pipelineConfig.HealthAddr)
	go func() {
		if err := healthServer.Start(); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down health server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
