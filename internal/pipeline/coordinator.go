// Package pipeline coordinates one transcode job end to end: slot
// acquisition, scratch allocation, source resolution, encoding, and
// delivery, under a single per-job deadline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"opusbot/internal/scratch"
	"opusbot/internal/source"
	"opusbot/internal/transcode"
)

// Resolver materializes a reference into the job's scratch space.
type Resolver interface {
	Resolve(ctx context.Context, ref source.Reference, space *scratch.Space) (*source.RawMedia, error)
}

// Deliverer hands the finished artifact, or the failure summary, back
// to the chat the job came from.
type Deliverer interface {
	DeliverArtifact(ctx context.Context, chatID string, artifact *transcode.Artifact) error
	DeliverFailure(ctx context.Context, chatID string, message string) error
}

// CoordinatorConfig wires the coordinator's collaborators.
type CoordinatorConfig struct {
	Gate      *Gate
	Scratch   *scratch.Manager
	Resolver  Resolver
	Encoder   transcode.Encoder
	Deliverer Deliverer
	IDs       IDSource

	// JobDeadline bounds one job end to end, including time spent
	// waiting for a concurrency slot.
	JobDeadline time.Duration

	// RetryReducedBitrate re-runs a failed encode once at the lowest
	// bitrate before giving up.
	RetryReducedBitrate bool
}

// Coordinator drives jobs through their state machine. One Process call
// owns one job; jobs never share scratch space or subprocesses.
type Coordinator struct {
	gate         *Gate
	scratch      *scratch.Manager
	resolver     Resolver
	encoder      transcode.Encoder
	deliverer    Deliverer
	ids          IDSource
	deadline     time.Duration
	retryReduced bool
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Gate == nil || cfg.Scratch == nil || cfg.Resolver == nil || cfg.Encoder == nil || cfg.Deliverer == nil {
		return nil, fmt.Errorf("coordinator requires gate, scratch, resolver, encoder, and deliverer")
	}
	ids := cfg.IDs
	if ids == nil {
		ids = UUIDSource{}
	}
	deadline := cfg.JobDeadline
	if deadline <= 0 {
		deadline = 40 * time.Minute
	}
	return &Coordinator{
		gate:         cfg.Gate,
		scratch:      cfg.Scratch,
		resolver:     cfg.Resolver,
		encoder:      cfg.Encoder,
		deliverer:    cfg.Deliverer,
		ids:          ids,
		deadline:     deadline,
		retryReduced: cfg.RetryReducedBitrate,
	}, nil
}

// NewJob creates a Pending job for the request.
func (c *Coordinator) NewJob(req Request) (*Job, error) {
	id, err := c.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}
	return newJob(id, req, time.Now()), nil
}

// Process drives the job to exactly one terminal state and delivers
// exactly one user-visible outcome. It blocks; callers run it in its
// own goroutine.
func (c *Coordinator) Process(ctx context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	logger := slog.With(
		slog.String("jobID", job.ID),
		slog.String("chatID", job.ChatID),
	)

	slot, err := c.gate.Acquire(ctx)
	if err != nil {
		c.fail(job, logger, fmt.Errorf("waiting for a free slot: %w", err))
		return
	}
	defer slot.Release()

	space, err := c.scratch.Acquire(job.ID)
	if err != nil {
		c.fail(job, logger, err)
		return
	}
	defer func() {
		if err := space.Release(); err != nil {
			logger.Warn("failed to release scratch space", slog.Any("error", err))
		}
	}()

	job.advance(StateResolving)
	raw, err := c.resolver.Resolve(ctx, job.Ref, space)
	if err != nil {
		c.fail(job, logger, err)
		return
	}
	logger.Info("source resolved",
		slog.Int64("bytes", raw.Size),
		slog.Duration("duration", raw.Duration),
	)

	job.advance(StateTranscoding)
	artifact, err := c.transcodeWithRetry(ctx, job, logger, raw, space)
	if err != nil {
		c.fail(job, logger, err)
		return
	}
	logger.Info("transcode finished",
		slog.Int64("bytes", artifact.Size),
		slog.Int("bitrateKbps", artifact.BitrateKbps),
		slog.String("mode", string(artifact.Mode)),
	)

	job.advance(StateDelivering)
	if err := c.deliverer.DeliverArtifact(ctx, job.ChatID, artifact); err != nil {
		c.fail(job, logger, fmt.Errorf("delivering artifact: %w", err))
		return
	}

	job.finish(StateCompleted, nil)
	logger.Info("job completed", slog.Duration("elapsed", time.Since(job.CreatedAt)))
}

func (c *Coordinator) transcodeWithRetry(ctx context.Context, job *Job, logger *slog.Logger, raw *source.RawMedia, space *scratch.Space) (*transcode.Artifact, error) {
	artifact, err := c.encoder.Transcode(ctx, raw, space, job.Options)
	if err == nil {
		return artifact, nil
	}

	var encodeErr *transcode.EncodeFailedError
	canRetry := c.retryReduced &&
		errors.As(err, &encodeErr) &&
		job.Options.BitrateKbps != transcode.LowestBitrate() &&
		ctx.Err() == nil
	if !canRetry {
		return nil, err
	}

	reduced := job.Options
	reduced.BitrateKbps = transcode.LowestBitrate()
	logger.Warn("encode failed, retrying at reduced bitrate",
		slog.Int("bitrateKbps", reduced.BitrateKbps),
		slog.Any("error", err),
	)
	return c.encoder.Transcode(ctx, raw, space, reduced)
}

// fail records the terminal state and sends the failure summary. The
// summary is sent on a fresh context because the job's own context may
// already be dead.
func (c *Coordinator) fail(job *Job, logger *slog.Logger, err error) {
	terminal := StateFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		terminal = StateCancelled
	}
	if !job.finish(terminal, err) {
		return
	}

	logger.Error("job ended",
		slog.String("state", string(terminal)),
		slog.Any("error", err),
	)

	deliverCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if derr := c.deliverer.DeliverFailure(deliverCtx, job.ChatID, UserMessage(err)); derr != nil {
		logger.Error("failed to deliver failure message", slog.Any("error", derr))
	}
}
