package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/JonMunkholm/royalties/internal/jobs")

// Units is the part of core.Service the runner drives.
type Units interface {
	RunImport(ctx context.Context, id uuid.UUID) error
	PopulateStatement(ctx context.Context, id uuid.UUID) (core.PopulateResult, error)
	ExportStatement(ctx context.Context, id uuid.UUID) (core.ExportResult, error)
}

// RunnerConfig controls per-job locking and timeouts.
type RunnerConfig struct {
	LockTTL time.Duration // default: Timeout + 1m
	Timeout time.Duration // default: 30m
}

// Runner executes jobs against the service. It is the Handler passed to a
// Dispatcher.
type Runner struct {
	units  Units
	locker Locker
	cfg    RunnerConfig
}

// NewRunner creates a Runner. A nil locker disables cross-process locking.
func NewRunner(units Units, locker Locker, cfg RunnerConfig) *Runner {
	if locker == nil {
		locker = NopLocker{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Timeout + time.Minute
	}
	return &Runner{units: units, locker: locker, cfg: cfg}
}

// LockKey is the lock held while a job runs.
func LockKey(job core.Job) string {
	return fmt.Sprintf("royalties:job:%s:%s", job.Kind, job.ID)
}

// Handle runs one job. Jobs whose unit is held by another worker, or is no
// longer pending, are skipped and reported as success so they are not
// redelivered.
func (r *Runner) Handle(ctx context.Context, job core.Job) error {
	log := logging.WithFields(ctx, "job", job.String())

	release, err := r.locker.Lock(ctx, LockKey(job), r.cfg.LockTTL)
	if errors.Is(err, ErrLocked) {
		log.Info("job skipped: unit locked elsewhere")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", job, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release job lock", "error", err)
		}
	}()

	ctx, span := tracer.Start(ctx, "job."+string(job.Kind),
		trace.WithAttributes(
			attribute.String("job.kind", string(job.Kind)),
			attribute.String("job.id", job.ID.String()),
		),
	)
	defer span.End()
	log = logging.WithFields(ctx, "job", job.String())

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	log.Info("job started")

	err = r.run(ctx, job)
	switch {
	case err == nil:
		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
		return nil
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrInvoiced):
		log.Info("job skipped: unit not runnable", "reason", err.Error())
		span.SetAttributes(attribute.Bool("job.skipped", true))
		return nil
	case errors.Is(err, core.ErrNotFound):
		// Deleted before the job ran.
		log.Warn("job skipped: unit not found", "error", err)
		return nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
}

func (r *Runner) run(ctx context.Context, job core.Job) error {
	switch job.Kind {
	case core.JobImport:
		return r.units.RunImport(ctx, job.ID)
	case core.JobPopulate:
		res, err := r.units.PopulateStatement(ctx, job.ID)
		if err == nil {
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.Int("statement.assigned", res.Assigned),
				attribute.Int("statement.conflicts", res.Conflicts),
			)
		}
		return err
	case core.JobExport:
		_, err := r.units.ExportStatement(ctx, job.ID)
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
