package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service wires the pipeline to its collaborators.
type Service struct {
	store    Store
	files    FileStore
	queue    Enqueuer
	notifier Notifier

	now func() time.Time
}

// NewService creates a Service. A nil notifier disables UI notifications.
func NewService(store Store, files FileStore, queue Enqueuer, notifier Notifier) *Service {
	return &Service{
		store:    store,
		files:    files,
		queue:    queue,
		notifier: notifier,
		now:      time.Now,
	}
}

// notify is fire-and-forget: failures are logged and never reach the caller.
func (s *Service) notify(ctx context.Context, resource string, id uuid.UUID, status Status) {
	if s.notifier == nil {
		return
	}
	ev := Event{Resource: resource, ID: id, Status: status}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		slog.Warn("ui notification failed",
			"resource", resource,
			"id", id,
			"status", status,
			"error", err,
		)
	}
}

// failTimeout bounds the bookkeeping done after a unit has failed.
const failTimeout = 10 * time.Second

// settleCtx outlives the unit's own deadline so a unit that failed by timing
// out can still be recorded as failed.
func settleCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
}

// failImport records cause on the import and announces the failure.
func (s *Service) failImport(ctx context.Context, id uuid.UUID, cause error) {
	ctx, cancel := settleCtx(ctx)
	defer cancel()

	if err := s.store.FailImport(ctx, id, cause.Error()); err != nil {
		slog.Error("failed to mark import failed", "import_id", id, "error", err)
	}
	s.notify(ctx, "import", id, StatusFailed)
}

// failStatement records cause on the statement and announces the failure.
func (s *Service) failStatement(ctx context.Context, id uuid.UUID, cause error) {
	ctx, cancel := settleCtx(ctx)
	defer cancel()

	if err := s.store.FailStatement(ctx, id, cause.Error()); err != nil {
		slog.Error("failed to mark statement failed", "statement_id", id, "error", err)
	}
	s.notify(ctx, "statement", id, StatusFailed)
}

func (s *Service) enqueue(ctx context.Context, kind JobKind, id uuid.UUID) error {
	if err := s.queue.Enqueue(ctx, Job{Kind: kind, ID: id}); err != nil {
		return fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return nil
}

// GetImport returns one import.
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	return s.store.GetImport(ctx, id)
}

// ListImports returns all imports, newest first.
func (s *Service) ListImports(ctx context.Context) ([]Import, error) {
	return s.store.ListImports(ctx)
}

// GetStatement returns one statement with its writer ids.
func (s *Service) GetStatement(ctx context.Context, id uuid.UUID) (Statement, error) {
	return s.store.GetStatement(ctx, id)
}

// ListStatements returns all statements, newest first.
func (s *Service) ListStatements(ctx context.Context) ([]Statement, error) {
	return s.store.ListStatements(ctx)
}

// Stats returns dashboard counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}
