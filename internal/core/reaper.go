package core

// reaper.go fails units that have been stuck in processing, usually because
// the worker running them died. A failed unit can be inspected and retried by
// creating a new one.

import (
	"context"
	"log/slog"
	"time"
)

// ReapMessage is the error recorded on units the reaper fails.
const ReapMessage = "processing timed out"

// ReaperConfig controls the stuck-unit reaper.
type ReaperConfig struct {
	Interval   time.Duration // how often to check (default: 1m)
	StuckAfter time.Duration // processing age that counts as stuck (default: 30m)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = 30 * time.Minute
	}
	return c
}

// ReapStuck fails every import and statement that started processing more
// than stuckAfter ago.
func (s *Service) ReapStuck(ctx context.Context, stuckAfter time.Duration) (ReapResult, error) {
	cutoff := s.now().Add(-stuckAfter)
	res, err := s.store.FailStuck(ctx, cutoff, ReapMessage)
	if err != nil {
		return ReapResult{}, err
	}
	if res.Imports > 0 || res.Statements > 0 {
		slog.Warn("reaped stuck units",
			"imports", res.Imports,
			"statements", res.Statements,
			"cutoff", cutoff,
		)
	}
	return res, nil
}

// StartReaper runs ReapStuck immediately and then every cfg.Interval until
// ctx is cancelled. Errors are logged and never stop the loop.
func (s *Service) StartReaper(ctx context.Context, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	slog.Info("reaper started",
		"interval", cfg.Interval.String(),
		"stuck_after", cfg.StuckAfter.String(),
	)

	s.runReap(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			s.runReap(ctx, cfg)
		}
	}
}

func (s *Service) runReap(ctx context.Context, cfg ReaperConfig) {
	start := time.Now()
	res, err := s.ReapStuck(ctx, cfg.StuckAfter)
	if err != nil {
		slog.Error("reap failed", "error", err)
		return
	}
	slog.Debug("reap completed",
		"imports", res.Imports,
		"statements", res.Statements,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// RequeuePending enqueues a job for every pending import and statement. The
// local backend keeps its queue in memory, so units created just before a
// restart would otherwise wait forever.
func (s *Service) RequeuePending(ctx context.Context) (int, error) {
	imports, err := s.store.ListImports(ctx)
	if err != nil {
		return 0, err
	}
	statements, err := s.store.ListStatements(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, imp := range imports {
		if imp.Status != StatusPending {
			continue
		}
		if err := s.enqueue(ctx, JobImport, imp.ID); err != nil {
			return n, err
		}
		n++
	}
	for _, st := range statements {
		if st.Status != StatusPending {
			continue
		}
		if err := s.enqueue(ctx, JobPopulate, st.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		slog.Info("requeued pending units", "count", n)
	}
	return n, nil
}
