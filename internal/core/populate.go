package core

// populate.go assigns matched royalties to a statement, recording a conflict
// whenever a royalty is taken from another statement.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CreateStatement validates the writer set, creates a pending statement and
// enqueues its population job.
func (s *Service) CreateStatement(ctx context.Context, req NewStatement) (Statement, error) {
	if err := ValidateRequest(req); err != nil {
		return Statement{}, err
	}
	req.WriterIDs = uniqueIDs(req.WriterIDs)
	missing, err := s.store.MissingWriters(ctx, req.WriterIDs)
	if err != nil {
		return Statement{}, fmt.Errorf("check writers: %w", err)
	}
	if len(missing) > 0 {
		return Statement{}, notFound("writer", missing[0])
	}

	st, err := s.store.CreateStatement(ctx, req)
	if err != nil {
		return Statement{}, fmt.Errorf("create statement: %w", err)
	}

	if err := s.enqueue(ctx, JobPopulate, st.ID); err != nil {
		s.failStatement(ctx, st.ID, err)
		return st, err
	}

	slog.Info("statement created",
		"statement_id", st.ID,
		"fiscal_year", st.FiscalYear,
		"fiscal_quarter", st.FiscalQuarter,
		"writers", len(st.WriterIDs),
	)
	return st, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PopulateResult summarises one population run.
type PopulateResult struct {
	Assigned  int
	Conflicts int
}

// PopulateStatement executes the population unit. On success the statement is
// completed and an export job is enqueued. A statement that is not pending is
// left alone and ErrInvalidTransition is returned; any other failure marks it
// failed and is returned.
func (s *Service) PopulateStatement(ctx context.Context, id uuid.UUID) (PopulateResult, error) {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return PopulateResult{}, err
	}
	if st.Invoiced {
		return PopulateResult{}, ErrInvoiced
	}
	if err := s.store.StartStatement(ctx, id); err != nil {
		return PopulateResult{}, fmt.Errorf("start statement %s: %w", id, err)
	}
	s.notify(ctx, "statement", id, StatusProcessing)

	log := slog.With("statement_id", id)
	start := time.Now()

	res, err := s.assignRoyalties(ctx, st)
	if err != nil {
		s.failStatement(ctx, id, err)
		log.Error("statement population failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return PopulateResult{}, err
	}

	s.notify(ctx, "statement", id, StatusCompleted)
	log.Info("statement populated",
		"royalties_assigned", res.Assigned,
		"conflicts", res.Conflicts,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := s.enqueue(ctx, JobExport, id); err != nil {
		log.Error("export not scheduled", "error", err)
		return res, err
	}
	return res, nil
}

func (s *Service) assignRoyalties(ctx context.Context, st Statement) (PopulateResult, error) {
	var res PopulateResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		matched, err := tx.MatchRoyalties(ctx, st)
		if err != nil {
			return fmt.Errorf("match royalties: %w", err)
		}

		res = PopulateResult{}
		for _, m := range matched {
			if m.StatementID != nil && *m.StatementID != st.ID {
				if err := tx.CreateConflict(ctx, Conflict{
					StatementID:            st.ID,
					RoyaltyID:              m.ID,
					ConflictingStatementID: *m.StatementID,
				}); err != nil {
					return &PersistenceError{Op: "create conflict", Err: err}
				}
				res.Conflicts++
			}

			final := FinalAmount(m.DistributedAmount, m.RightTypeGroup)
			if err := tx.AssignRoyalty(ctx, m.ID, st.ID, final); err != nil {
				return &PersistenceError{Op: fmt.Sprintf("assign royalty %d", m.ID), Err: err}
			}
			res.Assigned++
		}

		return tx.CompleteStatement(ctx, st.ID, res.Assigned)
	})
	return res, err
}

// MarkInvoiced locks a completed statement. It is refused while any conflict
// is unresolved.
func (s *Service) MarkInvoiced(ctx context.Context, id uuid.UUID) (Statement, error) {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	if st.Invoiced {
		return Statement{}, ErrInvoiced
	}
	if st.Status != StatusCompleted {
		return Statement{}, fmt.Errorf("statement is %s: %w", st.Status, ErrInvalidTransition)
	}
	n, err := s.store.CountUnresolvedConflicts(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	if n > 0 {
		return Statement{}, fmt.Errorf("%d open: %w", n, ErrUnresolvedConflicts)
	}

	if err := s.store.MarkStatementInvoiced(ctx, id, s.now()); err != nil {
		return Statement{}, err
	}
	s.notify(ctx, "statement", id, st.Status)
	slog.Info("statement invoiced", "statement_id", id)
	return s.store.GetStatement(ctx, id)
}

// ListConflicts returns a statement's conflicts.
func (s *Service) ListConflicts(ctx context.Context, statementID uuid.UUID) ([]Conflict, error) {
	if _, err := s.store.GetStatement(ctx, statementID); err != nil {
		return nil, err
	}
	return s.store.ListConflicts(ctx, statementID)
}

// ResolveConflict marks one conflict as handled.
func (s *Service) ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error {
	if err := s.store.ResolveConflict(ctx, statementID, conflictID); err != nil {
		return err
	}
	slog.Info("conflict resolved", "statement_id", statementID, "conflict_id", conflictID)
	return nil
}

// DeleteStatement removes a statement that is neither invoiced nor being
// processed. Its royalties become unassigned.
func (s *Service) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return err
	}
	if st.Invoiced {
		return ErrInvoiced
	}
	if st.Status == StatusProcessing {
		return fmt.Errorf("statement is processing: %w", ErrInvalidTransition)
	}
	if err := s.store.DeleteStatement(ctx, id); err != nil {
		return err
	}
	if st.ExportKey != "" {
		for _, key := range []string{st.ExportKey, xlsxKey(st.ExportKey)} {
			if err := s.files.Delete(ctx, key); err != nil {
				slog.Warn("failed to delete export", "key", key, "error", err)
			}
		}
	}
	slog.Info("statement deleted", "statement_id", id)
	return nil
}
