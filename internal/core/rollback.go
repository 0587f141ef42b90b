package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RollbackResult reports what an import rollback removed.
type RollbackResult struct {
	ImportID         uuid.UUID `json:"import_id"`
	RoyaltiesDeleted int64     `json:"royalties_deleted"`
}

// RollbackImport deletes an import and every royalty it added. It is refused
// while the import is processing and when any of its royalties sits on an
// invoiced statement.
func (s *Service) RollbackImport(ctx context.Context, id uuid.UUID) (RollbackResult, error) {
	imp, err := s.store.GetImport(ctx, id)
	if err != nil {
		return RollbackResult{}, err
	}
	if imp.Status == StatusProcessing {
		return RollbackResult{}, fmt.Errorf("import is processing: %w", ErrInvalidTransition)
	}

	result := RollbackResult{ImportID: id}
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := tx.CountInvoicedRoyalties(ctx, id)
		if err != nil {
			return fmt.Errorf("count invoiced royalties: %w", err)
		}
		if locked > 0 {
			return fmt.Errorf("%d royalties: %w", locked, ErrImportLocked)
		}

		n, err := tx.DeleteImport(ctx, id)
		if err != nil {
			return &PersistenceError{Op: "delete import", Err: err}
		}
		result.RoyaltiesDeleted = n
		return nil
	})
	if err != nil {
		return RollbackResult{}, err
	}

	// Rows are gone; a leftover upload is only wasted space.
	if err := s.files.Delete(ctx, imp.FileKey); err != nil {
		slog.Warn("failed to delete upload", "key", imp.FileKey, "error", err)
	}

	slog.Info("import rolled back",
		"import_id", id,
		"royalties_deleted", result.RoyaltiesDeleted,
	)
	return result, nil
}
