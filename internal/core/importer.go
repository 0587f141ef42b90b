package core

// importer.go runs one Import unit: validate everything, then resolve and
// insert everything inside a single transaction.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateImportRequest describes an uploaded file.
type CreateImportRequest struct {
	FileName      string `json:"file_name" validate:"required,max=255"`
	FiscalYear    int    `json:"fiscal_year" validate:"required,min=1900,max=2200"`
	FiscalQuarter int    `json:"fiscal_quarter" validate:"required,min=1,max=4"`
}

// CreateImport stores the upload, registers a pending import and enqueues its
// job. If the job cannot be enqueued the import is marked failed.
func (s *Service) CreateImport(ctx context.Context, req CreateImportRequest, body io.Reader) (Import, error) {
	if err := ValidateRequest(req); err != nil {
		return Import{}, err
	}
	key := importFileKey(uuid.New(), req.FileName)
	if err := s.files.Put(ctx, key, body, "text/csv"); err != nil {
		return Import{}, fmt.Errorf("store upload: %w", err)
	}

	imp, err := s.store.CreateImport(ctx, NewImport{
		OriginalFileName: req.FileName,
		FileKey:          key,
		FiscalYear:       req.FiscalYear,
		FiscalQuarter:    req.FiscalQuarter,
	})
	if err != nil {
		return Import{}, fmt.Errorf("create import: %w", err)
	}

	if err := s.enqueue(ctx, JobImport, imp.ID); err != nil {
		s.failImport(ctx, imp.ID, err)
		return imp, err
	}

	slog.Info("import created",
		"import_id", imp.ID,
		"file", req.FileName,
		"fiscal_year", req.FiscalYear,
		"fiscal_quarter", req.FiscalQuarter,
	)
	return imp, nil
}

func importFileKey(id uuid.UUID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.csv"
	}
	return "imports/" + id.String() + "/" + name
}

// RunImport executes the import unit. A unit that is not pending is left alone
// and ErrInvalidTransition is returned. Any other failure marks the import
// failed with the error text and is returned to the caller.
func (s *Service) RunImport(ctx context.Context, id uuid.UUID) error {
	imp, err := s.store.GetImport(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.StartImport(ctx, id); err != nil {
		return fmt.Errorf("start import %s: %w", id, err)
	}
	s.notify(ctx, "import", id, StatusProcessing)

	log := slog.With("import_id", id)
	log.Info("import started", "file", imp.OriginalFileName)
	start := time.Now()

	added, err := s.importRoyalties(ctx, imp)
	if err != nil {
		s.failImport(ctx, id, err)
		log.Error("import failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}

	s.notify(ctx, "import", id, StatusCompleted)
	log.Info("import completed",
		"royalties_added", added,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Service) importRoyalties(ctx context.Context, imp Import) (int, error) {
	rc, err := s.files.Open(ctx, imp.FileKey)
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	_, rows, err := ReadRows(rc)
	if err != nil {
		return 0, err
	}

	// Validation pass: nothing is written unless every row passes.
	if errs := ValidateRows(rows); len(errs) > 0 {
		return 0, &ValidationError{Rows: errs}
	}

	var added int
	err = s.store.InTx(ctx, func(tx Tx) error {
		res := newResolver(tx)
		royalties := make([]Royalty, 0, len(rows))
		for _, row := range rows {
			r, err := res.royalty(ctx, imp.ID, row)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			royalties = append(royalties, r)
		}

		n, err := tx.InsertRoyalties(ctx, royalties)
		if err != nil {
			return &PersistenceError{Op: "insert royalties", Err: err}
		}
		added = int(n)

		return tx.CompleteImport(ctx, imp.ID, added)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
