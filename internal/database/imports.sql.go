package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const importColumns = `id, original_file_name, file_key, fiscal_year, fiscal_quarter, status,
    number_of_royalties_added, error_message, started_at, completed_at, created_at`

func scanImport(row pgx.Row) (Import, error) {
	var i Import
	err := row.Scan(
		&i.ID,
		&i.OriginalFileName,
		&i.FileKey,
		&i.FiscalYear,
		&i.FiscalQuarter,
		&i.Status,
		&i.NumberOfRoyaltiesAdded,
		&i.ErrorMessage,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createImport = `-- name: CreateImport :one
INSERT INTO imports (original_file_name, file_key, fiscal_year, fiscal_quarter)
VALUES ($1, $2, $3, $4)
RETURNING ` + importColumns

type CreateImportParams struct {
	OriginalFileName string
	FileKey          string
	FiscalYear       int32
	FiscalQuarter    int32
}

func (q *Queries) CreateImport(ctx context.Context, arg CreateImportParams) (Import, error) {
	return scanImport(q.db.QueryRow(ctx, createImport,
		arg.OriginalFileName,
		arg.FileKey,
		arg.FiscalYear,
		arg.FiscalQuarter,
	))
}

const getImport = `-- name: GetImport :one
SELECT ` + importColumns + ` FROM imports WHERE id = $1
`

func (q *Queries) GetImport(ctx context.Context, id pgtype.UUID) (Import, error) {
	return scanImport(q.db.QueryRow(ctx, getImport, id))
}

const listImports = `-- name: ListImports :many
SELECT ` + importColumns + ` FROM imports ORDER BY created_at DESC
`

func (q *Queries) ListImports(ctx context.Context) ([]Import, error) {
	rows, err := q.db.Query(ctx, listImports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Import
	for rows.Next() {
		i, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const startImport = `-- name: StartImport :execrows
UPDATE imports
SET status = 'processing', started_at = now(), updated_at = now()
WHERE id = $1 AND status = 'pending'
`

func (q *Queries) StartImport(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, startImport, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeImport = `-- name: CompleteImport :execrows
UPDATE imports
SET status = 'completed', number_of_royalties_added = $2, error_message = NULL,
    completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing'
`

type CompleteImportParams struct {
	ID                     pgtype.UUID
	NumberOfRoyaltiesAdded int32
}

func (q *Queries) CompleteImport(ctx context.Context, arg CompleteImportParams) (int64, error) {
	result, err := q.db.Exec(ctx, completeImport, arg.ID, arg.NumberOfRoyaltiesAdded)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failImport = `-- name: FailImport :execrows
UPDATE imports
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing')
`

type FailImportParams struct {
	ID           pgtype.UUID
	ErrorMessage pgtype.Text
}

func (q *Queries) FailImport(ctx context.Context, arg FailImportParams) (int64, error) {
	result, err := q.db.Exec(ctx, failImport, arg.ID, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failStuckImports = `-- name: FailStuckImports :execrows
UPDATE imports
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE status = 'processing' AND started_at < $1
`

type FailStuckParams struct {
	StartedBefore pgtype.Timestamptz
	ErrorMessage  pgtype.Text
}

func (q *Queries) FailStuckImports(ctx context.Context, arg FailStuckParams) (int64, error) {
	result, err := q.db.Exec(ctx, failStuckImports, arg.StartedBefore, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteImport = `-- name: DeleteImport :execrows
DELETE FROM imports WHERE id = $1
`

func (q *Queries) DeleteImport(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteImport, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
