package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const statementColumns = `id, fiscal_year, fiscal_quarter, status, number_of_royalties_assigned,
    error_message, invoiced, invoiced_at, export_key, started_at, completed_at, created_at`

func scanStatement(row pgx.Row) (Statement, error) {
	var i Statement
	err := row.Scan(
		&i.ID,
		&i.FiscalYear,
		&i.FiscalQuarter,
		&i.Status,
		&i.NumberOfRoyaltiesAssigned,
		&i.ErrorMessage,
		&i.Invoiced,
		&i.InvoicedAt,
		&i.ExportKey,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createStatement = `-- name: CreateStatement :one
INSERT INTO statements (fiscal_year, fiscal_quarter)
VALUES ($1, $2)
RETURNING ` + statementColumns

type CreateStatementParams struct {
	FiscalYear    int32
	FiscalQuarter int32
}

func (q *Queries) CreateStatement(ctx context.Context, arg CreateStatementParams) (Statement, error) {
	return scanStatement(q.db.QueryRow(ctx, createStatement, arg.FiscalYear, arg.FiscalQuarter))
}

const addStatementWriter = `-- name: AddStatementWriter :exec
INSERT INTO statement_writers (statement_id, writer_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

type AddStatementWriterParams struct {
	StatementID pgtype.UUID
	WriterID    int64
}

func (q *Queries) AddStatementWriter(ctx context.Context, arg AddStatementWriterParams) error {
	_, err := q.db.Exec(ctx, addStatementWriter, arg.StatementID, arg.WriterID)
	return err
}

const listStatementWriterIDs = `-- name: ListStatementWriterIDs :many
SELECT writer_id FROM statement_writers WHERE statement_id = $1 ORDER BY writer_id
`

func (q *Queries) ListStatementWriterIDs(ctx context.Context, statementID pgtype.UUID) ([]int64, error) {
	rows, err := q.db.Query(ctx, listStatementWriterIDs, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStatement = `-- name: GetStatement :one
SELECT ` + statementColumns + ` FROM statements WHERE id = $1
`

func (q *Queries) GetStatement(ctx context.Context, id pgtype.UUID) (Statement, error) {
	return scanStatement(q.db.QueryRow(ctx, getStatement, id))
}

const listStatements = `-- name: ListStatements :many
SELECT ` + statementColumns + ` FROM statements ORDER BY created_at DESC
`

func (q *Queries) ListStatements(ctx context.Context) ([]Statement, error) {
	rows, err := q.db.Query(ctx, listStatements)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Statement
	for rows.Next() {
		i, err := scanStatement(rows)
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

const startStatement = `-- name: StartStatement :execrows
UPDATE statements
SET status = 'processing', started_at = now(), updated_at = now()
WHERE id = $1 AND status = 'pending' AND NOT invoiced
`

func (q *Queries) StartStatement(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, startStatement, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeStatement = `-- name: CompleteStatement :execrows
UPDATE statements
SET status = 'completed', number_of_royalties_assigned = $2, error_message = NULL,
    completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing'
`

type CompleteStatementParams struct {
	ID                        pgtype.UUID
	NumberOfRoyaltiesAssigned int32
}

func (q *Queries) CompleteStatement(ctx context.Context, arg CompleteStatementParams) (int64, error) {
	result, err := q.db.Exec(ctx, completeStatement, arg.ID, arg.NumberOfRoyaltiesAssigned)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failStatement = `-- name: FailStatement :execrows
UPDATE statements
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing')
`

type FailStatementParams struct {
	ID           pgtype.UUID
	ErrorMessage pgtype.Text
}

func (q *Queries) FailStatement(ctx context.Context, arg FailStatementParams) (int64, error) {
	result, err := q.db.Exec(ctx, failStatement, arg.ID, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failStuckStatements = `-- name: FailStuckStatements :execrows
UPDATE statements
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE status = 'processing' AND started_at < $1
`

func (q *Queries) FailStuckStatements(ctx context.Context, arg FailStuckParams) (int64, error) {
	result, err := q.db.Exec(ctx, failStuckStatements, arg.StartedBefore, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const setStatementExport = `-- name: SetStatementExport :exec
UPDATE statements SET export_key = $2, updated_at = now() WHERE id = $1
`

type SetStatementExportParams struct {
	ID        pgtype.UUID
	ExportKey pgtype.Text
}

func (q *Queries) SetStatementExport(ctx context.Context, arg SetStatementExportParams) error {
	_, err := q.db.Exec(ctx, setStatementExport, arg.ID, arg.ExportKey)
	return err
}

const markStatementInvoiced = `-- name: MarkStatementInvoiced :execrows
UPDATE statements
SET invoiced = true, invoiced_at = $2, updated_at = now()
WHERE id = $1 AND status = 'completed' AND NOT invoiced
  AND NOT EXISTS (
      SELECT 1 FROM statement_conflicts c
      WHERE c.statement_id = statements.id AND NOT c.resolved
  )
`

type MarkStatementInvoicedParams struct {
	ID         pgtype.UUID
	InvoicedAt pgtype.Timestamptz
}

func (q *Queries) MarkStatementInvoiced(ctx context.Context, arg MarkStatementInvoicedParams) (int64, error) {
	result, err := q.db.Exec(ctx, markStatementInvoiced, arg.ID, arg.InvoicedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteStatement = `-- name: DeleteStatement :execrows
DELETE FROM statements WHERE id = $1 AND NOT invoiced AND status <> 'processing'
`

func (q *Queries) DeleteStatement(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteStatement, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
