package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createConflict = `-- name: CreateConflict :exec
INSERT INTO statement_conflicts (statement_id, royalty_id, conflicting_statement_id)
VALUES ($1, $2, $3)
`

type CreateConflictParams struct {
	StatementID            pgtype.UUID
	RoyaltyID              int64
	ConflictingStatementID pgtype.UUID
}

func (q *Queries) CreateConflict(ctx context.Context, arg CreateConflictParams) error {
	_, err := q.db.Exec(ctx, createConflict, arg.StatementID, arg.RoyaltyID, arg.ConflictingStatementID)
	return err
}

const listConflicts = `-- name: ListConflicts :many
SELECT id, statement_id, royalty_id, conflicting_statement_id, resolved, created_at
FROM statement_conflicts
WHERE statement_id = $1
ORDER BY id
`

func (q *Queries) ListConflicts(ctx context.Context, statementID pgtype.UUID) ([]StatementConflict, error) {
	rows, err := q.db.Query(ctx, listConflicts, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatementConflict
	for rows.Next() {
		var i StatementConflict
		if err := rows.Scan(
			&i.ID,
			&i.StatementID,
			&i.RoyaltyID,
			&i.ConflictingStatementID,
			&i.Resolved,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const resolveConflict = `-- name: ResolveConflict :execrows
UPDATE statement_conflicts SET resolved = true
WHERE id = $1 AND statement_id = $2
`

type ResolveConflictParams struct {
	ID          int64
	StatementID pgtype.UUID
}

func (q *Queries) ResolveConflict(ctx context.Context, arg ResolveConflictParams) (int64, error) {
	result, err := q.db.Exec(ctx, resolveConflict, arg.ID, arg.StatementID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countUnresolvedConflicts = `-- name: CountUnresolvedConflicts :one
SELECT count(*) FROM statement_conflicts WHERE statement_id = $1 AND NOT resolved
`

func (q *Queries) CountUnresolvedConflicts(ctx context.Context, statementID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnresolvedConflicts, statementID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
