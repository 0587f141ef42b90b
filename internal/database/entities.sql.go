package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
// Creation-only columns (description, title, iso_code, names) are never
// overwritten by a later import.

const upsertBatch = `-- name: UpsertBatch :one
INSERT INTO batches (code, description)
VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
RETURNING id
`

type UpsertBatchParams struct {
	Code        string
	Description pgtype.Text
}

func (q *Queries) UpsertBatch(ctx context.Context, arg UpsertBatchParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertBatch, arg.Code, arg.Description)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertWork = `-- name: UpsertWork :one
INSERT INTO works (work_id, title)
VALUES ($1, $2)
ON CONFLICT (work_id) DO UPDATE SET work_id = EXCLUDED.work_id
RETURNING id
`

type UpsertWorkParams struct {
	WorkID string
	Title  pgtype.Text
}

func (q *Queries) UpsertWork(ctx context.Context, arg UpsertWorkParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertWork, arg.WorkID, arg.Title)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertRightType = `-- name: UpsertRightType :one
INSERT INTO right_types (name, "group")
VALUES ($1, $2)
ON CONFLICT (name, "group") DO UPDATE SET name = EXCLUDED.name
RETURNING id
`

type UpsertRightTypeParams struct {
	Name  string
	Group string
}

func (q *Queries) UpsertRightType(ctx context.Context, arg UpsertRightTypeParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertRightType, arg.Name, arg.Group)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertTerritory = `-- name: UpsertTerritory :one
INSERT INTO territories (name, iso_code)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`

type UpsertTerritoryParams struct {
	Name    string
	IsoCode pgtype.Text
}

func (q *Queries) UpsertTerritory(ctx context.Context, arg UpsertTerritoryParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertTerritory, arg.Name, arg.IsoCode)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertExploitation = `-- name: UpsertExploitation :one
INSERT INTO exploitations (licence_id, title, artist, description, format)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (licence_id, title, artist) DO UPDATE SET licence_id = EXCLUDED.licence_id
RETURNING id
`

type UpsertExploitationParams struct {
	LicenceID   string
	Title       string
	Artist      string
	Description pgtype.Text
	Format      pgtype.Text
}

func (q *Queries) UpsertExploitation(ctx context.Context, arg UpsertExploitationParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertExploitation,
		arg.LicenceID,
		arg.Title,
		arg.Artist,
		arg.Description,
		arg.Format,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertWriter = `-- name: UpsertWriter :one
INSERT INTO writers (ip_code, first_name, last_name)
VALUES ($1, $2, $3)
ON CONFLICT (ip_code) DO UPDATE SET ip_code = EXCLUDED.ip_code
RETURNING id
`

type UpsertWriterParams struct {
	IpCode    string
	FirstName string
	LastName  string
}

func (q *Queries) UpsertWriter(ctx context.Context, arg UpsertWriterParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertWriter, arg.IpCode, arg.FirstName, arg.LastName)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const linkWorkWriter = `-- name: LinkWorkWriter :exec
INSERT INTO work_writers (work_id, writer_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

type LinkWorkWriterParams struct {
	WorkID   int64
	WriterID int64
}

func (q *Queries) LinkWorkWriter(ctx context.Context, arg LinkWorkWriterParams) error {
	_, err := q.db.Exec(ctx, linkWorkWriter, arg.WorkID, arg.WriterID)
	return err
}

const listExistingWriterIDs = `-- name: ListExistingWriterIDs :many
SELECT id FROM writers WHERE id = ANY($1::bigint[])
`

func (q *Queries) ListExistingWriterIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, listExistingWriterIDs, ids)
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

const listWritersForWorks = `-- name: ListWritersForWorks :many
SELECT ww.work_id, w.id, w.first_name, w.last_name, w.ip_code
FROM work_writers ww
JOIN writers w ON w.id = ww.writer_id
WHERE ww.work_id = ANY($1::bigint[])
ORDER BY ww.work_id, w.id
`

type ListWritersForWorksRow struct {
	WorkID    int64
	WriterID  int64
	FirstName string
	LastName  string
	IpCode    string
}

func (q *Queries) ListWritersForWorks(ctx context.Context, workIDs []int64) ([]ListWritersForWorksRow, error) {
	rows, err := q.db.Query(ctx, listWritersForWorks, workIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListWritersForWorksRow
	for rows.Next() {
		var i ListWritersForWorksRow
		if err := rows.Scan(
			&i.WorkID,
			&i.WriterID,
			&i.FirstName,
			&i.LastName,
			&i.IpCode,
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

const getStats = `-- name: GetStats :one
SELECT
    (SELECT count(*) FROM imports)                                     AS imports,
    (SELECT count(*) FROM statements)                                  AS statements,
    (SELECT count(*) FROM royalties)                                   AS royalties,
    (SELECT count(*) FROM royalties WHERE statement_id IS NULL)        AS unassigned_royalties,
    (SELECT count(*) FROM writers)                                     AS writers,
    (SELECT count(*) FROM statement_conflicts WHERE NOT resolved)      AS unresolved_conflicts
`

type GetStatsRow struct {
	Imports             int64
	Statements          int64
	Royalties           int64
	UnassignedRoyalties int64
	Writers             int64
	UnresolvedConflicts int64
}

func (q *Queries) GetStats(ctx context.Context) (GetStatsRow, error) {
	row := q.db.QueryRow(ctx, getStats)
	var i GetStatsRow
	err := row.Scan(
		&i.Imports,
		&i.Statements,
		&i.Royalties,
		&i.UnassignedRoyalties,
		&i.Writers,
		&i.UnresolvedConflicts,
	)
	return i, err
}
