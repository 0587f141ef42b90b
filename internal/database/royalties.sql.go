package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RoyaltyCopyColumns is the column order used by InsertRoyalties.
var RoyaltyCopyColumns = []string{
	"import_id",
	"batch_id",
	"work_id",
	"right_type_id",
	"territory_id",
	"exploitation_id",
	"agreement_code",
	"custom_work_id",
	"distributed_amount",
	"percentage_paid",
	"unit_sum",
	"wht_adj_received_amount",
	"wht_adj_source_amount",
	"direct_collect_fee_taken",
	"direct_collected_amount",
	"credit_or_debit",
	"recording_artist",
	"av_production_title",
	"period_start",
	"period_end",
	"source_name",
	"revenue_source_name",
	"generated_at_cover_rate",
}

type InsertRoyaltiesParams struct {
	ImportID              pgtype.UUID
	BatchID               int64
	WorkID                int64
	RightTypeID           int64
	TerritoryID           int64
	ExploitationID        pgtype.Int8
	AgreementCode         pgtype.Text
	CustomWorkID          pgtype.Text
	DistributedAmount     pgtype.Numeric
	PercentagePaid        pgtype.Numeric
	UnitSum               pgtype.Numeric
	WhtAdjReceivedAmount  pgtype.Numeric
	WhtAdjSourceAmount    pgtype.Numeric
	DirectCollectFeeTaken pgtype.Numeric
	DirectCollectedAmount pgtype.Numeric
	CreditOrDebit         pgtype.Text
	RecordingArtist       pgtype.Text
	AvProductionTitle     pgtype.Text
	PeriodStart           pgtype.Date
	PeriodEnd             pgtype.Date
	SourceName            pgtype.Text
	RevenueSourceName     pgtype.Text
	GeneratedAtCoverRate  pgtype.Text
}

func (p InsertRoyaltiesParams) copyRow() []any {
	return []any{
		p.ImportID,
		p.BatchID,
		p.WorkID,
		p.RightTypeID,
		p.TerritoryID,
		p.ExploitationID,
		p.AgreementCode,
		p.CustomWorkID,
		p.DistributedAmount,
		p.PercentagePaid,
		p.UnitSum,
		p.WhtAdjReceivedAmount,
		p.WhtAdjSourceAmount,
		p.DirectCollectFeeTaken,
		p.DirectCollectedAmount,
		p.CreditOrDebit,
		p.RecordingArtist,
		p.AvProductionTitle,
		p.PeriodStart,
		p.PeriodEnd,
		p.SourceName,
		p.RevenueSourceName,
		p.GeneratedAtCoverRate,
	}
}

// InsertRoyalties bulk loads rows with the COPY protocol.
func (q *Queries) InsertRoyalties(ctx context.Context, arg []InsertRoyaltiesParams) (int64, error) {
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"royalties"},
		RoyaltyCopyColumns,
		pgx.CopyFromSlice(len(arg), func(i int) ([]any, error) {
			return arg[i].copyRow(), nil
		}),
	)
}

const matchRoyalties = `-- name: MatchRoyalties :many
SELECT r.id, r.statement_id, r.distributed_amount, rt."group"
FROM royalties r
JOIN imports i ON i.id = r.import_id
JOIN right_types rt ON rt.id = r.right_type_id
WHERE i.fiscal_year = $2
  AND i.fiscal_quarter = $3
  AND r.statement_id IS DISTINCT FROM $1
  AND EXISTS (
      SELECT 1 FROM work_writers ww
      WHERE ww.work_id = r.work_id AND ww.writer_id = ANY($4::bigint[])
  )
ORDER BY r.id
FOR UPDATE OF r
`

type MatchRoyaltiesParams struct {
	StatementID   pgtype.UUID
	FiscalYear    int32
	FiscalQuarter int32
	WriterIds     []int64
}

type MatchRoyaltiesRow struct {
	ID                int64
	StatementID       pgtype.UUID
	DistributedAmount pgtype.Numeric
	RightTypeGroup    string
}

func (q *Queries) MatchRoyalties(ctx context.Context, arg MatchRoyaltiesParams) ([]MatchRoyaltiesRow, error) {
	rows, err := q.db.Query(ctx, matchRoyalties,
		arg.StatementID,
		arg.FiscalYear,
		arg.FiscalQuarter,
		arg.WriterIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchRoyaltiesRow
	for rows.Next() {
		var i MatchRoyaltiesRow
		if err := rows.Scan(
			&i.ID,
			&i.StatementID,
			&i.DistributedAmount,
			&i.RightTypeGroup,
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

const assignRoyalty = `-- name: AssignRoyalty :exec
UPDATE royalties SET statement_id = $2, final_distributed_amount = $3 WHERE id = $1
`

type AssignRoyaltyParams struct {
	ID                     int64
	StatementID            pgtype.UUID
	FinalDistributedAmount pgtype.Numeric
}

func (q *Queries) AssignRoyalty(ctx context.Context, arg AssignRoyaltyParams) error {
	_, err := q.db.Exec(ctx, assignRoyalty, arg.ID, arg.StatementID, arg.FinalDistributedAmount)
	return err
}

const deleteRoyaltiesByImport = `-- name: DeleteRoyaltiesByImport :execrows
DELETE FROM royalties WHERE import_id = $1
`

func (q *Queries) DeleteRoyaltiesByImport(ctx context.Context, importID pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRoyaltiesByImport, importID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countInvoicedRoyaltiesByImport = `-- name: CountInvoicedRoyaltiesByImport :one
SELECT count(*)
FROM royalties r
JOIN statements s ON s.id = r.statement_id
WHERE r.import_id = $1 AND s.invoiced
`

func (q *Queries) CountInvoicedRoyaltiesByImport(ctx context.Context, importID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countInvoicedRoyaltiesByImport, importID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listStatementRoyalties = `-- name: ListStatementRoyalties :many
SELECT
    r.id,
    w.id,
    w.work_id,
    w.title,
    rt.name,
    rt."group",
    t.name,
    b.code,
    r.distributed_amount,
    r.final_distributed_amount,
    r.period_start,
    r.period_end,
    r.recording_artist,
    r.source_name
FROM royalties r
JOIN works w ON w.id = r.work_id
JOIN right_types rt ON rt.id = r.right_type_id
JOIN territories t ON t.id = r.territory_id
JOIN batches b ON b.id = r.batch_id
WHERE r.statement_id = $1
ORDER BY r.id
`

type ListStatementRoyaltiesRow struct {
	ID                     int64
	WorkPK                 int64
	WorkID                 string
	WorkTitle              pgtype.Text
	RightType              string
	RightTypeGroup         string
	Territory              string
	BatchCode              string
	DistributedAmount      pgtype.Numeric
	FinalDistributedAmount pgtype.Numeric
	PeriodStart            pgtype.Date
	PeriodEnd              pgtype.Date
	RecordingArtist        pgtype.Text
	SourceName             pgtype.Text
}

func (q *Queries) ListStatementRoyalties(ctx context.Context, statementID pgtype.UUID) ([]ListStatementRoyaltiesRow, error) {
	rows, err := q.db.Query(ctx, listStatementRoyalties, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStatementRoyaltiesRow
	for rows.Next() {
		var i ListStatementRoyaltiesRow
		if err := rows.Scan(
			&i.ID,
			&i.WorkPK,
			&i.WorkID,
			&i.WorkTitle,
			&i.RightType,
			&i.RightTypeGroup,
			&i.Territory,
			&i.BatchCode,
			&i.DistributedAmount,
			&i.FinalDistributedAmount,
			&i.PeriodStart,
			&i.PeriodEnd,
			&i.RecordingArtist,
			&i.SourceName,
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
