package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	db "github.com/JonMunkholm/royalties/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGStore is the Postgres Store.
type PGStore struct {
	pool *pgxpool.Pool
	q    *db.Queries
}

var _ Store = (*PGStore)(nil)

// NewPGStore creates a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, q: db.New(pool)}
}

// InTx runs fn in one transaction.
func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: s.q.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func mapNoRows(err error, resource string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(resource, id)
	}
	return err
}

func importFromDB(r db.Import) Import {
	imp := Import{
		OriginalFileName: r.OriginalFileName,
		FileKey:          r.FileKey,
		FiscalYear:       int(r.FiscalYear),
		FiscalQuarter:    int(r.FiscalQuarter),
		Status:           Status(r.Status),
		RoyaltiesAdded:   int(r.NumberOfRoyaltiesAdded),
		ErrorMessage:     FromPgText(r.ErrorMessage),
		StartedAt:        FromPgTimestamptz(r.StartedAt),
		CompletedAt:      FromPgTimestamptz(r.CompletedAt),
	}
	if id := FromPgUUID(r.ID); id != nil {
		imp.ID = *id
	}
	if t := FromPgTimestamptz(r.CreatedAt); t != nil {
		imp.CreatedAt = *t
	}
	return imp
}

func statementFromDB(r db.Statement, writerIDs []int64) Statement {
	st := Statement{
		FiscalYear:        int(r.FiscalYear),
		FiscalQuarter:     int(r.FiscalQuarter),
		WriterIDs:         writerIDs,
		Status:            Status(r.Status),
		RoyaltiesAssigned: int(r.NumberOfRoyaltiesAssigned),
		ErrorMessage:      FromPgText(r.ErrorMessage),
		Invoiced:          r.Invoiced,
		InvoicedAt:        FromPgTimestamptz(r.InvoicedAt),
		ExportKey:         FromPgText(r.ExportKey),
		StartedAt:         FromPgTimestamptz(r.StartedAt),
		CompletedAt:       FromPgTimestamptz(r.CompletedAt),
	}
	if id := FromPgUUID(r.ID); id != nil {
		st.ID = *id
	}
	if t := FromPgTimestamptz(r.CreatedAt); t != nil {
		st.CreatedAt = *t
	}
	if st.WriterIDs == nil {
		st.WriterIDs = []int64{}
	}
	return st
}

func conflictFromDB(r db.StatementConflict) Conflict {
	c := Conflict{
		ID:        r.ID,
		RoyaltyID: r.RoyaltyID,
		Resolved:  r.Resolved,
	}
	if id := FromPgUUID(r.StatementID); id != nil {
		c.StatementID = *id
	}
	if id := FromPgUUID(r.ConflictingStatementID); id != nil {
		c.ConflictingStatementID = *id
	}
	if t := FromPgTimestamptz(r.CreatedAt); t != nil {
		c.CreatedAt = *t
	}
	return c
}

// ----------------------------------------------------------------------------
// Imports
// ----------------------------------------------------------------------------

func (s *PGStore) CreateImport(ctx context.Context, imp NewImport) (Import, error) {
	row, err := s.q.CreateImport(ctx, db.CreateImportParams{
		OriginalFileName: imp.OriginalFileName,
		FileKey:          imp.FileKey,
		FiscalYear:       int32(imp.FiscalYear),
		FiscalQuarter:    int32(imp.FiscalQuarter),
	})
	if err != nil {
		return Import{}, err
	}
	return importFromDB(row), nil
}

func (s *PGStore) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	row, err := s.q.GetImport(ctx, ToPgUUID(id))
	if err != nil {
		return Import{}, mapNoRows(err, "import", id)
	}
	return importFromDB(row), nil
}

func (s *PGStore) ListImports(ctx context.Context) ([]Import, error) {
	rows, err := s.q.ListImports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Import, len(rows))
	for i, r := range rows {
		out[i] = importFromDB(r)
	}
	return out, nil
}

// importTransition turns a zero-row status update into the right error.
func (s *PGStore) importTransition(ctx context.Context, id uuid.UUID, n int64, err error) error {
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetImport(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *PGStore) StartImport(ctx context.Context, id uuid.UUID) error {
	n, err := s.q.StartImport(ctx, ToPgUUID(id))
	return s.importTransition(ctx, id, n, err)
}

func (s *PGStore) FailImport(ctx context.Context, id uuid.UUID, message string) error {
	n, err := s.q.FailImport(ctx, db.FailImportParams{ID: ToPgUUID(id), ErrorMessage: ToPgText(message)})
	return s.importTransition(ctx, id, n, err)
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

func (s *PGStore) CreateStatement(ctx context.Context, st NewStatement) (Statement, error) {
	var out Statement
	err := s.InTx(ctx, func(tx Tx) error {
		q := tx.(*pgTx).q
		row, err := q.CreateStatement(ctx, db.CreateStatementParams{
			FiscalYear:    int32(st.FiscalYear),
			FiscalQuarter: int32(st.FiscalQuarter),
		})
		if err != nil {
			return err
		}
		for _, w := range st.WriterIDs {
			if err := q.AddStatementWriter(ctx, db.AddStatementWriterParams{StatementID: row.ID, WriterID: w}); err != nil {
				return fmt.Errorf("add writer %d: %w", w, err)
			}
		}
		out = statementFromDB(row, st.WriterIDs)
		return nil
	})
	return out, err
}

func (s *PGStore) GetStatement(ctx context.Context, id uuid.UUID) (Statement, error) {
	row, err := s.q.GetStatement(ctx, ToPgUUID(id))
	if err != nil {
		return Statement{}, mapNoRows(err, "statement", id)
	}
	writers, err := s.q.ListStatementWriterIDs(ctx, row.ID)
	if err != nil {
		return Statement{}, err
	}
	return statementFromDB(row, writers), nil
}

func (s *PGStore) ListStatements(ctx context.Context) ([]Statement, error) {
	rows, err := s.q.ListStatements(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Statement, len(rows))
	for i, r := range rows {
		writers, err := s.q.ListStatementWriterIDs(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out[i] = statementFromDB(r, writers)
	}
	return out, nil
}

func (s *PGStore) statementTransition(ctx context.Context, id uuid.UUID, n int64, err error) error {
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.q.GetStatement(ctx, ToPgUUID(id)); err != nil {
		return mapNoRows(err, "statement", id)
	}
	return ErrInvalidTransition
}

func (s *PGStore) StartStatement(ctx context.Context, id uuid.UUID) error {
	n, err := s.q.StartStatement(ctx, ToPgUUID(id))
	return s.statementTransition(ctx, id, n, err)
}

func (s *PGStore) FailStatement(ctx context.Context, id uuid.UUID, message string) error {
	n, err := s.q.FailStatement(ctx, db.FailStatementParams{ID: ToPgUUID(id), ErrorMessage: ToPgText(message)})
	return s.statementTransition(ctx, id, n, err)
}

func (s *PGStore) SetStatementExport(ctx context.Context, id uuid.UUID, key string) error {
	return s.q.SetStatementExport(ctx, db.SetStatementExportParams{ID: ToPgUUID(id), ExportKey: ToPgText(key)})
}

func (s *PGStore) MarkStatementInvoiced(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := s.q.MarkStatementInvoiced(ctx, db.MarkStatementInvoicedParams{
		ID:         ToPgUUID(id),
		InvoicedAt: ToPgTimestamptz(at),
	})
	return s.statementTransition(ctx, id, n, err)
}

func (s *PGStore) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	n, err := s.q.DeleteStatement(ctx, ToPgUUID(id))
	return s.statementTransition(ctx, id, n, err)
}

// StatementExportRows loads assigned royalties with each work's writers.
func (s *PGStore) StatementExportRows(ctx context.Context, id uuid.UUID) ([]ExportRow, error) {
	rows, err := s.q.ListStatementRoyalties(ctx, ToPgUUID(id))
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var workIDs []int64
	for _, r := range rows {
		if _, ok := seen[r.WorkPK]; !ok {
			seen[r.WorkPK] = struct{}{}
			workIDs = append(workIDs, r.WorkPK)
		}
	}

	byWork := make(map[int64][]Writer)
	if len(workIDs) > 0 {
		links, err := s.q.ListWritersForWorks(ctx, workIDs)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			byWork[l.WorkID] = append(byWork[l.WorkID], Writer{
				ID:        l.WriterID,
				FirstName: l.FirstName,
				LastName:  l.LastName,
				IPCode:    l.IpCode,
			})
		}
	}

	out := make([]ExportRow, len(rows))
	for i, r := range rows {
		out[i] = ExportRow{
			RoyaltyID:              r.ID,
			WorkID:                 r.WorkID,
			WorkTitle:              FromPgText(r.WorkTitle),
			Writers:                byWork[r.WorkPK],
			RightType:              r.RightType,
			RightTypeGroup:         r.RightTypeGroup,
			Territory:              r.Territory,
			BatchCode:              r.BatchCode,
			DistributedAmount:      FromPgNumeric(r.DistributedAmount),
			FinalDistributedAmount: FromPgNumeric(r.FinalDistributedAmount),
			PeriodStart:            FromPgDate(r.PeriodStart),
			PeriodEnd:              FromPgDate(r.PeriodEnd),
			RecordingArtist:        FromPgText(r.RecordingArtist),
			SourceName:             FromPgText(r.SourceName),
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Conflicts, writers, maintenance
// ----------------------------------------------------------------------------

func (s *PGStore) ListConflicts(ctx context.Context, statementID uuid.UUID) ([]Conflict, error) {
	rows, err := s.q.ListConflicts(ctx, ToPgUUID(statementID))
	if err != nil {
		return nil, err
	}
	out := make([]Conflict, len(rows))
	for i, r := range rows {
		out[i] = conflictFromDB(r)
	}
	return out, nil
}

func (s *PGStore) ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error {
	n, err := s.q.ResolveConflict(ctx, db.ResolveConflictParams{ID: conflictID, StatementID: ToPgUUID(statementID)})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("conflict", conflictID)
	}
	return nil
}

func (s *PGStore) CountUnresolvedConflicts(ctx context.Context, statementID uuid.UUID) (int, error) {
	n, err := s.q.CountUnresolvedConflicts(ctx, ToPgUUID(statementID))
	return int(n), err
}

func (s *PGStore) MissingWriters(ctx context.Context, ids []int64) ([]int64, error) {
	existing, err := s.q.ListExistingWriterIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		found[id] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *PGStore) FailStuck(ctx context.Context, cutoff time.Time, message string) (ReapResult, error) {
	var res ReapResult
	err := s.InTx(ctx, func(tx Tx) error {
		q := tx.(*pgTx).q
		arg := db.FailStuckParams{StartedBefore: ToPgTimestamptz(cutoff), ErrorMessage: ToPgText(message)}
		n, err := q.FailStuckImports(ctx, arg)
		if err != nil {
			return fmt.Errorf("fail stuck imports: %w", err)
		}
		res.Imports = n
		n, err = q.FailStuckStatements(ctx, arg)
		if err != nil {
			return fmt.Errorf("fail stuck statements: %w", err)
		}
		res.Statements = n
		return nil
	})
	return res, err
}

func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	r, err := s.q.GetStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Imports:             r.Imports,
		Statements:          r.Statements,
		Royalties:           r.Royalties,
		UnassignedRoyalties: r.UnassignedRoyalties,
		Writers:             r.Writers,
		UnresolvedConflicts: r.UnresolvedConflicts,
	}, nil
}

// ----------------------------------------------------------------------------
// Transaction
// ----------------------------------------------------------------------------

type pgTx struct {
	q *db.Queries
}

func (t *pgTx) UpsertBatch(ctx context.Context, code, description string) (int64, error) {
	return t.q.UpsertBatch(ctx, db.UpsertBatchParams{Code: code, Description: ToPgText(description)})
}

func (t *pgTx) UpsertWork(ctx context.Context, workID, title string) (int64, error) {
	return t.q.UpsertWork(ctx, db.UpsertWorkParams{WorkID: workID, Title: ToPgText(title)})
}

func (t *pgTx) UpsertRightType(ctx context.Context, name, group string) (int64, error) {
	return t.q.UpsertRightType(ctx, db.UpsertRightTypeParams{Name: name, Group: group})
}

func (t *pgTx) UpsertTerritory(ctx context.Context, name, isoCode string) (int64, error) {
	return t.q.UpsertTerritory(ctx, db.UpsertTerritoryParams{Name: name, IsoCode: ToPgText(isoCode)})
}

func (t *pgTx) UpsertExploitation(ctx context.Context, e Exploitation) (int64, error) {
	return t.q.UpsertExploitation(ctx, db.UpsertExploitationParams{
		LicenceID:   e.LicenceID,
		Title:       e.Title,
		Artist:      e.Artist,
		Description: ToPgText(e.Description),
		Format:      ToPgText(e.Format),
	})
}

func (t *pgTx) UpsertWriter(ctx context.Context, w Writer) (int64, error) {
	return t.q.UpsertWriter(ctx, db.UpsertWriterParams{
		IpCode:    w.IPCode,
		FirstName: w.FirstName,
		LastName:  w.LastName,
	})
}

func (t *pgTx) LinkWorkWriter(ctx context.Context, workID, writerID int64) error {
	return t.q.LinkWorkWriter(ctx, db.LinkWorkWriterParams{WorkID: workID, WriterID: writerID})
}

func (t *pgTx) InsertRoyalties(ctx context.Context, rows []Royalty) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	params := make([]db.InsertRoyaltiesParams, len(rows))
	for i, r := range rows {
		params[i] = db.InsertRoyaltiesParams{
			ImportID:              ToPgUUID(r.ImportID),
			BatchID:               r.BatchID,
			WorkID:                r.WorkID,
			RightTypeID:           r.RightTypeID,
			TerritoryID:           r.TerritoryID,
			ExploitationID:        ToPgInt8(r.ExploitationID),
			AgreementCode:         ToPgText(r.AgreementCode),
			CustomWorkID:          ToPgText(r.CustomWorkID),
			DistributedAmount:     ToPgNumeric(r.DistributedAmount),
			PercentagePaid:        ToPgNumeric(r.PercentagePaid),
			UnitSum:               ToPgNumeric(r.UnitSum),
			WhtAdjReceivedAmount:  ToPgNumeric(r.WhtAdjReceivedAmount),
			WhtAdjSourceAmount:    ToPgNumeric(r.WhtAdjSourceAmount),
			DirectCollectFeeTaken: ToPgNumeric(r.DirectCollectFeeTaken),
			DirectCollectedAmount: ToPgNumeric(r.DirectCollectedAmount),
			CreditOrDebit:         ToPgText(r.CreditOrDebit),
			RecordingArtist:       ToPgText(r.RecordingArtist),
			AvProductionTitle:     ToPgText(r.AvProductionTitle),
			PeriodStart:           ToPgDate(r.PeriodStart),
			PeriodEnd:             ToPgDate(r.PeriodEnd),
			SourceName:            ToPgText(r.SourceName),
			RevenueSourceName:     ToPgText(r.RevenueSourceName),
			GeneratedAtCoverRate:  ToPgText(r.GeneratedAtCoverRate),
		}
	}
	return t.q.InsertRoyalties(ctx, params)
}

func (t *pgTx) CompleteImport(ctx context.Context, id uuid.UUID, added int) error {
	n, err := t.q.CompleteImport(ctx, db.CompleteImportParams{
		ID:                     ToPgUUID(id),
		NumberOfRoyaltiesAdded: int32(added),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (t *pgTx) CountInvoicedRoyalties(ctx context.Context, importID uuid.UUID) (int, error) {
	n, err := t.q.CountInvoicedRoyaltiesByImport(ctx, ToPgUUID(importID))
	return int(n), err
}

func (t *pgTx) DeleteImport(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := t.q.DeleteRoyaltiesByImport(ctx, ToPgUUID(id))
	if err != nil {
		return 0, err
	}
	deleted, err := t.q.DeleteImport(ctx, ToPgUUID(id))
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, notFound("import", id)
	}
	return n, nil
}

func (t *pgTx) MatchRoyalties(ctx context.Context, st Statement) ([]MatchedRoyalty, error) {
	rows, err := t.q.MatchRoyalties(ctx, db.MatchRoyaltiesParams{
		StatementID:   ToPgUUID(st.ID),
		FiscalYear:    int32(st.FiscalYear),
		FiscalQuarter: int32(st.FiscalQuarter),
		WriterIds:     st.WriterIDs,
	})
	if err != nil {
		return nil, err
	}
	out := make([]MatchedRoyalty, len(rows))
	for i, r := range rows {
		out[i] = MatchedRoyalty{
			ID:                r.ID,
			StatementID:       FromPgUUID(r.StatementID),
			DistributedAmount: FromPgNumeric(r.DistributedAmount),
			RightTypeGroup:    r.RightTypeGroup,
		}
	}
	return out, nil
}

func (t *pgTx) AssignRoyalty(ctx context.Context, royaltyID int64, statementID uuid.UUID, final decimal.Decimal) error {
	return t.q.AssignRoyalty(ctx, db.AssignRoyaltyParams{
		ID:                     royaltyID,
		StatementID:            ToPgUUID(statementID),
		FinalDistributedAmount: ToPgNumeric(decimal.NullDecimal{Decimal: final, Valid: true}),
	})
}

func (t *pgTx) CreateConflict(ctx context.Context, c Conflict) error {
	return t.q.CreateConflict(ctx, db.CreateConflictParams{
		StatementID:            ToPgUUID(c.StatementID),
		RoyaltyID:              c.RoyaltyID,
		ConflictingStatementID: ToPgUUID(c.ConflictingStatementID),
	})
}

func (t *pgTx) CompleteStatement(ctx context.Context, id uuid.UUID, assigned int) error {
	n, err := t.q.CompleteStatement(ctx, db.CompleteStatementParams{
		ID:                        ToPgUUID(id),
		NumberOfRoyaltiesAssigned: int32(assigned),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
