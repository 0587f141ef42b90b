package core

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence collaborator. Methods outside InTx run in their own
// implicit transaction.
//
// Status methods (Start*, Fail*, Complete*) return ErrInvalidTransition when
// the record is not in a state that allows the move.
type Store interface {
	// InTx runs fn in one transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; nothing fn wrote survives a rollback.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateImport(ctx context.Context, imp NewImport) (Import, error)
	GetImport(ctx context.Context, id uuid.UUID) (Import, error)
	ListImports(ctx context.Context) ([]Import, error)
	StartImport(ctx context.Context, id uuid.UUID) error
	FailImport(ctx context.Context, id uuid.UUID, message string) error

	CreateStatement(ctx context.Context, st NewStatement) (Statement, error)
	GetStatement(ctx context.Context, id uuid.UUID) (Statement, error)
	ListStatements(ctx context.Context) ([]Statement, error)
	StartStatement(ctx context.Context, id uuid.UUID) error
	FailStatement(ctx context.Context, id uuid.UUID, message string) error
	SetStatementExport(ctx context.Context, id uuid.UUID, key string) error
	MarkStatementInvoiced(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteStatement(ctx context.Context, id uuid.UUID) error
	StatementExportRows(ctx context.Context, id uuid.UUID) ([]ExportRow, error)

	ListConflicts(ctx context.Context, statementID uuid.UUID) ([]Conflict, error)
	ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error
	CountUnresolvedConflicts(ctx context.Context, statementID uuid.UUID) (int, error)

	// MissingWriters returns the ids in ids that have no writer record.
	MissingWriters(ctx context.Context, ids []int64) ([]int64, error)
	// FailStuck fails every unit that has been processing since before cutoff.
	FailStuck(ctx context.Context, cutoff time.Time, message string) (ReapResult, error)
	Stats(ctx context.Context) (Stats, error)
}

// Tx is the set of writes available inside Store.InTx.
//
// Upsert* are atomic insert-if-absent primitives keyed on the entity's natural
// key: they return the existing id when the key is present and never modify
// creation-only fields.
type Tx interface {
	UpsertBatch(ctx context.Context, code, description string) (int64, error)
	UpsertWork(ctx context.Context, workID, title string) (int64, error)
	UpsertRightType(ctx context.Context, name, group string) (int64, error)
	UpsertTerritory(ctx context.Context, name, isoCode string) (int64, error)
	UpsertExploitation(ctx context.Context, e Exploitation) (int64, error)
	UpsertWriter(ctx context.Context, w Writer) (int64, error)
	LinkWorkWriter(ctx context.Context, workID, writerID int64) error

	InsertRoyalties(ctx context.Context, rows []Royalty) (int64, error)
	CompleteImport(ctx context.Context, id uuid.UUID, added int) error
	CountInvoicedRoyalties(ctx context.Context, importID uuid.UUID) (int, error)
	// DeleteImport removes the import and its royalties and returns the
	// number of royalties removed.
	DeleteImport(ctx context.Context, id uuid.UUID) (int64, error)

	// MatchRoyalties returns royalties from imports in st's fiscal period
	// whose work has a writer in st.WriterIDs, excluding those already on st.
	// Rows are locked until the transaction ends.
	MatchRoyalties(ctx context.Context, st Statement) ([]MatchedRoyalty, error)
	AssignRoyalty(ctx context.Context, royaltyID int64, statementID uuid.UUID, final decimal.Decimal) error
	CreateConflict(ctx context.Context, c Conflict) error
	CompleteStatement(ctx context.Context, id uuid.UUID, assigned int) error
}

// FileStore holds uploaded files and generated exports.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Enqueuer submits asynchronous work.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Notifier receives best-effort change notifications for the UI.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
