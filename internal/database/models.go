package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Batch struct {
	ID          int64
	Code        string
	Description pgtype.Text
	CreatedAt   pgtype.Timestamptz
}

type Work struct {
	ID        int64
	WorkID    string
	Title     pgtype.Text
	CreatedAt pgtype.Timestamptz
}

type Writer struct {
	ID        int64
	FirstName string
	LastName  string
	IpCode    string
	CreatedAt pgtype.Timestamptz
}

type Import struct {
	ID                     pgtype.UUID
	OriginalFileName       string
	FileKey                string
	FiscalYear             int32
	FiscalQuarter          int32
	Status                 string
	NumberOfRoyaltiesAdded int32
	ErrorMessage           pgtype.Text
	StartedAt              pgtype.Timestamptz
	CompletedAt            pgtype.Timestamptz
	CreatedAt              pgtype.Timestamptz
}

type Statement struct {
	ID                        pgtype.UUID
	FiscalYear                int32
	FiscalQuarter             int32
	Status                    string
	NumberOfRoyaltiesAssigned int32
	ErrorMessage              pgtype.Text
	Invoiced                  bool
	InvoicedAt                pgtype.Timestamptz
	ExportKey                 pgtype.Text
	StartedAt                 pgtype.Timestamptz
	CompletedAt               pgtype.Timestamptz
	CreatedAt                 pgtype.Timestamptz
}

type StatementConflict struct {
	ID                     int64
	StatementID            pgtype.UUID
	RoyaltyID              int64
	ConflictingStatementID pgtype.UUID
	Resolved               bool
	CreatedAt              pgtype.Timestamptz
}
