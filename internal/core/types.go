package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state shared by imports and statements.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Import is one CSV ingestion unit.
type Import struct {
	ID               uuid.UUID  `json:"id"`
	OriginalFileName string     `json:"original_file_name"`
	FileKey          string     `json:"file_key"`
	FiscalYear       int        `json:"fiscal_year"`
	FiscalQuarter    int        `json:"fiscal_quarter"`
	Status           Status     `json:"status"`
	RoyaltiesAdded   int        `json:"number_of_royalties_added"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewImport holds the fields needed to register an import.
type NewImport struct {
	OriginalFileName string
	FileKey          string
	FiscalYear       int
	FiscalQuarter    int
}

// Statement is a billing unit for a set of writers and a fiscal period.
type Statement struct {
	ID                uuid.UUID  `json:"id"`
	FiscalYear        int        `json:"fiscal_year"`
	FiscalQuarter     int        `json:"fiscal_quarter"`
	WriterIDs         []int64    `json:"writer_ids"`
	Status            Status     `json:"status"`
	RoyaltiesAssigned int        `json:"number_of_royalties_assigned"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	Invoiced          bool       `json:"invoiced"`
	InvoicedAt        *time.Time `json:"invoiced_at,omitempty"`
	ExportKey         string     `json:"export_key,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NewStatement holds the fields needed to create a statement.
type NewStatement struct {
	FiscalYear    int     `json:"fiscal_year" validate:"required,min=1900,max=2200"`
	FiscalQuarter int     `json:"fiscal_quarter" validate:"required,min=1,max=4"`
	WriterIDs     []int64 `json:"writer_ids" validate:"required,min=1,dive,gt=0"`
}

// Writer identifies a rights holder by its external ip code.
type Writer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IPCode    string `json:"ip_code"`
}

// Exploitation is the optional descriptive record attached to a royalty.
// (LicenceID, Title, Artist) is the natural key.
type Exploitation struct {
	LicenceID   string
	Title       string
	Artist      string
	Description string
	Format      string
}

// Empty reports whether every descriptive field is blank.
func (e Exploitation) Empty() bool {
	return e.LicenceID == "" && e.Title == "" && e.Artist == "" &&
		e.Description == "" && e.Format == ""
}

// Royalty is one line item ready for insertion.
type Royalty struct {
	ImportID       uuid.UUID
	BatchID        int64
	WorkID         int64
	RightTypeID    int64
	TerritoryID    int64
	ExploitationID *int64

	AgreementCode string
	CustomWorkID  string

	DistributedAmount     decimal.NullDecimal
	PercentagePaid        decimal.NullDecimal
	UnitSum               decimal.NullDecimal
	WhtAdjReceivedAmount  decimal.NullDecimal
	WhtAdjSourceAmount    decimal.NullDecimal
	DirectCollectFeeTaken decimal.NullDecimal
	DirectCollectedAmount decimal.NullDecimal

	CreditOrDebit        string
	RecordingArtist      string
	AvProductionTitle    string
	PeriodStart          *time.Time
	PeriodEnd            *time.Time
	SourceName           string
	RevenueSourceName    string
	GeneratedAtCoverRate string
}

// MatchedRoyalty is a royalty selected for a statement, with what the
// conflict detector and coefficient applier need.
type MatchedRoyalty struct {
	ID                int64
	StatementID       *uuid.UUID
	DistributedAmount decimal.NullDecimal
	RightTypeGroup    string
}

// Conflict records that a royalty moved from ConflictingStatementID onto
// StatementID.
type Conflict struct {
	ID                     int64     `json:"id"`
	StatementID            uuid.UUID `json:"statement_id"`
	RoyaltyID              int64     `json:"royalty_id"`
	ConflictingStatementID uuid.UUID `json:"conflicting_statement_id"`
	Resolved               bool      `json:"resolved"`
	CreatedAt              time.Time `json:"created_at"`
}

// ExportRow is one assigned royalty joined with its reference data.
type ExportRow struct {
	RoyaltyID              int64
	WorkID                 string
	WorkTitle              string
	Writers                []Writer
	RightType              string
	RightTypeGroup         string
	Territory              string
	BatchCode              string
	DistributedAmount      decimal.NullDecimal
	FinalDistributedAmount decimal.NullDecimal
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
	RecordingArtist        string
	SourceName             string
}

// ReapResult counts units moved from processing to failed by the reaper.
type ReapResult struct {
	Imports    int64 `json:"imports"`
	Statements int64 `json:"statements"`
}

// Stats feeds the dashboard.
type Stats struct {
	Imports             int64 `json:"imports"`
	Statements          int64 `json:"statements"`
	Royalties           int64 `json:"royalties"`
	UnassignedRoyalties int64 `json:"unassigned_royalties"`
	Writers             int64 `json:"writers"`
	UnresolvedConflicts int64 `json:"unresolved_conflicts"`
}

// JobKind names a unit of asynchronous work.
type JobKind string

const (
	JobImport   JobKind = "import"
	JobPopulate JobKind = "populate"
	JobExport   JobKind = "export"
)

// Job is the payload handed to the dispatcher.
type Job struct {
	Kind JobKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func (j Job) String() string {
	return string(j.Kind) + ":" + j.ID.String()
}

// Event is sent to the UI notifier when a unit changes state.
type Event struct {
	Resource string    `json:"resource"`
	ID       uuid.UUID `json:"id"`
	Status   Status    `json:"status"`
}
