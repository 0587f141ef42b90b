package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvoiced            = errors.New("statement is invoiced")
	ErrUnresolvedConflicts = errors.New("statement has unresolved conflicts")
	ErrNoExport            = errors.New("statement has no export yet")
	ErrImportLocked        = errors.New("import has royalties on an invoiced statement")
	ErrEmptyFile           = errors.New("empty file: no header row")
)

// RowError is one validator finding. Line is the file line number of the row
// (the header is line 1).
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("Line %d: %s", e.Line, e.Message)
}

// ValidationError aggregates every row-level failure of one file.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.String()
	}
	return "CSV validation failed: " + strings.Join(parts, ", ")
}

// PersistenceError wraps a write that aborted the enclosing transaction.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a lookup by id finds nothing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}
