package core

// error_messages.go maps pipeline errors to user-facing messages with a short
// code support staff can look up.
//
// Typed errors are matched first (errors.As / errors.Is), then the raw error
// text is matched case-insensitively against errorPatterns. The first match
// wins, so specific patterns come before general ones.
//
//	VAL001  CSV validation failed (row list is in the import's error field)
//	VAL002  Empty file
//	VAL003  Invalid request field
//	NF001   Record not found
//	STM001  Statement already invoiced
//	STM002  Unresolved conflicts block invoicing
//	STM003  Status does not allow the operation
//	STM004  Export not generated yet
//	IMP001  Import royalties are on an invoiced statement
//	DB001   Unique constraint
//	DB002   Foreign key constraint
//	DB003   Connection refused / reset
//	DB004   Timeout
//	DB005   Deadlock or serialization failure
//	RATE001 Rate limited
//	ERR000  Anything else; check logs

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgValidation = UserMessage{
		Message: "CSV validation failed",
		Action:  "Fix the listed lines and upload the file again",
		Code:    "VAL001",
	}
	msgEmptyFile = UserMessage{
		Message: "The file is empty",
		Action:  "Upload a CSV with a header row",
		Code:    "VAL002",
	}
	msgNotFound = UserMessage{
		Message: "Record not found",
		Action:  "Refresh the page and try again",
		Code:    "NF001",
	}
	msgInvoiced = UserMessage{
		Message: "Statement is already invoiced",
		Action:  "Invoiced statements cannot be changed",
		Code:    "STM001",
	}
	msgConflicts = UserMessage{
		Message: "Statement has unresolved conflicts",
		Action:  "Resolve every conflict before invoicing",
		Code:    "STM002",
	}
	msgTransition = UserMessage{
		Message: "The record is not in a state that allows this",
		Action:  "Wait for processing to finish and try again",
		Code:    "STM003",
	}
	msgNoExport = UserMessage{
		Message: "The export has not been generated yet",
		Action:  "Wait for the statement to complete",
		Code:    "STM004",
	}
	msgImportLocked = UserMessage{
		Message: "Import royalties are on an invoiced statement",
		Action:  "Invoiced royalties cannot be rolled back",
		Code:    "IMP001",
	}
)

// typedErrors is checked before the text patterns.
var typedErrors = []struct {
	target error
	msg    UserMessage
}{
	{ErrEmptyFile, msgEmptyFile},
	{ErrNotFound, msgNotFound},
	{ErrInvoiced, msgInvoiced},
	{ErrUnresolvedConflicts, msgConflicts},
	{ErrInvalidTransition, msgTransition},
	{ErrNoExport, msgNoExport},
	{ErrImportLocked, msgImportLocked},
}

var errorPatterns = []errorPattern{
	{
		pattern: "csv validation failed",
		msg:     msgValidation,
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Invalid request",
			Action:  "Check the submitted fields",
			Code:    "VAL003",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the referenced record exists",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "could not serialize",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return msgValidation
	}
	for _, te := range typedErrors {
		if errors.Is(err, te.target) {
			return te.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Statement has unresolved conflicts (Code: STM002). Resolve every conflict before invoicing"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}
