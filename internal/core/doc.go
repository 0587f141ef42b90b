// Package core implements the royalty reconciliation pipeline.
//
// The pipeline has two halves. Ingestion turns one uploaded CSV (an Import)
// into persisted Royalty rows:
//
//	ReadRows -> ValidateRows -> resolver (batch, work, right type, territory,
//	exploitation, writers) -> Tx.InsertRoyalties
//
// Validation is a complete side-effect-free pass; a single failing row rejects
// the whole file. Everything after validation runs inside one transaction so an
// import is either fully present or absent.
//
// Reconciliation assigns royalties to a Statement:
//
//	Tx.MatchRoyalties -> conflict capture -> coefficient -> Tx.AssignRoyalty
//
// followed by the export step, which renders the statement's royalties to CSV
// (and an XLSX twin) with a trailing TOTAL row.
//
// Imports and statements share one lifecycle: pending -> processing ->
// completed | failed. Completed and failed are terminal.
//
// Persistence, file storage, job dispatch and UI notification are reached
// through the Store, FileStore, Enqueuer and Notifier interfaces so the
// pipeline can run against Postgres in production and an in-memory store in
// tests.
package core
