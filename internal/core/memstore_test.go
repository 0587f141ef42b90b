package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store. InTx works on a copy of the data and only
// swaps it in when fn succeeds, so rollbacks discard every write. Like pgx,
// status writes and transactions fail once ctx is done.
type memStore struct {
	mu   sync.Mutex
	data *memData
	tick time.Time

	// failWork makes UpsertWork fail for this work id.
	failWork string
	// failAssign, when set, runs before every AssignRoyalty; a non-nil
	// result fails the assignment.
	failAssign func(ctx context.Context, royaltyID int64) error
}

type memRoyalty struct {
	Royalty
	ID          int64
	StatementID *uuid.UUID
	Final       decimal.NullDecimal
}

type memData struct {
	nextID int64

	batches       map[string]int64
	batchCodes    map[int64]string
	works         map[string]int64
	workRefs      map[int64]string
	workTitles    map[int64]string
	rightTypes    map[[2]string]int64
	rightTypeRefs map[int64][2]string
	territories   map[string]int64
	territoryRefs map[int64]string
	exploitations map[[3]string]int64
	writers       map[string]int64
	writersByID   map[int64]Writer
	links         map[[2]int64]bool

	imports    map[uuid.UUID]Import
	statements map[uuid.UUID]Statement
	royalties  map[int64]memRoyalty
	conflicts  []Conflict
}

func newMemStore() *memStore {
	return &memStore{
		tick: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		data: &memData{
			batches:       map[string]int64{},
			batchCodes:    map[int64]string{},
			works:         map[string]int64{},
			workRefs:      map[int64]string{},
			workTitles:    map[int64]string{},
			rightTypes:    map[[2]string]int64{},
			rightTypeRefs: map[int64][2]string{},
			territories:   map[string]int64{},
			territoryRefs: map[int64]string{},
			exploitations: map[[3]string]int64{},
			writers:       map[string]int64{},
			writersByID:   map[int64]Writer{},
			links:         map[[2]int64]bool{},
			imports:       map[uuid.UUID]Import{},
			statements:    map[uuid.UUID]Statement{},
			royalties:     map[int64]memRoyalty{},
		},
	}
}

func (d *memData) clone() *memData {
	c := *d
	c.batches = maps.Clone(d.batches)
	c.batchCodes = maps.Clone(d.batchCodes)
	c.works = maps.Clone(d.works)
	c.workRefs = maps.Clone(d.workRefs)
	c.workTitles = maps.Clone(d.workTitles)
	c.rightTypes = maps.Clone(d.rightTypes)
	c.rightTypeRefs = maps.Clone(d.rightTypeRefs)
	c.territories = maps.Clone(d.territories)
	c.territoryRefs = maps.Clone(d.territoryRefs)
	c.exploitations = maps.Clone(d.exploitations)
	c.writers = maps.Clone(d.writers)
	c.writersByID = maps.Clone(d.writersByID)
	c.links = maps.Clone(d.links)
	c.imports = maps.Clone(d.imports)
	c.statements = maps.Clone(d.statements)
	c.royalties = maps.Clone(d.royalties)
	c.conflicts = append([]Conflict(nil), d.conflicts...)
	return &c
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

// now returns strictly increasing timestamps so ordering by creation is
// deterministic.
func (s *memStore) now() time.Time {
	s.tick = s.tick.Add(time.Second)
	return s.tick
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, d: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.d
	return nil
}

// --- imports ---

func (s *memStore) CreateImport(ctx context.Context, imp NewImport) (Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Import{
		ID:               uuid.New(),
		OriginalFileName: imp.OriginalFileName,
		FileKey:          imp.FileKey,
		FiscalYear:       imp.FiscalYear,
		FiscalQuarter:    imp.FiscalQuarter,
		Status:           StatusPending,
		CreatedAt:        s.now(),
	}
	s.data.imports[out.ID] = out
	return out, nil
}

func (s *memStore) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.data.imports[id]
	if !ok {
		return Import{}, notFound("import", id)
	}
	return imp, nil
}

func (s *memStore) ListImports(ctx context.Context) ([]Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Import, 0, len(s.data.imports))
	for _, imp := range s.data.imports {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) StartImport(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.data.imports[id]
	if !ok {
		return notFound("import", id)
	}
	if imp.Status != StatusPending {
		return ErrInvalidTransition
	}
	t := s.now()
	imp.Status, imp.StartedAt = StatusProcessing, &t
	s.data.imports[id] = imp
	return nil
}

func (s *memStore) FailImport(ctx context.Context, id uuid.UUID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.data.imports[id]
	if !ok {
		return notFound("import", id)
	}
	if imp.Status.Terminal() {
		return ErrInvalidTransition
	}
	t := s.now()
	imp.Status, imp.ErrorMessage, imp.CompletedAt = StatusFailed, message, &t
	s.data.imports[id] = imp
	return nil
}

// --- statements ---

func (s *memStore) CreateStatement(ctx context.Context, st NewStatement) (Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Statement{
		ID:            uuid.New(),
		FiscalYear:    st.FiscalYear,
		FiscalQuarter: st.FiscalQuarter,
		WriterIDs:     append([]int64(nil), st.WriterIDs...),
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	s.data.statements[out.ID] = out
	return out, nil
}

func (s *memStore) GetStatement(ctx context.Context, id uuid.UUID) (Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.statements[id]
	if !ok {
		return Statement{}, notFound("statement", id)
	}
	return st, nil
}

func (s *memStore) ListStatements(ctx context.Context) ([]Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Statement, 0, len(s.data.statements))
	for _, st := range s.data.statements {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) updateStatement(id uuid.UUID, fn func(st *Statement) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.statements[id]
	if !ok {
		return notFound("statement", id)
	}
	if err := fn(&st); err != nil {
		return err
	}
	s.data.statements[id] = st
	return nil
}

func (s *memStore) StartStatement(ctx context.Context, id uuid.UUID) error {
	return s.updateStatement(id, func(st *Statement) error {
		if st.Status != StatusPending {
			return ErrInvalidTransition
		}
		t := s.now()
		st.Status, st.StartedAt = StatusProcessing, &t
		return nil
	})
}

func (s *memStore) FailStatement(ctx context.Context, id uuid.UUID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.updateStatement(id, func(st *Statement) error {
		if st.Status.Terminal() {
			return ErrInvalidTransition
		}
		t := s.now()
		st.Status, st.ErrorMessage, st.CompletedAt = StatusFailed, message, &t
		return nil
	})
}

func (s *memStore) SetStatementExport(ctx context.Context, id uuid.UUID, key string) error {
	return s.updateStatement(id, func(st *Statement) error {
		st.ExportKey = key
		return nil
	})
}

func (s *memStore) MarkStatementInvoiced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.updateStatement(id, func(st *Statement) error {
		if st.Invoiced || st.Status != StatusCompleted {
			return ErrInvalidTransition
		}
		st.Invoiced, st.InvoicedAt = true, &at
		return nil
	})
}

func (s *memStore) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.statements[id]
	if !ok {
		return notFound("statement", id)
	}
	if st.Invoiced || st.Status == StatusProcessing {
		return ErrInvalidTransition
	}
	delete(s.data.statements, id)
	for rid, r := range s.data.royalties {
		if r.StatementID != nil && *r.StatementID == id {
			r.StatementID = nil
			s.data.royalties[rid] = r
		}
	}
	kept := s.data.conflicts[:0]
	for _, c := range s.data.conflicts {
		if c.StatementID != id {
			kept = append(kept, c)
		}
	}
	s.data.conflicts = kept
	return nil
}

func (s *memStore) StatementExportRows(ctx context.Context, id uuid.UUID) ([]ExportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data
	var out []ExportRow
	for _, r := range d.sortedRoyalties() {
		if r.StatementID == nil || *r.StatementID != id {
			continue
		}
		rt := d.rightTypeRefs[r.RightTypeID]
		out = append(out, ExportRow{
			RoyaltyID:              r.ID,
			WorkID:                 d.workRefs[r.WorkID],
			WorkTitle:              d.workTitles[r.WorkID],
			Writers:                d.workWriters(r.WorkID),
			RightType:              rt[0],
			RightTypeGroup:         rt[1],
			Territory:              d.territoryRefs[r.TerritoryID],
			BatchCode:              d.batchCodes[r.BatchID],
			DistributedAmount:      r.DistributedAmount,
			FinalDistributedAmount: r.Final,
			PeriodStart:            r.PeriodStart,
			PeriodEnd:              r.PeriodEnd,
			RecordingArtist:        r.RecordingArtist,
			SourceName:             r.SourceName,
		})
	}
	return out, nil
}

func (d *memData) sortedRoyalties() []memRoyalty {
	out := make([]memRoyalty, 0, len(d.royalties))
	for _, r := range d.royalties {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *memData) workWriters(workID int64) []Writer {
	var out []Writer
	for link := range d.links {
		if link[0] == workID {
			out = append(out, d.writersByID[link[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- conflicts, writers, maintenance ---

func (s *memStore) ListConflicts(ctx context.Context, statementID uuid.UUID) ([]Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Conflict
	for _, c := range s.data.conflicts {
		if c.StatementID == statementID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.data.conflicts {
		if c.ID == conflictID && c.StatementID == statementID {
			s.data.conflicts[i].Resolved = true
			return nil
		}
	}
	return notFound("conflict", conflictID)
}

func (s *memStore) CountUnresolvedConflicts(ctx context.Context, statementID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.data.conflicts {
		if c.StatementID == statementID && !c.Resolved {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MissingWriters(ctx context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []int64
	for _, id := range ids {
		if _, ok := s.data.writersByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *memStore) FailStuck(ctx context.Context, cutoff time.Time, message string) (ReapResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res ReapResult
	for id, imp := range s.data.imports {
		if imp.Status == StatusProcessing && imp.StartedAt != nil && imp.StartedAt.Before(cutoff) {
			imp.Status, imp.ErrorMessage = StatusFailed, message
			s.data.imports[id] = imp
			res.Imports++
		}
	}
	for id, st := range s.data.statements {
		if st.Status == StatusProcessing && st.StartedAt != nil && st.StartedAt.Before(cutoff) {
			st.Status, st.ErrorMessage = StatusFailed, message
			s.data.statements[id] = st
			res.Statements++
		}
	}
	return res, nil
}

func (s *memStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Imports:    int64(len(s.data.imports)),
		Statements: int64(len(s.data.statements)),
		Royalties:  int64(len(s.data.royalties)),
		Writers:    int64(len(s.data.writersByID)),
	}
	for _, r := range s.data.royalties {
		if r.StatementID == nil {
			st.UnassignedRoyalties++
		}
	}
	for _, c := range s.data.conflicts {
		if !c.Resolved {
			st.UnresolvedConflicts++
		}
	}
	return st, nil
}

// writerID returns the id of the writer with ipCode, or 0.
func (s *memStore) writerID(ipCode string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.writers[ipCode]
}

func (s *memStore) royalties() []memRoyalty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.sortedRoyalties()
}

// --- transaction ---

type memTx struct {
	s *memStore
	d *memData
}

func (t *memTx) UpsertBatch(ctx context.Context, code, description string) (int64, error) {
	if id, ok := t.d.batches[code]; ok {
		return id, nil
	}
	id := t.d.id()
	t.d.batches[code], t.d.batchCodes[id] = id, code
	return id, nil
}

func (t *memTx) UpsertWork(ctx context.Context, workID, title string) (int64, error) {
	if t.s.failWork != "" && workID == t.s.failWork {
		return 0, fmt.Errorf("work %s: connection reset", workID)
	}
	if id, ok := t.d.works[workID]; ok {
		return id, nil
	}
	id := t.d.id()
	t.d.works[workID], t.d.workRefs[id], t.d.workTitles[id] = id, workID, title
	return id, nil
}

func (t *memTx) UpsertRightType(ctx context.Context, name, group string) (int64, error) {
	key := [2]string{name, group}
	if id, ok := t.d.rightTypes[key]; ok {
		return id, nil
	}
	id := t.d.id()
	t.d.rightTypes[key], t.d.rightTypeRefs[id] = id, key
	return id, nil
}

func (t *memTx) UpsertTerritory(ctx context.Context, name, isoCode string) (int64, error) {
	if id, ok := t.d.territories[name]; ok {
		return id, nil
	}
	id := t.d.id()
	t.d.territories[name], t.d.territoryRefs[id] = id, name
	return id, nil
}

func (t *memTx) UpsertExploitation(ctx context.Context, e Exploitation) (int64, error) {
	key := [3]string{e.LicenceID, e.Title, e.Artist}
	if id, ok := t.d.exploitations[key]; ok {
		return id, nil
	}
	id := t.d.id()
	t.d.exploitations[key] = id
	return id, nil
}

func (t *memTx) UpsertWriter(ctx context.Context, w Writer) (int64, error) {
	if id, ok := t.d.writers[w.IPCode]; ok {
		return id, nil
	}
	w.ID = t.d.id()
	t.d.writers[w.IPCode], t.d.writersByID[w.ID] = w.ID, w
	return w.ID, nil
}

func (t *memTx) LinkWorkWriter(ctx context.Context, workID, writerID int64) error {
	t.d.links[[2]int64{workID, writerID}] = true
	return nil
}

func (t *memTx) InsertRoyalties(ctx context.Context, rows []Royalty) (int64, error) {
	for _, r := range rows {
		id := t.d.id()
		t.d.royalties[id] = memRoyalty{Royalty: r, ID: id}
	}
	return int64(len(rows)), nil
}

func (t *memTx) CompleteImport(ctx context.Context, id uuid.UUID, added int) error {
	imp, ok := t.d.imports[id]
	if !ok || imp.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	now := t.s.now()
	imp.Status, imp.RoyaltiesAdded, imp.CompletedAt = StatusCompleted, added, &now
	t.d.imports[id] = imp
	return nil
}

func (t *memTx) CountInvoicedRoyalties(ctx context.Context, importID uuid.UUID) (int, error) {
	n := 0
	for _, r := range t.d.royalties {
		if r.ImportID != importID || r.StatementID == nil {
			continue
		}
		if t.d.statements[*r.StatementID].Invoiced {
			n++
		}
	}
	return n, nil
}

func (t *memTx) DeleteImport(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, ok := t.d.imports[id]; !ok {
		return 0, notFound("import", id)
	}
	var n int64
	for rid, r := range t.d.royalties {
		if r.ImportID == id {
			delete(t.d.royalties, rid)
			n++
		}
	}
	kept := t.d.conflicts[:0]
	for _, c := range t.d.conflicts {
		if _, ok := t.d.royalties[c.RoyaltyID]; ok {
			kept = append(kept, c)
		}
	}
	t.d.conflicts = kept
	delete(t.d.imports, id)
	return n, nil
}

func (t *memTx) MatchRoyalties(ctx context.Context, st Statement) ([]MatchedRoyalty, error) {
	wanted := make(map[int64]bool, len(st.WriterIDs))
	for _, id := range st.WriterIDs {
		wanted[id] = true
	}
	var out []MatchedRoyalty
	for _, r := range t.d.sortedRoyalties() {
		imp := t.d.imports[r.ImportID]
		if imp.FiscalYear != st.FiscalYear || imp.FiscalQuarter != st.FiscalQuarter {
			continue
		}
		if r.StatementID != nil && *r.StatementID == st.ID {
			continue
		}
		linked := false
		for link := range t.d.links {
			if link[0] == r.WorkID && wanted[link[1]] {
				linked = true
				break
			}
		}
		if !linked {
			continue
		}
		out = append(out, MatchedRoyalty{
			ID:                r.ID,
			StatementID:       r.StatementID,
			DistributedAmount: r.DistributedAmount,
			RightTypeGroup:    t.d.rightTypeRefs[r.RightTypeID][1],
		})
	}
	return out, nil
}

func (t *memTx) AssignRoyalty(ctx context.Context, royaltyID int64, statementID uuid.UUID, final decimal.Decimal) error {
	if t.s.failAssign != nil {
		if err := t.s.failAssign(ctx, royaltyID); err != nil {
			return err
		}
	}
	r, ok := t.d.royalties[royaltyID]
	if !ok {
		return errors.New("royalty not found")
	}
	id := statementID
	r.StatementID = &id
	r.Final = decimal.NullDecimal{Decimal: final, Valid: true}
	t.d.royalties[royaltyID] = r
	return nil
}

func (t *memTx) CreateConflict(ctx context.Context, c Conflict) error {
	c.ID = t.d.id()
	c.CreatedAt = t.s.now()
	t.d.conflicts = append(t.d.conflicts, c)
	return nil
}

func (t *memTx) CompleteStatement(ctx context.Context, id uuid.UUID, assigned int) error {
	st, ok := t.d.statements[id]
	if !ok || st.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	now := t.s.now()
	st.Status, st.RoyaltiesAssigned, st.CompletedAt = StatusCompleted, assigned, &now
	t.d.statements[id] = st
	return nil
}

// --- collaborators ---

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: map[string][]byte{}}
}

func (f *memFiles) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *memFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memFiles) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *memFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[key]
	return ok
}

// stalledFiles never delivers an upload; Open waits for ctx to end.
type stalledFiles struct {
	*memFiles
}

func (f stalledFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (n *memNotifier) statuses(id uuid.UUID) []Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Status
	for _, ev := range n.events {
		if ev.ID == id {
			out = append(out, ev.Status)
		}
	}
	return out
}

type memQueue struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (q *memQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) kinds() []JobKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]JobKind, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.Kind
	}
	return out
}

type memNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *memNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}
