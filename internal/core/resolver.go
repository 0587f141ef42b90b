package core

import (
	"context"

	"github.com/google/uuid"
)

// resolver turns one validated row into a Royalty, resolving every reference
// entity through the transaction's upsert primitives. Ids seen earlier in the
// same transaction are cached so repeated keys cost one round trip.
type resolver struct {
	tx Tx

	batches       map[string]int64
	works         map[string]int64
	rightTypes    map[[2]string]int64
	territories   map[string]int64
	exploitations map[[3]string]int64
	writers       map[string]int64
	links         map[[2]int64]struct{}
}

func newResolver(tx Tx) *resolver {
	return &resolver{
		tx:            tx,
		batches:       make(map[string]int64),
		works:         make(map[string]int64),
		rightTypes:    make(map[[2]string]int64),
		territories:   make(map[string]int64),
		exploitations: make(map[[3]string]int64),
		writers:       make(map[string]int64),
		links:         make(map[[2]int64]struct{}),
	}
}

func (r *resolver) batch(ctx context.Context, row Row) (int64, error) {
	code := row.Get(ColBatchID)
	if id, ok := r.batches[code]; ok {
		return id, nil
	}
	id, err := r.tx.UpsertBatch(ctx, code, row.Get(ColBatchDescription))
	if err != nil {
		return 0, &PersistenceError{Op: "upsert batch " + code, Err: err}
	}
	r.batches[code] = id
	return id, nil
}

func (r *resolver) work(ctx context.Context, row Row) (int64, error) {
	workID := row.Get(ColWorkID)
	if id, ok := r.works[workID]; ok {
		return id, nil
	}
	id, err := r.tx.UpsertWork(ctx, workID, row.Get(ColWorkTitle))
	if err != nil {
		return 0, &PersistenceError{Op: "upsert work " + workID, Err: err}
	}
	r.works[workID] = id
	return id, nil
}

func (r *resolver) rightType(ctx context.Context, row Row) (int64, error) {
	key := [2]string{row.Get(ColRightType), row.Get(ColRightTypeGroup)}
	if id, ok := r.rightTypes[key]; ok {
		return id, nil
	}
	id, err := r.tx.UpsertRightType(ctx, key[0], key[1])
	if err != nil {
		return 0, &PersistenceError{Op: "upsert right type", Err: err}
	}
	r.rightTypes[key] = id
	return id, nil
}

func (r *resolver) territory(ctx context.Context, row Row) (int64, error) {
	name := row.Get(ColTerritory)
	if id, ok := r.territories[name]; ok {
		return id, nil
	}
	id, err := r.tx.UpsertTerritory(ctx, name, row.Get(ColTerritoryISO))
	if err != nil {
		return 0, &PersistenceError{Op: "upsert territory", Err: err}
	}
	r.territories[name] = id
	return id, nil
}

// exploitation returns nil when the row carries no exploitation data.
func (r *resolver) exploitation(ctx context.Context, row Row) (*int64, error) {
	e := Exploitation{
		LicenceID:   row.Get(ColExploitationLicenceID),
		Title:       row.Get(ColExploitationTitle),
		Artist:      row.Get(ColExploitationArtist),
		Description: row.Get(ColExploitationDescription),
		Format:      row.Get(ColExploitationFormat),
	}
	if e.Empty() {
		return nil, nil
	}

	key := [3]string{e.LicenceID, e.Title, e.Artist}
	if id, ok := r.exploitations[key]; ok {
		return &id, nil
	}
	id, err := r.tx.UpsertExploitation(ctx, e)
	if err != nil {
		return nil, &PersistenceError{Op: "upsert exploitation", Err: err}
	}
	r.exploitations[key] = id
	return &id, nil
}

// linkWriters resolves each well-formed descriptor in cell and links it to
// the work.
func (r *resolver) linkWriters(ctx context.Context, workID int64, cell string) error {
	for _, w := range ParseWriters(cell) {
		writerID, ok := r.writers[w.IPCode]
		if !ok {
			id, err := r.tx.UpsertWriter(ctx, w)
			if err != nil {
				return &PersistenceError{Op: "upsert writer " + w.IPCode, Err: err}
			}
			writerID = id
			r.writers[w.IPCode] = id
		}

		link := [2]int64{workID, writerID}
		if _, ok := r.links[link]; ok {
			continue
		}
		if err := r.tx.LinkWorkWriter(ctx, workID, writerID); err != nil {
			return &PersistenceError{Op: "link work writer " + w.IPCode, Err: err}
		}
		r.links[link] = struct{}{}
	}
	return nil
}

// royalty resolves all references for row and builds the line item. Nullable
// numeric and date fields use parse-or-null.
func (r *resolver) royalty(ctx context.Context, importID uuid.UUID, row Row) (Royalty, error) {
	batchID, err := r.batch(ctx, row)
	if err != nil {
		return Royalty{}, err
	}
	workID, err := r.work(ctx, row)
	if err != nil {
		return Royalty{}, err
	}
	rightTypeID, err := r.rightType(ctx, row)
	if err != nil {
		return Royalty{}, err
	}
	territoryID, err := r.territory(ctx, row)
	if err != nil {
		return Royalty{}, err
	}
	exploitationID, err := r.exploitation(ctx, row)
	if err != nil {
		return Royalty{}, err
	}
	if row.Present(ColWriters) {
		if err := r.linkWriters(ctx, workID, row.Get(ColWriters)); err != nil {
			return Royalty{}, err
		}
	}

	return Royalty{
		ImportID:       importID,
		BatchID:        batchID,
		WorkID:         workID,
		RightTypeID:    rightTypeID,
		TerritoryID:    territoryID,
		ExploitationID: exploitationID,

		AgreementCode: row.Get(ColAgreementID),
		CustomWorkID:  row.Get(ColCustomWorkID),

		DistributedAmount:     NullDecimal(row.Get(ColDistributedAmount)),
		PercentagePaid:        NullDecimal(row.Get(ColPercentagePaid)),
		UnitSum:               NullDecimal(row.Get(ColUnitSum)),
		WhtAdjReceivedAmount:  NullDecimal(row.Get(ColWhtAdjReceivedAmount)),
		WhtAdjSourceAmount:    NullDecimal(row.Get(ColWhtAdjSourceAmount)),
		DirectCollectFeeTaken: NullDecimal(row.Get(ColDirectCollectFeeTaken)),
		DirectCollectedAmount: NullDecimal(row.Get(ColDirectCollectedAmount)),

		CreditOrDebit:        row.Get(ColCreditOrDebit),
		RecordingArtist:      row.Get(ColRecordingArtist),
		AvProductionTitle:    row.Get(ColAvProductionTitle),
		PeriodStart:          NullDate(row.Get(ColPeriodStart)),
		PeriodEnd:            NullDate(row.Get(ColPeriodEnd)),
		SourceName:           row.Get(ColSourceName),
		RevenueSourceName:    row.Get(ColRevenueSourceName),
		GeneratedAtCoverRate: row.Get(ColGeneratedAtCoverRate),
	}, nil
}
