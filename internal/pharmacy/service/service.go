// Package service holds the pharmacy use cases on top of the record store.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// Clock returns the current time; tests pin it
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Now returns the clock time, falling back to time.Now
func (c Clock) Now() time.Time {
	return c.now()
}

func newID() string {
	return uuid.New().String()
}

func millis(t time.Time) domain.Timestamp {
	return domain.NewTimestamp(t)
}

// mapNotFound converts a store miss into a localized NotFound for resource
func mapNotFound(err error, resource string) error {
	if errors.Is(err, errors.ErrNotFound) {
		return errors.NotFound(resource)
	}
	return err
}

// loadInput reads everything reconciliation needs. Records that cannot be
// decoded are logged and left out so one bad import does not break reports.
func loadInput(ctx context.Context, store repository.Store, log *logger.Logger) (reconcile.Input, error) {
	var in reconcile.Input
	var skipped, more []repository.Skipped
	var err error
	if in.Medications, more, err = repository.Decode[domain.Medication](ctx, store, domain.CollectionMedications); err != nil {
		return in, err
	}
	skipped = append(skipped, more...)
	if in.InitialStocks, more, err = repository.Decode[domain.StockInitial](ctx, store, domain.CollectionInitialStocks); err != nil {
		return in, err
	}
	skipped = append(skipped, more...)
	if in.Entries, more, err = repository.Decode[domain.InventoryEntry](ctx, store, domain.CollectionEntries); err != nil {
		return in, err
	}
	skipped = append(skipped, more...)
	if in.Exits, more, err = repository.Decode[domain.InventoryExit](ctx, store, domain.CollectionExits); err != nil {
		return in, err
	}
	skipped = append(skipped, more...)

	if log != nil {
		for _, sk := range skipped {
			log.WithCollection(sk.Collection).Warn().Err(sk.Err).Int("index", sk.Index).Msg("skipping undecodable record")
		}
	}
	return in, nil
}

// catalogIndex links movement names to catalog ids at write time
type catalogIndex struct {
	byID   map[string]domain.Medication
	byName map[string][]domain.Medication
}

func loadCatalog(ctx context.Context, store repository.Store) (catalogIndex, error) {
	meds, err := repository.List[domain.Medication](ctx, store, domain.CollectionMedications)
	if err != nil {
		return catalogIndex{}, err
	}
	idx := catalogIndex{
		byID:   make(map[string]domain.Medication, len(meds)),
		byName: make(map[string][]domain.Medication, len(meds)),
	}
	for _, m := range meds {
		idx.byID[m.ID] = m
		key := domain.NormalizeName(m.FullNom)
		idx.byName[key] = append(idx.byName[key], m)
	}
	return idx, nil
}

// link returns the medication id for a line: an explicit id must exist,
// otherwise a name claimed by exactly one medication is linked.
func (c catalogIndex) link(medicationID, name string) (string, bool) {
	if medicationID != "" {
		_, ok := c.byID[medicationID]
		return medicationID, ok
	}
	if meds := c.byName[domain.NormalizeName(name)]; len(meds) == 1 {
		return meds[0].ID, true
	}
	return "", true
}

// nameOf returns the catalog full name for an id
func (c catalogIndex) nameOf(medicationID string) string {
	return c.byID[medicationID].FullNom
}
