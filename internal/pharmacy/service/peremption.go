package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
)

// PeremptionRequest creates or updates an expiry report
type PeremptionRequest struct {
	ID           string                  `json:"id"`
	ReportNumber string                  `json:"reportNumber" validate:"required"`
	Date         string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Items        []domain.PeremptionItem `json:"items"`
}

// PeremptionResult is a saved report with its exit sync counts
type PeremptionResult struct {
	Peremption   domain.Peremption `json:"peremption"`
	ExitsCreated int               `json:"exitsCreated"`
	ExitsUpdated int               `json:"exitsUpdated"`
	ExitsRemoved int               `json:"exitsRemoved"`
}

// ListPeremptions returns every expiry report
func (s *InventoryService) ListPeremptions(ctx context.Context) ([]domain.Peremption, error) {
	return repository.List[domain.Peremption](ctx, s.store, domain.CollectionPeremptions)
}

// GetPeremption gets an expiry report by id
func (s *InventoryService) GetPeremption(ctx context.Context, id string) (*domain.Peremption, error) {
	p, err := repository.Find[domain.Peremption](ctx, s.store, domain.CollectionPeremptions, id)
	if err != nil {
		return nil, mapNotFound(err, "peremption")
	}
	return p, nil
}

// SavePeremption upserts the report and keeps one PÉREMPTION exit per line:
// exits of removed lines are deleted, new lines get an exit and existing
// exits take the line's quantity, name and the report date while keeping
// their id and createdAt. Everything commits together.
func (s *InventoryService) SavePeremption(ctx context.Context, req *PeremptionRequest) (*PeremptionResult, error) {
	month, year, err := resolveTags(req.Date, "", "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ReportNumber) == "" {
		return nil, errors.Validation(map[string]string{"reportNumber": "this field is required"})
	}

	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return nil, err
	}

	now := millis(s.clock.now())
	per := domain.Peremption{
		ID:           req.ID,
		ReportNumber: strings.TrimSpace(req.ReportNumber),
		Date:         req.Date,
		Items:        make([]domain.PeremptionItem, len(req.Items)),
		CreatedAt:    now,
	}
	if per.ID == "" {
		per.ID = newID()
	}
	for i, it := range req.Items {
		if it.ID == "" {
			it.ID = newID()
		}
		it.MedicationName = domain.NormalizeName(it.MedicationName)
		it.TotalPrice = domain.Money{Decimal: it.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(it.Quantity)))}
		per.Items[i] = it
	}

	res := &PeremptionResult{}
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		if old, err := repository.Find[domain.Peremption](ctx, tx, domain.CollectionPeremptions, per.ID); err == nil {
			per.CreatedAt = old.CreatedAt
		} else if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		exits, err := repository.List[domain.InventoryExit](ctx, tx, domain.CollectionExits)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(per.Items))
		for _, it := range per.Items {
			keep[it.ID] = true
		}

		// Exits without an item id are left alone. For each item the first
		// exit is reused and any further copy is removed.
		mirrored := map[string]domain.InventoryExit{}
		for _, e := range exits {
			if e.PeremptionID != per.ID || e.PeremptionItemID == "" {
				continue
			}
			if _, dup := mirrored[e.PeremptionItemID]; !dup && keep[e.PeremptionItemID] {
				mirrored[e.PeremptionItemID] = e
				continue
			}
			if err := tx.Delete(ctx, domain.CollectionExits, e.ID); err != nil {
				return err
			}
			res.ExitsRemoved++
		}

		for _, it := range per.Items {
			medicationID, _ := catalog.link("", it.MedicationName)
			exit, ok := mirrored[it.ID]
			if ok {
				res.ExitsUpdated++
			} else {
				exit = domain.InventoryExit{
					ID:               newID(),
					CreatedAt:        now,
					Reason:           domain.ReasonPeremption,
					PeremptionID:     per.ID,
					PeremptionItemID: it.ID,
				}
				res.ExitsCreated++
			}
			exit.DrugName = it.MedicationName
			exit.Quantity = it.Quantity
			exit.Date = per.Date
			exit.Month = month
			exit.Year = year
			exit.MedicationID = medicationID
			if err := tx.Put(ctx, domain.CollectionExits, exit.ID, exit); err != nil {
				return err
			}
		}

		return tx.Put(ctx, domain.CollectionPeremptions, per.ID, per)
	})
	if err != nil {
		return nil, err
	}

	res.Peremption = per
	s.logger.Info().
		Str("peremption_id", per.ID).
		Int("created", res.ExitsCreated).
		Int("updated", res.ExitsUpdated).
		Int("removed", res.ExitsRemoved).
		Msg("expiry report saved")
	s.publisher.PeremptionSaved(ctx, per, res.ExitsCreated, res.ExitsUpdated, res.ExitsRemoved)
	return res, nil
}

// DeletePeremption removes the report and exactly the exits mirrored from it
func (s *InventoryService) DeletePeremption(ctx context.Context, id string) (int, error) {
	removed := 0
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		if _, err := tx.Get(ctx, domain.CollectionPeremptions, id); err != nil {
			return mapNotFound(err, "peremption")
		}
		exits, err := repository.List[domain.InventoryExit](ctx, tx, domain.CollectionExits)
		if err != nil {
			return err
		}
		for _, e := range exits {
			if e.PeremptionID != id {
				continue
			}
			if err := tx.Delete(ctx, domain.CollectionExits, e.ID); err != nil {
				return err
			}
			removed++
		}
		return tx.Delete(ctx, domain.CollectionPeremptions, id)
	})
	if err != nil {
		return 0, err
	}
	s.publisher.PeremptionDeleted(ctx, id, removed)
	return removed, nil
}
