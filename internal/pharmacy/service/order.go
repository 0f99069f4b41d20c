package service

import (
	"context"
	"strings"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// OrderService manages purchase orders and their reception
type OrderService struct {
	store     repository.Store
	publisher *events.Publisher
	clock     Clock
	logger    *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store repository.Store, publisher *events.Publisher, clock Clock, log *logger.Logger) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    log,
	}
}

// OrderRequest creates or updates a purchase order
type OrderRequest struct {
	ID          string                  `json:"id"`
	OrderNumber string                  `json:"orderNumber" validate:"required"`
	Date        string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Supplier    string                  `json:"supplier" validate:"required"`
	Items       []domain.MedicationItem `json:"items"`
	Status      string                  `json:"status" validate:"omitempty,oneof=Draft Saved"`
}

// ReceiveRequest dates the entries created from an order; empty means today
type ReceiveRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ReceiveResult is a processed order with its entries
type ReceiveResult struct {
	Order   domain.Order            `json:"order"`
	Entries []domain.InventoryEntry `json:"entries"`
}

// List returns every order
func (s *OrderService) List(ctx context.Context) ([]domain.Order, error) {
	return repository.List[domain.Order](ctx, s.store, domain.CollectionOrders)
}

// Get gets an order by id
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := repository.Find[domain.Order](ctx, s.store, domain.CollectionOrders, id)
	if err != nil {
		return nil, mapNotFound(err, "order")
	}
	return o, nil
}

func alreadyProcessed(o *domain.Order) error {
	return errors.Conflict("order "+o.OrderNumber+" was already received").
		WithKey("errors.order_already_processed", map[string]string{"order": o.OrderNumber})
}

// Save creates or updates an order. Received orders are read-only.
func (s *OrderService) Save(ctx context.Context, req *OrderRequest) (*domain.Order, error) {
	if _, err := domain.ParseDate(req.Date); err != nil {
		return nil, errors.Validation(map[string]string{"date": err.Error()})
	}

	o := domain.Order{
		ID:          req.ID,
		OrderNumber: strings.TrimSpace(req.OrderNumber),
		Date:        req.Date,
		Supplier:    strings.TrimSpace(req.Supplier),
		Items:       make([]domain.MedicationItem, 0, len(req.Items)),
		Status:      req.Status,
		CreatedAt:   millis(s.clock.now()),
	}
	if o.Status == "" {
		o.Status = domain.OrderDraft
	}
	if o.Status != domain.OrderDraft && o.Status != domain.OrderSaved {
		return nil, errors.Validation(map[string]string{"status": "must be one of: Draft Saved"})
	}

	if o.ID != "" {
		old, err := repository.Find[domain.Order](ctx, s.store, domain.CollectionOrders, o.ID)
		switch {
		case err == nil:
			if old.Status == domain.OrderProcessed {
				return nil, alreadyProcessed(old)
			}
			o.CreatedAt = old.CreatedAt
		case !errors.Is(err, errors.ErrNotFound):
			return nil, err
		}
	} else {
		o.ID = newID()
	}

	for _, it := range req.Items {
		if it.ID == "" {
			it.ID = newID()
		}
		it.Name = domain.NormalizeName(it.Name)
		o.Items = append(o.Items, it)
	}

	if err := s.store.Put(ctx, domain.CollectionOrders, o.ID, o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Delete removes an order; entries already created from it stay
func (s *OrderService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, domain.CollectionOrders, id)
}

// Receive turns every valid order line into an entry referencing the order
// and marks the order Processed. An order is received once.
func (s *OrderService) Receive(ctx context.Context, id string, req *ReceiveRequest) (*ReceiveResult, error) {
	date := req.Date
	if date == "" {
		date = domain.Today(s.clock.now())
	}
	month, year, err := resolveTags(date, "", "")
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return nil, err
	}

	res := &ReceiveResult{}
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		o, err := repository.Find[domain.Order](ctx, tx, domain.CollectionOrders, id)
		if err != nil {
			return mapNotFound(err, "order")
		}
		if o.Status == domain.OrderProcessed {
			return alreadyProcessed(o)
		}

		lines := make([]MovementLine, len(o.Items))
		for i, it := range o.Items {
			lines[i] = MovementLine{DrugName: it.Name, Quantity: it.Quantity, MedicationID: it.MedicationID}
		}
		valid, err := validLines(lines, catalog)
		if err != nil {
			return err
		}

		now := millis(s.clock.now())
		for _, l := range valid {
			e := domain.InventoryEntry{
				ID:           newID(),
				Year:         year,
				Month:        month,
				Supplier:     o.Supplier,
				DrugName:     l.name,
				Quantity:     l.quantity,
				Date:         date,
				CreatedAt:    now,
				OrderID:      o.ID,
				MedicationID: l.medicationID,
			}
			if err := tx.Put(ctx, domain.CollectionEntries, e.ID, e); err != nil {
				return err
			}
			res.Entries = append(res.Entries, e)
		}

		o.Status = domain.OrderProcessed
		res.Order = *o
		return tx.Put(ctx, domain.CollectionOrders, o.ID, o)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id).Int("entries", len(res.Entries)).Msg("order received")
	s.publisher.EntriesRecorded(ctx, res.Entries)
	s.publisher.OrderReceived(ctx, res.Order, len(res.Entries))
	return res, nil
}
