package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// InventoryService records entries, exits, year baselines and expiry write-offs
type InventoryService struct {
	store     repository.Store
	publisher *events.Publisher
	clock     Clock
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store repository.Store, publisher *events.Publisher, clock Clock, log *logger.Logger) *InventoryService {
	return &InventoryService{
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    log,
	}
}

// MovementLine is one medication of an entry or exit form
type MovementLine struct {
	DrugName     string          `json:"drugName"`
	Quantity     domain.Quantity `json:"quantity"`
	MedicationID string          `json:"medicationId,omitempty"`
}

// EntryBatchRequest is the entries form: one supplier, one date, several lines
type EntryBatchRequest struct {
	Supplier string         `json:"supplier" validate:"required"`
	Date     string         `json:"date" validate:"required,datetime=2006-01-02"`
	Month    string         `json:"month" validate:"omitempty,month"`
	Year     string         `json:"year" validate:"omitempty,len=4,numeric"`
	Items    []MovementLine `json:"items" validate:"required,min=1"`
}

// ExitBatchRequest is the exits form: one reason, one date, several lines
type ExitBatchRequest struct {
	Reason string         `json:"reason" validate:"required"`
	Date   string         `json:"date" validate:"required,datetime=2006-01-02"`
	Month  string         `json:"month" validate:"omitempty,month"`
	Year   string         `json:"year" validate:"omitempty,len=4,numeric"`
	Items  []MovementLine `json:"items" validate:"required,min=1"`
}

// MovementFilter narrows movement lists; empty fields match everything
type MovementFilter struct {
	Year   string
	Month  string
	Search string
}

// resolveTags derives month and year from date, or checks the given tags agree with it
func resolveTags(date, month, year string) (string, string, error) {
	dm, dy, err := domain.MonthForDate(date)
	if err != nil {
		return "", "", errors.Validation(map[string]string{"date": err.Error()})
	}
	month = strings.ToUpper(strings.TrimSpace(month))
	year = strings.TrimSpace(year)

	details := map[string]string{}
	if month != "" && month != dm {
		details["month"] = fmt.Sprintf("does not match date %s (%s)", date, dm)
	}
	if year != "" && year != dy {
		details["year"] = fmt.Sprintf("does not match date %s (%s)", date, dy)
	}
	if len(details) > 0 {
		return "", "", errors.Validation(details)
	}
	return dm, dy, nil
}

type resolvedLine struct {
	name         string
	quantity     domain.Quantity
	medicationID string
}

// validLines keeps the lines with a name and a positive quantity, upper-cases
// names and links them to the catalog. It fails when no line is left.
func validLines(lines []MovementLine, catalog catalogIndex) ([]resolvedLine, error) {
	out := make([]resolvedLine, 0, len(lines))
	details := map[string]string{}
	for i, l := range lines {
		id, ok := catalog.link(strings.TrimSpace(l.MedicationID), l.DrugName)
		if !ok {
			details[fmt.Sprintf("items[%d].medicationId", i)] = "unknown medication"
			continue
		}
		name := domain.NormalizeName(l.DrugName)
		if name == "" && id != "" {
			name = catalog.nameOf(id)
		}
		if name == "" || l.Quantity <= 0 {
			continue
		}
		out = append(out, resolvedLine{name: name, quantity: l.Quantity, medicationID: id})
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}
	if len(out) == 0 {
		return nil, errors.Validation(map[string]string{"items": "at least one line needs a medication and a positive quantity"})
	}
	return out, nil
}

// Entry operations

// RecordEntries saves one entry per valid line of the form
func (s *InventoryService) RecordEntries(ctx context.Context, req *EntryBatchRequest) ([]domain.InventoryEntry, error) {
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		return nil, errors.Validation(map[string]string{"supplier": "this field is required"})
	}
	month, year, err := resolveTags(req.Date, req.Month, req.Year)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return nil, err
	}
	lines, err := validLines(req.Items, catalog)
	if err != nil {
		return nil, err
	}

	now := millis(s.clock.now())
	entries := make([]domain.InventoryEntry, len(lines))
	for i, l := range lines {
		entries[i] = domain.InventoryEntry{
			ID:           newID(),
			Year:         year,
			Month:        month,
			Supplier:     supplier,
			DrugName:     l.name,
			Quantity:     l.quantity,
			Date:         req.Date,
			CreatedAt:    now,
			MedicationID: l.medicationID,
		}
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		for _, e := range entries {
			if err := tx.Put(ctx, domain.CollectionEntries, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(entries)).Str("month", month).Str("year", year).Msg("entries recorded")
	s.publisher.EntriesRecorded(ctx, entries)
	return entries, nil
}

// ListEntries returns entries in date order
func (s *InventoryService) ListEntries(ctx context.Context, f MovementFilter) ([]domain.InventoryEntry, error) {
	all, err := repository.List[domain.InventoryEntry](ctx, s.store, domain.CollectionEntries)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if f.matches(e.Year, e.Month, e.DrugName) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// DeleteEntry removes one entry
func (s *InventoryService) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, domain.CollectionEntries, id); err != nil {
		return mapNotFound(err, "entry")
	}
	if err := s.store.Delete(ctx, domain.CollectionEntries, id); err != nil {
		return err
	}
	s.publisher.MovementDeleted(ctx, domain.CollectionEntries, id)
	return nil
}

// Exit operations

// RecordExits saves one exit per valid line of the form
func (s *InventoryService) RecordExits(ctx context.Context, req *ExitBatchRequest) ([]domain.InventoryExit, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, errors.Validation(map[string]string{"reason": "this field is required"})
	}
	month, year, err := resolveTags(req.Date, req.Month, req.Year)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return nil, err
	}
	lines, err := validLines(req.Items, catalog)
	if err != nil {
		return nil, err
	}

	now := millis(s.clock.now())
	exits := make([]domain.InventoryExit, len(lines))
	for i, l := range lines {
		exits[i] = domain.InventoryExit{
			ID:           newID(),
			Year:         year,
			Month:        month,
			DrugName:     l.name,
			Quantity:     l.quantity,
			Reason:       reason,
			Date:         req.Date,
			CreatedAt:    now,
			MedicationID: l.medicationID,
		}
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		for _, e := range exits {
			if err := tx.Put(ctx, domain.CollectionExits, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(exits)).Str("reason", reason).Msg("exits recorded")
	s.publisher.ExitsRecorded(ctx, exits)
	return exits, nil
}

// ListExits returns exits in date order
func (s *InventoryService) ListExits(ctx context.Context, f MovementFilter) ([]domain.InventoryExit, error) {
	all, err := repository.List[domain.InventoryExit](ctx, s.store, domain.CollectionExits)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if f.matches(e.Year, e.Month, e.DrugName) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// DeleteExit removes one exit. A mirrored expiry exit comes back the next
// time its report is saved.
func (s *InventoryService) DeleteExit(ctx context.Context, id string) error {
	exit, err := repository.Find[domain.InventoryExit](ctx, s.store, domain.CollectionExits, id)
	if err != nil {
		return mapNotFound(err, "exit")
	}
	if exit.PeremptionID != "" {
		s.logger.Warn().Str("exit_id", id).Str("peremption_id", exit.PeremptionID).Msg("deleting an exit mirrored from an expiry report")
	}
	if err := s.store.Delete(ctx, domain.CollectionExits, id); err != nil {
		return err
	}
	s.publisher.MovementDeleted(ctx, domain.CollectionExits, id)
	return nil
}

func (f MovementFilter) matches(year, month, name string) bool {
	if f.Year != "" && year != f.Year {
		return false
	}
	if f.Month != "" && month != strings.ToUpper(f.Month) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToUpper(name), strings.ToUpper(strings.TrimSpace(f.Search))) {
		return false
	}
	return true
}

// Initial stock operations

// InitialStockRequest creates or updates a year baseline
type InitialStockRequest struct {
	ID        string                  `json:"id"`
	DocNumber string                  `json:"docNumber"`
	Date      string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Items     []domain.MedicationItem `json:"items"`
}

// InitialDocNumber is the number given to an automatically created baseline
func InitialDocNumber(year string) string {
	return "SI-" + year + "-0001"
}

// ListInitialStocks returns every baseline document
func (s *InventoryService) ListInitialStocks(ctx context.Context) ([]domain.StockInitial, error) {
	return repository.List[domain.StockInitial](ctx, s.store, domain.CollectionInitialStocks)
}

// SaveInitialStock stores a baseline; a year holds a single document
func (s *InventoryService) SaveInitialStock(ctx context.Context, req *InitialStockRequest) (*domain.StockInitial, error) {
	if _, err := domain.ParseDate(req.Date); err != nil {
		return nil, errors.Validation(map[string]string{"date": err.Error()})
	}
	si := domain.StockInitial{
		ID:        req.ID,
		DocNumber: strings.TrimSpace(req.DocNumber),
		Date:      req.Date,
		Items:     make([]domain.MedicationItem, 0, len(req.Items)),
	}
	year := si.Year()
	if si.DocNumber == "" {
		si.DocNumber = InitialDocNumber(year)
	}

	existing, err := s.ListInitialStocks(ctx)
	if err != nil {
		return nil, err
	}
	si.CreatedAt = millis(s.clock.now())
	for _, other := range existing {
		if other.ID == si.ID {
			si.CreatedAt = other.CreatedAt
			continue
		}
		if other.Year() == year {
			return nil, errors.Conflict("an initial stock already exists for "+year).
				WithKey("errors.initial_stock_exists", map[string]string{"year": year})
		}
	}

	catalog, err := loadCatalog(ctx, s.store)
	if err != nil {
		return nil, err
	}
	details := map[string]string{}
	for i, it := range req.Items {
		id, ok := catalog.link(strings.TrimSpace(it.MedicationID), it.Name)
		if !ok {
			details[fmt.Sprintf("items[%d].medicationId", i)] = "unknown medication"
			continue
		}
		it.MedicationID = id
		it.Name = domain.NormalizeName(it.Name)
		if it.Name == "" && id != "" {
			it.Name = catalog.nameOf(id)
		}
		if it.ID == "" {
			it.ID = newID()
		}
		si.Items = append(si.Items, it)
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	if si.ID == "" {
		si.ID = newID()
	}
	if err := s.store.Put(ctx, domain.CollectionInitialStocks, si.ID, si); err != nil {
		return nil, err
	}
	s.publisher.InitialStockSaved(ctx, si)
	return &si, nil
}

// DeleteInitialStock removes a baseline document
func (s *InventoryService) DeleteInitialStock(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, domain.CollectionInitialStocks, id); err != nil {
		return mapNotFound(err, "initial_stock")
	}
	return s.store.Delete(ctx, domain.CollectionInitialStocks, id)
}

// Bootstrap creates an empty baseline dated today when none exists.
// It reports whether a document was created.
func (s *InventoryService) Bootstrap(ctx context.Context) (*domain.StockInitial, bool, error) {
	existing, err := s.ListInitialStocks(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return nil, false, nil
	}

	now := s.clock.now()
	today := domain.Today(now)
	si := domain.StockInitial{
		ID:        newID(),
		DocNumber: InitialDocNumber(today[:4]),
		Date:      today,
		Items:     []domain.MedicationItem{},
		CreatedAt: millis(now),
	}
	if err := s.store.Put(ctx, domain.CollectionInitialStocks, si.ID, si); err != nil {
		return nil, false, err
	}
	s.logger.Info().Str("doc_number", si.DocNumber).Msg("initial stock bootstrapped")
	return &si, true, nil
}
