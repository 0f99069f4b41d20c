package service

import (
	"context"
	"strings"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// CatalogService manages medications, DCI confirmations, suppliers and the pharmacy profile
type CatalogService struct {
	store  repository.Store
	logger *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store repository.Store, log *logger.Logger) *CatalogService {
	return &CatalogService{store: store, logger: log}
}

// MedicationRequest creates or updates a catalog entry
type MedicationRequest struct {
	ID              string `json:"id"`
	DCI             string `json:"dci" validate:"required"`
	CommercialNom   string `json:"commercialNom" validate:"required"`
	Forme           string `json:"forme"`
	Dosage          string `json:"dosage"`
	Conditionnement string `json:"conditionnement"`
}

func (r MedicationRequest) normalized() domain.Medication {
	m := domain.Medication{
		ID:              r.ID,
		DCI:             domain.NormalizeName(r.DCI),
		CommercialNom:   domain.NormalizeName(r.CommercialNom),
		Forme:           domain.NormalizeName(r.Forme),
		Dosage:          domain.NormalizeName(r.Dosage),
		Conditionnement: domain.NormalizeName(r.Conditionnement),
	}
	m.FullNom = domain.ComposeFullName(m.CommercialNom, m.Forme, m.Dosage, m.Conditionnement)
	return m
}

func sameProduct(a, b domain.Medication) bool {
	return a.CommercialNom == b.CommercialNom &&
		a.Forme == b.Forme &&
		a.Dosage == b.Dosage &&
		a.Conditionnement == b.Conditionnement
}

// Medication operations

// ListMedications returns the catalog ordered by id
func (s *CatalogService) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	return repository.List[domain.Medication](ctx, s.store, domain.CollectionMedications)
}

// GetMedication gets a medication by id
func (s *CatalogService) GetMedication(ctx context.Context, id string) (*domain.Medication, error) {
	m, err := repository.Find[domain.Medication](ctx, s.store, domain.CollectionMedications, id)
	if err != nil {
		return nil, mapNotFound(err, "medication")
	}
	return m, nil
}

// SaveMedication upper-cases the parts, composes the full name and rejects
// duplicates. A medication missing from the latest initial stock document is
// added to it with a zero quantity so it shows on the baseline form.
func (s *CatalogService) SaveMedication(ctx context.Context, req *MedicationRequest) (*domain.Medication, error) {
	med := req.normalized()
	if med.CommercialNom == "" {
		return nil, errors.Validation(map[string]string{"commercialNom": "this field is required"})
	}

	var baselineDoc string
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		existing, err := repository.List[domain.Medication](ctx, tx, domain.CollectionMedications)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.ID != med.ID && sameProduct(other, med) {
				return errors.Conflict("medication already exists: "+med.FullNom).
					WithKey("errors.duplicate_medication", nil)
			}
		}
		if med.ID == "" {
			med.ID = newID()
		}
		if err := tx.Put(ctx, domain.CollectionMedications, med.ID, med); err != nil {
			return err
		}
		baselineDoc, err = addBaselineLine(ctx, tx, med)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := s.logger.Info().Str("medication_id", med.ID).Str("full_nom", med.FullNom)
	if baselineDoc != "" {
		ev = ev.Str("initial_stock", baselineDoc)
	}
	ev.Msg("medication saved")
	return &med, nil
}

// addBaselineLine appends a zero line for med to the most recent initial
// stock document unless a line already carries its id or full name. It
// returns the document number it changed.
func addBaselineLine(ctx context.Context, tx repository.Store, med domain.Medication) (string, error) {
	docs, err := repository.List[domain.StockInitial](ctx, tx, domain.CollectionInitialStocks)
	if err != nil || len(docs) == 0 {
		return "", err
	}
	latest := docs[0]
	for _, d := range docs[1:] {
		if d.Date > latest.Date {
			latest = d
		}
	}
	for _, it := range latest.Items {
		if it.MedicationID == med.ID || domain.NormalizeName(it.Name) == med.FullNom {
			return "", nil
		}
	}
	latest.Items = append(latest.Items, domain.MedicationItem{
		ID:           newID(),
		Name:         med.FullNom,
		Quantity:     0,
		Unit:         "BOITE",
		MedicationID: med.ID,
	})
	if err := tx.Put(ctx, domain.CollectionInitialStocks, latest.ID, latest); err != nil {
		return "", err
	}
	return latest.DocNumber, nil
}

// DeleteMedication removes a catalog entry; id-linked movements keep their id
func (s *CatalogService) DeleteMedication(ctx context.Context, id string) error {
	if _, err := s.GetMedication(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, domain.CollectionMedications, id)
}

// DCI confirmation operations

// ConfirmationRequest records the prescription regime of a DCI
type ConfirmationRequest struct {
	ID       string `json:"id"`
	DCI      string `json:"dci" validate:"required"`
	Remarque string `json:"remarque" validate:"required,oneof='ORDONNANCE ORDINAIRE' 'ORDONNANCE 03 SOUCHES'"`
}

// ListConfirmations returns every DCI confirmation
func (s *CatalogService) ListConfirmations(ctx context.Context) ([]domain.DCIConfirmation, error) {
	return repository.List[domain.DCIConfirmation](ctx, s.store, domain.CollectionConfirmations)
}

// SaveConfirmation creates or updates a DCI confirmation
func (s *CatalogService) SaveConfirmation(ctx context.Context, req *ConfirmationRequest) (*domain.DCIConfirmation, error) {
	c := domain.DCIConfirmation{
		ID:       req.ID,
		DCI:      domain.NormalizeName(req.DCI),
		Remarque: strings.TrimSpace(req.Remarque),
	}
	if c.Remarque != domain.RemarqueOrdinaire && c.Remarque != domain.RemarqueSouches {
		return nil, errors.Validation(map[string]string{"remarque": "must be one of: " + domain.RemarqueOrdinaire + ", " + domain.RemarqueSouches})
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if err := s.store.Put(ctx, domain.CollectionConfirmations, c.ID, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConfirmation removes a DCI confirmation
func (s *CatalogService) DeleteConfirmation(ctx context.Context, id string) error {
	return s.store.Delete(ctx, domain.CollectionConfirmations, id)
}

// Regime returns the confirmation recorded for dci
func (s *CatalogService) Regime(ctx context.Context, dci string) (*domain.DCIConfirmation, error) {
	all, err := s.ListConfirmations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if domain.SameName(strings.TrimSpace(all[i].DCI), strings.TrimSpace(dci)) {
			return &all[i], nil
		}
	}
	return nil, errors.NotFound("confirmation")
}

// MedicationRegime returns the confirmation of a medication's DCI
func (s *CatalogService) MedicationRegime(ctx context.Context, medicationID string) (*domain.DCIConfirmation, error) {
	med, err := s.GetMedication(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	return s.Regime(ctx, med.DCI)
}

// Supplier operations

// SupplierRequest creates or updates a supplier
type SupplierRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// ListSuppliers returns the stored suppliers, or the default seed when none is stored
func (s *CatalogService) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers, err := repository.List[domain.Supplier](ctx, s.store, domain.CollectionSuppliers)
	if err != nil {
		return nil, err
	}
	if len(suppliers) == 0 {
		return domain.DefaultSuppliers(), nil
	}
	return suppliers, nil
}

// SaveSupplier creates or updates a supplier
func (s *CatalogService) SaveSupplier(ctx context.Context, req *SupplierRequest) (*domain.Supplier, error) {
	sup := domain.Supplier{
		ID:      req.ID,
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
	}
	if sup.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "this field is required"})
	}
	if sup.ID == "" {
		sup.ID = newID()
	}
	if err := s.store.Put(ctx, domain.CollectionSuppliers, sup.ID, sup); err != nil {
		return nil, err
	}
	return &sup, nil
}

// DeleteSupplier removes a supplier
func (s *CatalogService) DeleteSupplier(ctx context.Context, id string) error {
	return s.store.Delete(ctx, domain.CollectionSuppliers, id)
}

// Pharmacy profile

// GetPharmacy returns the letterhead, empty when never saved
func (s *CatalogService) GetPharmacy(ctx context.Context) (*domain.PharmacyInfo, error) {
	rec, err := repository.Find[domain.PharmacyRecord](ctx, s.store, domain.CollectionPharmacy, domain.PharmacyKey)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &domain.PharmacyInfo{}, nil
		}
		return nil, err
	}
	return &rec.Data, nil
}

// SavePharmacy replaces the letterhead
func (s *CatalogService) SavePharmacy(ctx context.Context, info *domain.PharmacyInfo) (*domain.PharmacyInfo, error) {
	rec := domain.PharmacyRecord{Key: domain.PharmacyKey, Data: *info}
	if err := s.store.Put(ctx, domain.CollectionPharmacy, domain.PharmacyKey, rec); err != nil {
		return nil, err
	}
	return info, nil
}
