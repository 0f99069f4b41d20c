package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
)

func TestSaveMedication_NormalizesAndComposesName(t *testing.T) {
	e := newEnv(t)

	med := e.medication(t, " doliprane ", "cp", "500mg", "b/16", "paracetamol")

	assert.NotEmpty(t, med.ID)
	assert.Equal(t, "DOLIPRANE", med.CommercialNom)
	assert.Equal(t, "PARACETAMOL", med.DCI)
	assert.Equal(t, "DOLIPRANE CP 500MG B/16", med.FullNom)

	got, err := e.catalog.GetMedication(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, *med, *got)
}

func TestSaveMedication_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	first := e.medication(t, "DOLIPRANE", "CP", "500MG", "B/16", "PARACETAMOL")

	_, err := e.catalog.SaveMedication(ctx, &service.MedicationRequest{
		DCI: "paracetamol", CommercialNom: "doliprane", Forme: "cp", Dosage: "500mg", Conditionnement: "b/16",
	})
	requireStatus(t, err, http.StatusConflict)

	// saving the same record again is an update
	updated, err := e.catalog.SaveMedication(ctx, &service.MedicationRequest{
		ID: first.ID, DCI: "PARACETAMOL ", CommercialNom: "DOLIPRANE", Forme: "CP", Dosage: "500MG", Conditionnement: "B/16",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)

	all, err := e.catalog.ListMedications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveMedication_AddsLineToLatestBaseline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	current, created, err := e.inventory.Bootstrap(ctx)
	require.NoError(t, err)
	require.True(t, created)
	e.baseline(t, "2024-01-01", item("RIVOTRIL CP 2MG B/40", 12))

	med := e.medication(t, "DOLIPRANE", "CP", "500MG", "B/16", "PARACETAMOL")

	byYear := func() map[string]domain.StockInitial {
		docs, err := e.inventory.ListInitialStocks(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		out := map[string]domain.StockInitial{}
		for _, d := range docs {
			out[d.Year()] = d
		}
		return out
	}

	docs := byYear()
	assert.Len(t, docs["2024"].Items, 1, "older documents are left alone")
	require.Equal(t, current.ID, docs["2025"].ID)
	lines := docs["2025"].Items
	require.Len(t, lines, 1)
	assert.Equal(t, "DOLIPRANE CP 500MG B/16", lines[0].Name)
	assert.Equal(t, med.ID, lines[0].MedicationID)
	assert.Equal(t, domain.Quantity(0), lines[0].Quantity)
	assert.Equal(t, "BOITE", lines[0].Unit)
	assert.NotEmpty(t, lines[0].ID)

	// an update finds its line by id and adds nothing
	_, err = e.catalog.SaveMedication(ctx, &service.MedicationRequest{
		ID: med.ID, DCI: "PARACETAMOL", CommercialNom: "DOLIPRANE", Forme: "CP", Dosage: "500MG", Conditionnement: "B/20",
	})
	require.NoError(t, err)
	assert.Len(t, byYear()["2025"].Items, 1)

	// a line recorded by name counts as present
	e.baseline(t, "2026-01-01", item("LEXOMIL CP 6MG B/30", 3))
	e.medication(t, "LEXOMIL", "CP", "6MG", "B/30", "BROMAZEPAM")
	all, err := e.inventory.ListInitialStocks(ctx)
	require.NoError(t, err)
	for _, d := range all {
		if d.Year() == "2026" {
			assert.Len(t, d.Items, 1)
		}
	}
}

func TestSaveMedication_WithoutBaselineOnlySavesMedication(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.medication(t, "DOLIPRANE", "CP", "500MG", "B/16", "PARACETAMOL")

	docs, err := e.inventory.ListInitialStocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSaveMedication_RequiresCommercialName(t *testing.T) {
	e := newEnv(t)
	_, err := e.catalog.SaveMedication(context.Background(), &service.MedicationRequest{DCI: "X", CommercialNom: "  "})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestDeleteMedication(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	med := e.medication(t, "LEXOMIL", "CP", "6MG", "B/30", "BROMAZEPAM")

	require.NoError(t, e.catalog.DeleteMedication(ctx, med.ID))

	_, err := e.catalog.GetMedication(ctx, med.ID)
	requireStatus(t, err, http.StatusNotFound)
	requireStatus(t, e.catalog.DeleteMedication(ctx, med.ID), http.StatusNotFound)
}

func TestMedicationRegime(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	med := e.medication(t, "LEXOMIL", "CP", "6MG", "B/30", "bromazepam")

	_, err := e.catalog.MedicationRegime(ctx, med.ID)
	requireStatus(t, err, http.StatusNotFound)

	_, err = e.catalog.SaveConfirmation(ctx, &service.ConfirmationRequest{DCI: "Bromazepam", Remarque: domain.RemarqueSouches})
	require.NoError(t, err)

	regime, err := e.catalog.MedicationRegime(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "BROMAZEPAM", regime.DCI)
	assert.Equal(t, domain.RemarqueSouches, regime.Remarque)
}

func TestSaveConfirmation_RejectsUnknownRemarque(t *testing.T) {
	e := newEnv(t)
	_, err := e.catalog.SaveConfirmation(context.Background(), &service.ConfirmationRequest{DCI: "X", Remarque: "SANS ORDONNANCE"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestListSuppliers_DefaultsUntilFirstSave(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	suppliers, err := e.catalog.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSuppliers(), suppliers)

	saved, err := e.catalog.SaveSupplier(ctx, &service.SupplierRequest{Name: " Biopharm ", Phone: "021 00 00 00"})
	require.NoError(t, err)

	suppliers, err = e.catalog.ListSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "Biopharm", suppliers[0].Name)
	assert.Equal(t, saved.ID, suppliers[0].ID)

	require.NoError(t, e.catalog.DeleteSupplier(ctx, saved.ID))
	suppliers, err = e.catalog.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Len(t, suppliers, 2)
}

func TestPharmacyProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	empty, err := e.catalog.GetPharmacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PharmacyInfo{}, *empty)

	info := &domain.PharmacyInfo{Name: "PHARMACIE DU CENTRE", Address: "ALGER", NOrdre: "1234"}
	_, err = e.catalog.SavePharmacy(ctx, info)
	require.NoError(t, err)

	got, err := e.catalog.GetPharmacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, *info, *got)

	raw, err := e.store.Get(ctx, domain.CollectionPharmacy, domain.PharmacyKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"key":"main"`)
}
