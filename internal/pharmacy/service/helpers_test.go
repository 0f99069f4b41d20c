package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
	"github.com/pharmapsy/pharmapsy-backend/pkg/testutil"
)

// fixedNow is 15 March 2025, 10:00 UTC
var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	store     repository.Store
	events    *testutil.MockPublisher
	metrics   *metrics.Metrics
	catalog   *service.CatalogService
	settings  *service.SettingsService
	inventory *service.InventoryService
	orders    *service.OrderService
	reports   *service.ReportService
	backups   *service.BackupService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Nop()
	store := repository.NewMemoryStore()
	mock := testutil.NewMockPublisher()
	m := metrics.New("pharmapsy_test")
	pub := events.NewWithSink(mock, m, log)
	clock := service.Clock(func() time.Time { return fixedNow })

	return &env{
		store:     store,
		events:    mock,
		metrics:   m,
		catalog:   service.NewCatalogService(store, log),
		settings:  service.NewSettingsService(store),
		inventory: service.NewInventoryService(store, pub, clock, log),
		orders:    service.NewOrderService(store, pub, clock, log),
		reports:   service.NewReportService(store, m, clock, log),
		backups:   service.NewBackupService(store, pub, t.TempDir(), clock, log),
	}
}

func (e *env) medication(t *testing.T, commercialNom, forme, dosage, conditionnement, dci string) *domain.Medication {
	t.Helper()
	med, err := e.catalog.SaveMedication(context.Background(), &service.MedicationRequest{
		DCI:             dci,
		CommercialNom:   commercialNom,
		Forme:           forme,
		Dosage:          dosage,
		Conditionnement: conditionnement,
	})
	require.NoError(t, err)
	return med
}

func (e *env) baseline(t *testing.T, date string, items ...domain.MedicationItem) *domain.StockInitial {
	t.Helper()
	si, err := e.inventory.SaveInitialStock(context.Background(), &service.InitialStockRequest{Date: date, Items: items})
	require.NoError(t, err)
	return si
}

func (e *env) entry(t *testing.T, date, name string, qty int) domain.InventoryEntry {
	t.Helper()
	out, err := e.inventory.RecordEntries(context.Background(), &service.EntryBatchRequest{
		Supplier: "Global Health Dist.",
		Date:     date,
		Items:    []service.MovementLine{{DrugName: name, Quantity: domain.Quantity(qty)}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func (e *env) exit(t *testing.T, date, name string, qty int) domain.InventoryExit {
	t.Helper()
	out, err := e.inventory.RecordExits(context.Background(), &service.ExitBatchRequest{
		Reason: "VENTE",
		Date:   date,
		Items:  []service.MovementLine{{DrugName: name, Quantity: domain.Quantity(qty)}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func item(name string, qty int) domain.MedicationItem {
	return domain.MedicationItem{Name: name, Quantity: domain.Quantity(qty), Unit: "BOITE"}
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, status, errors.StatusCode(err), "error: %v", err)
}
