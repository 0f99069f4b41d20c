package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/messaging"
)

func saveOrder(t *testing.T, e *env, items ...domain.MedicationItem) *domain.Order {
	t.Helper()
	o, err := e.orders.Save(context.Background(), &service.OrderRequest{
		OrderNumber: "CMD-001",
		Date:        "2025-03-01",
		Supplier:    "1",
		Items:       items,
	})
	require.NoError(t, err)
	return o
}

func TestOrderSave_DefaultsToDraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	o := saveOrder(t, e, item("doliprane", 10))
	assert.Equal(t, domain.OrderDraft, o.Status)
	assert.Equal(t, "DOLIPRANE", o.Items[0].Name)
	assert.NotEmpty(t, o.Items[0].ID)

	_, err := e.orders.Save(ctx, &service.OrderRequest{OrderNumber: "X", Date: "2025-03-01", Supplier: "1", Status: domain.OrderProcessed})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = e.orders.Get(ctx, "missing")
	requireStatus(t, err, http.StatusNotFound)
}

func TestOrderReceive_CreatesEntries(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	med := e.medication(t, "DOLIPRANE", "CP", "500MG", "B/16", "PARACETAMOL")
	o := saveOrder(t, e, item("doliprane cp 500mg b/16", 10), item("LEXOMIL", 0), item("TRANXENE", 3))

	res, err := e.orders.Receive(ctx, o.ID, &service.ReceiveRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessed, res.Order.Status)
	require.Len(t, res.Entries, 2)
	for _, en := range res.Entries {
		assert.Equal(t, o.ID, en.OrderID)
		assert.Equal(t, "1", en.Supplier)
		assert.Equal(t, "2025-03-15", en.Date)
		assert.Equal(t, "MARS", en.Month)
	}
	assert.Equal(t, med.ID, res.Entries[0].MedicationID)

	stored, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessed, stored.Status)

	e.events.AssertEventPublished(t, messaging.EventEntriesRecorded)
	e.events.AssertEventPublished(t, messaging.EventOrderReceived)
}

func TestOrderReceive_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := saveOrder(t, e, item("A", 1))

	_, err := e.orders.Receive(ctx, o.ID, &service.ReceiveRequest{Date: "2025-03-02"})
	require.NoError(t, err)

	_, err = e.orders.Receive(ctx, o.ID, &service.ReceiveRequest{Date: "2025-03-03"})
	requireStatus(t, err, http.StatusConflict)

	_, err = e.orders.Save(ctx, &service.OrderRequest{ID: o.ID, OrderNumber: "CMD-001", Date: "2025-03-01", Supplier: "1"})
	requireStatus(t, err, http.StatusConflict)

	entries, err := e.inventory.ListEntries(ctx, service.MovementFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOrderReceive_WithoutValidLinesLeavesOrderOpen(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := saveOrder(t, e, item("A", 0))

	_, err := e.orders.Receive(ctx, o.ID, &service.ReceiveRequest{})
	requireStatus(t, err, http.StatusBadRequest)

	stored, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDraft, stored.Status)
}

func TestOrderDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := saveOrder(t, e, item("A", 1))

	require.NoError(t, e.orders.Delete(ctx, o.ID))
	requireStatus(t, e.orders.Delete(ctx, o.ID), http.StatusNotFound)
}
