package events

import (
	"context"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/messaging"
	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
)

// Sink is the transport events are handed to; *messaging.Publisher implements it
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher publishes pharmacy domain events.
// A nil *Publisher is valid and drops every event.
type Publisher struct {
	sink    Sink
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewPublisher creates a publisher on the pharmacy events exchange
func NewPublisher(rmq *messaging.RabbitMQ, m *metrics.Metrics, log *logger.Logger) (*Publisher, error) {
	p, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmapsy-api", log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(p, m, log), nil
}

// NewWithSink creates a publisher on an arbitrary sink
func NewWithSink(sink Sink, m *metrics.Metrics, log *logger.Logger) *Publisher {
	return &Publisher{sink: sink, metrics: m, logger: log}
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.sink == nil {
		return
	}
	err := p.sink.Publish(ctx, eventType, data)
	if p.metrics != nil {
		p.metrics.ObserveEvent(eventType, err)
	}
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// EntriesRecorded publishes a saved batch of entries
func (p *Publisher) EntriesRecorded(ctx context.Context, entries []domain.InventoryEntry) {
	if len(entries) == 0 {
		return
	}
	first := entries[0]
	data := messaging.MovementsRecordedEvent{
		Date:  first.Date,
		Month: first.Month,
		Year:  first.Year,
		Party: first.Supplier,
	}
	for _, e := range entries {
		data.IDs = append(data.IDs, e.ID)
		data.Quantity += e.Quantity.Int()
	}
	p.publish(ctx, messaging.EventEntriesRecorded, data)
}

// ExitsRecorded publishes a saved batch of exits
func (p *Publisher) ExitsRecorded(ctx context.Context, exits []domain.InventoryExit) {
	if len(exits) == 0 {
		return
	}
	first := exits[0]
	data := messaging.MovementsRecordedEvent{
		Date:  first.Date,
		Month: first.Month,
		Year:  first.Year,
		Party: first.Reason,
	}
	for _, e := range exits {
		data.IDs = append(data.IDs, e.ID)
		data.Quantity += e.Quantity.Int()
	}
	p.publish(ctx, messaging.EventExitsRecorded, data)
}

// MovementDeleted publishes the removal of one entry or exit
func (p *Publisher) MovementDeleted(ctx context.Context, collection, id string) {
	p.publish(ctx, messaging.EventMovementDeleted, messaging.MovementDeletedEvent{ID: id, Collection: collection})
}

// InitialStockSaved publishes a saved year baseline
func (p *Publisher) InitialStockSaved(ctx context.Context, si domain.StockInitial) {
	p.publish(ctx, messaging.EventInitialStockSaved, messaging.InitialStockSavedEvent{
		ID:        si.ID,
		DocNumber: si.DocNumber,
		Year:      si.Year(),
		Lines:     len(si.Items),
	})
}

// PeremptionSaved publishes a saved expiry report with its exit sync counts
func (p *Publisher) PeremptionSaved(ctx context.Context, per domain.Peremption, created, updated, removed int) {
	p.publish(ctx, messaging.EventPeremptionSaved, messaging.PeremptionEvent{
		ID:           per.ID,
		ReportNumber: per.ReportNumber,
		Items:        len(per.Items),
		ExitsCreated: created,
		ExitsUpdated: updated,
		ExitsRemoved: removed,
	})
}

// PeremptionDeleted publishes a deleted expiry report
func (p *Publisher) PeremptionDeleted(ctx context.Context, id string, removed int) {
	p.publish(ctx, messaging.EventPeremptionDeleted, messaging.PeremptionEvent{ID: id, ExitsRemoved: removed})
}

// OrderReceived publishes an order turned into entries
func (p *Publisher) OrderReceived(ctx context.Context, o domain.Order, entries int) {
	p.publish(ctx, messaging.EventOrderReceived, messaging.OrderReceivedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Supplier:    o.Supplier,
		Entries:     entries,
	})
}

// BackupCreated publishes a written backup file
func (p *Publisher) BackupCreated(ctx context.Context, file string, size int) {
	p.publish(ctx, messaging.EventBackupCreated, messaging.BackupEvent{File: file, Bytes: size})
}

// DatabaseImported publishes a completed import
func (p *Publisher) DatabaseImported(ctx context.Context, safetyFile string, size int) {
	p.publish(ctx, messaging.EventDatabaseImported, messaging.BackupEvent{File: safetyFile, Bytes: size})
}

// BackupRequested asks the API service to write a backup
func (p *Publisher) BackupRequested(ctx context.Context, requestedBy string) {
	p.publish(ctx, messaging.EventBackupRequested, messaging.BackupRequestedEvent{RequestedBy: requestedBy})
}

// InventoryReminder publishes the monthly inventory reminder
func (p *Publisher) InventoryReminder(ctx context.Context, ev messaging.InventoryReminderEvent) {
	p.publish(ctx, messaging.EventInventoryReminder, ev)
}
