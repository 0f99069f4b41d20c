package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExchangePharmacyEvents carries every event emitted by the pharmacy service
const ExchangePharmacyEvents = "pharmacy.events"

// Event types, also used as routing keys
const (
	EventEntriesRecorded   = "pharmacy.inventory.entries.recorded"
	EventExitsRecorded     = "pharmacy.inventory.exits.recorded"
	EventMovementDeleted   = "pharmacy.inventory.movement.deleted"
	EventInitialStockSaved = "pharmacy.inventory.initial.saved"
	EventPeremptionSaved   = "pharmacy.peremption.saved"
	EventPeremptionDeleted = "pharmacy.peremption.deleted"
	EventOrderReceived     = "pharmacy.order.received"
	EventBackupCreated     = "pharmacy.backup.created"
	EventBackupRequested   = "pharmacy.backup.requested"
	EventDatabaseImported  = "pharmacy.backup.imported"
	EventInventoryReminder = "pharmacy.reminder.inventory"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// MovementsRecordedEvent is published after a batch of entries or exits is saved
type MovementsRecordedEvent struct {
	IDs      []string `json:"ids"`
	Date     string   `json:"date"`
	Month    string   `json:"month"`
	Year     string   `json:"year"`
	Party    string   `json:"party"` // supplier for entries, reason for exits
	Quantity int      `json:"quantity"`
}

// MovementDeletedEvent is published when a single entry or exit is removed
type MovementDeletedEvent struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
}

// InitialStockSavedEvent is published when a year baseline is saved
type InitialStockSavedEvent struct {
	ID        string `json:"id"`
	DocNumber string `json:"doc_number"`
	Year      string `json:"year"`
	Lines     int    `json:"lines"`
}

// PeremptionEvent is published when an expiry report is saved or deleted
type PeremptionEvent struct {
	ID           string `json:"id"`
	ReportNumber string `json:"report_number"`
	Items        int    `json:"items"`
	ExitsCreated int    `json:"exits_created"`
	ExitsUpdated int    `json:"exits_updated"`
	ExitsRemoved int    `json:"exits_removed"`
}

// OrderReceivedEvent is published when an order is turned into entries
type OrderReceivedEvent struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Supplier    string `json:"supplier"`
	Entries     int    `json:"entries"`
}

// BackupEvent is published after a backup file is written or an import completes
type BackupEvent struct {
	File  string `json:"file"`
	Bytes int    `json:"bytes"`
}

// BackupRequestedEvent asks the API service to write a backup now
type BackupRequestedEvent struct {
	RequestedBy string `json:"requested_by"`
}

// InventoryReminderEvent is published on the first day of each month
type InventoryReminderEvent struct {
	Key     string `json:"key"` // YYYY-M, month zero based
	Month   string `json:"month"`
	Year    string `json:"year"`
	Message string `json:"message"`
}
