package consumers

import (
	"context"

	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/messaging"
)

// BackupQueue receives backup requests published by pharmapsy-cli
const BackupQueue = "pharmapsy-api.backup-requests"

// Backuper writes a backup file
type Backuper interface {
	WriteBackup(ctx context.Context) (string, error)
}

// BackupConsumer writes a backup whenever one is requested on the bus
type BackupConsumer struct {
	consumer *messaging.Consumer
	backups  Backuper
	logger   *logger.Logger
}

// NewBackupConsumer creates a new backup request consumer
func NewBackupConsumer(rmq *messaging.RabbitMQ, backups Backuper, log *logger.Logger) (*BackupConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, BackupQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePharmacyEvents, messaging.EventBackupRequested); err != nil {
		return nil, err
	}

	c := &BackupConsumer{
		consumer: consumer,
		backups:  backups,
		logger:   log.WithComponent("backup-consumer"),
	}

	consumer.RegisterHandler(messaging.EventBackupRequested, c.handleBackupRequested)

	return c, nil
}

// Start starts consuming messages
func (c *BackupConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *BackupConsumer) handleBackupRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.BackupRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("requested_by", data.RequestedBy).
		Str("event_id", event.ID).
		Msg("received backup request")

	_, err := c.backups.WriteBackup(ctx)
	return err
}
