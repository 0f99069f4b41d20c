package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

type fakeAck struct {
	acked, nacked, rejected bool
	requeue                 bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}
func (f *fakeAck) Reject(tag uint64, requeue bool) error { f.rejected = true; return nil }

func delivery(t *testing.T, eventType string, headers amqp.Table) (amqp.Delivery, *fakeAck) {
	t.Helper()
	ev, err := NewEvent(eventType, "test", "corr-1", BackupRequestedEvent{RequestedBy: "cli"})
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	ack := &fakeAck{}
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}, ack
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(EventBackupCreated, "pharmapsy-api", "c", BackupEvent{File: "BKP01012025.json", Bytes: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)

	var data BackupEvent
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, "BKP01012025.json", data.File)
}

func TestConsumer_HandleMessage(t *testing.T) {
	c := newConsumer(nil, "q", logger.Nop())

	var got BackupRequestedEvent
	var corr string
	c.RegisterHandler(EventBackupRequested, func(ctx context.Context, e *Event) error {
		corr = getCorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	msg, ack := delivery(t, EventBackupRequested, nil)
	c.handleMessage(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.Equal(t, "cli", got.RequestedBy)
	assert.Equal(t, "corr-1", corr)
}

func TestConsumer_UnknownTypeIsAcked(t *testing.T) {
	c := newConsumer(nil, "q", logger.Nop())
	msg, ack := delivery(t, "other.event", nil)
	c.handleMessage(context.Background(), msg)
	assert.True(t, ack.acked)
}

func TestConsumer_MalformedIsRejected(t *testing.T) {
	c := newConsumer(nil, "q", logger.Nop())
	ack := &fakeAck{}
	c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
	assert.True(t, ack.rejected)
}

func TestConsumer_RetryThenDeadLetter(t *testing.T) {
	c := newConsumer(nil, "q", logger.Nop())
	c.RegisterHandler(EventBackupRequested, func(ctx context.Context, e *Event) error {
		return errors.New("disk full")
	})

	msg, ack := delivery(t, EventBackupRequested, nil)
	c.handleMessage(context.Background(), msg)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)

	msg, ack = delivery(t, EventBackupRequested, amqp.Table{
		"x-death": []interface{}{amqp.Table{"count": int64(MaxDeliveryAttempts)}},
	})
	c.handleMessage(context.Background(), msg)
	assert.True(t, ack.rejected)
}
