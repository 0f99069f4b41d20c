package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
)

// InstrumentedStore records latency and outcome of every store call
type InstrumentedStore struct {
	next    Store
	metrics *metrics.Metrics
}

// Instrument wraps s; a nil m returns s unchanged
func Instrument(s Store, m *metrics.Metrics) Store {
	if m == nil {
		return s
	}
	return &InstrumentedStore{next: s, metrics: m}
}

func (s *InstrumentedStore) GetAll(ctx context.Context, collection string) (out []json.RawMessage, err error) {
	defer s.observe("get_all", collection, time.Now(), &err)
	return s.next.GetAll(ctx, collection)
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (out json.RawMessage, err error) {
	defer s.observe("get", collection, time.Now(), &err)
	return s.next.Get(ctx, collection, id)
}

func (s *InstrumentedStore) Put(ctx context.Context, collection, id string, record any) (err error) {
	defer s.observe("put", collection, time.Now(), &err)
	return s.next.Put(ctx, collection, id, record)
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) (err error) {
	defer s.observe("delete", collection, time.Now(), &err)
	return s.next.Delete(ctx, collection, id)
}

func (s *InstrumentedStore) ExportAll(ctx context.Context) (out []byte, err error) {
	defer s.observe("export", "*", time.Now(), &err)
	return s.next.ExportAll(ctx)
}

func (s *InstrumentedStore) ImportAll(ctx context.Context, blob []byte) (err error) {
	defer s.observe("import", "*", time.Now(), &err)
	return s.next.ImportAll(ctx, blob)
}

func (s *InstrumentedStore) Atomic(ctx context.Context, fn func(Store) error) (err error) {
	defer s.observe("atomic", "*", time.Now(), &err)
	return s.next.Atomic(ctx, func(tx Store) error {
		return fn(&InstrumentedStore{next: tx, metrics: s.metrics})
	})
}

func (s *InstrumentedStore) Health(ctx context.Context) map[string]string {
	return s.next.Health(ctx)
}

func (s *InstrumentedStore) observe(op, collection string, start time.Time, err *error) {
	s.metrics.ObserveStore(op, collection, start, *err)
}
