package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type memData map[string]map[string]json.RawMessage

func (d memData) clone() memData {
	out := make(memData, len(d))
	for collection, records := range d {
		c := make(map[string]json.RawMessage, len(records))
		for id, raw := range records {
			c[id] = raw
		}
		out[collection] = c
	}
	return out
}

func (d memData) getAll(collection string) []json.RawMessage {
	records := d[collection]
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, append(json.RawMessage(nil), records[id]...))
	}
	return out
}

func (d memData) put(collection, id string, raw json.RawMessage) {
	records, ok := d[collection]
	if !ok {
		records = map[string]json.RawMessage{}
		d[collection] = records
	}
	records[id] = raw
}

// MemoryStore keeps records in process memory.
// It backs tests and the offline CLI.
type MemoryStore struct {
	mu   sync.RWMutex
	data memData
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: memData{}}
}

func (s *MemoryStore) view() *memTx {
	return &memTx{data: s.data}
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetAll(ctx, collection)
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Get(ctx, collection, id)
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().Put(ctx, collection, id, record)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().Delete(ctx, collection, id)
}

func (s *MemoryStore) ExportAll(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ExportAll(ctx)
}

func (s *MemoryStore) ImportAll(ctx context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ImportAll(ctx, blob)
}

// Atomic runs fn on a private copy and swaps it in when fn succeeds.
// Writers are serialized for the duration of fn.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": "up", "driver": "memory"}
}

// memTx is the unlocked view over a memData, handed to Atomic callbacks
type memTx struct {
	data memData
}

func (t *memTx) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return t.data.getAll(collection), nil
}

func (t *memTx) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	raw, ok := t.data[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (t *memTx) Put(ctx context.Context, collection, id string, record any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	raw, err := encode(record)
	if err != nil {
		return err
	}
	t.data.put(collection, id, raw)
	return nil
}

func (t *memTx) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	delete(t.data[collection], id)
	return nil
}

func (t *memTx) ExportAll(ctx context.Context) ([]byte, error) {
	return exportDocument(func(collection string) ([]json.RawMessage, error) {
		return t.data.getAll(collection), nil
	})
}

func (t *memTx) ImportAll(ctx context.Context, blob []byte) error {
	set, err := parseBackup(blob)
	if err != nil {
		return err
	}
	for collection, records := range set {
		fresh := make(map[string]json.RawMessage, len(records))
		for _, r := range records {
			fresh[r.ID] = append(json.RawMessage(nil), r.Data...)
		}
		t.data[collection] = fresh
	}
	return nil
}

func (t *memTx) Atomic(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *memTx) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": "up", "driver": "memory"}
}
