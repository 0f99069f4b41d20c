// Package repository persists pharmacy records as JSON documents grouped by
// collection, mirroring the layout of the JSON backup files.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
)

// Store is the document persistence collaborator
type Store interface {
	// GetAll returns every record of collection ordered by id
	GetAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	// Get returns one record or an error wrapping errors.ErrNotFound
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Put upserts record under id
	Put(ctx context.Context, collection, id string, record any) error
	// Delete removes a record; deleting a missing record is not an error
	Delete(ctx context.Context, collection, id string) error
	// ExportAll returns one JSON property per collection holding its records verbatim
	ExportAll(ctx context.Context) ([]byte, error)
	// ImportAll replaces every collection present in blob.
	// The blob is validated before anything is written.
	ImportAll(ctx context.Context, blob []byte) error
	// Atomic runs fn against a store whose writes commit together
	Atomic(ctx context.Context, fn func(Store) error) error
	Health(ctx context.Context) map[string]string
}

// KeyField returns the property holding the record key of collection
func KeyField(collection string) string {
	switch collection {
	case domain.CollectionPharmacy, domain.CollectionSettings:
		return "key"
	default:
		return "id"
	}
}

func checkCollection(collection string) error {
	if !domain.IsCollection(collection) {
		return errors.BadRequest("unknown collection " + collection)
	}
	return nil
}

func notFound(collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, errors.ErrNotFound)
}

func encode(record any) (json.RawMessage, error) {
	if raw, ok := record.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.BadRequest("malformed record")
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// keyedRecord is one validated backup record
type keyedRecord struct {
	ID   string
	Data json.RawMessage
}

// importSet is a validated backup: collection name to its replacement records
type importSet map[string][]keyedRecord

// collections lists the present collections in backup order
func (s importSet) collections() []string {
	out := make([]string, 0, len(s))
	for _, c := range domain.Collections {
		if _, ok := s[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// parseBackup validates a backup blob. Unknown collections are dropped.
func parseBackup(blob []byte) (importSet, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, invalidBackup("root must be a JSON object")
	}
	if raw == nil {
		return nil, invalidBackup("root must be a JSON object")
	}

	set := importSet{}
	for _, collection := range domain.Collections {
		body, ok := raw[collection]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil || items == nil {
			return nil, invalidBackup(collection + " must be an array")
		}
		records := make([]keyedRecord, 0, len(items))
		for i, item := range items {
			id, data, err := recordKey(item, KeyField(collection))
			if err != nil {
				return nil, invalidBackup(fmt.Sprintf("%s[%d]: %v", collection, i, err))
			}
			records = append(records, keyedRecord{ID: id, Data: data})
		}
		set[collection] = records
	}
	return set, nil
}

// recordKey reads the key of a backup record. Numeric keys are accepted and
// rewritten as strings so the record decodes like the ones the API writes.
func recordKey(item json.RawMessage, field string) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
		return "", nil, fmt.Errorf("record must be an object")
	}
	v, ok := obj[field]
	if !ok {
		return "", nil, fmt.Errorf("missing %q", field)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if s == "" {
			return "", nil, fmt.Errorf("empty %q", field)
		}
		return s, item, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			obj[field], _ = json.Marshal(n.String())
			data, err := json.Marshal(obj)
			if err != nil {
				return "", nil, err
			}
			return n.String(), data, nil
		}
	}
	return "", nil, fmt.Errorf("%q must be a string or a number", field)
}

// Validate checks a backup blob without writing anything
func Validate(blob []byte) error {
	_, err := parseBackup(blob)
	return err
}

func invalidBackup(reason string) error {
	return errors.BadRequest("invalid backup: "+reason).
		WithKey("errors.invalid_backup", nil).
		WithDetails(map[string]string{"backup": reason})
}

// exportDocument renders collections in backup order
func exportDocument(get func(collection string) ([]json.RawMessage, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, collection := range domain.Collections {
		records, err := get(collection)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []json.RawMessage{}
		}
		body, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", collection, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(collection)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// List decodes every record of collection into T
func List[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	raws, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Skipped is a record Decode could not read
type Skipped struct {
	Collection string
	Index      int
	Err        error
}

// Decode is List for read paths that must not fail on one bad record:
// records that do not decode into T are reported and left out.
func Decode[T any](ctx context.Context, s Store, collection string) ([]T, []Skipped, error) {
	raws, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, nil, err
	}
	out := make([]T, 0, len(raws))
	var skipped []Skipped
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			skipped = append(skipped, Skipped{Collection: collection, Index: i, Err: err})
			continue
		}
		out = append(out, v)
	}
	return out, skipped, nil
}

// Find decodes one record of collection into T
func Find[T any](ctx context.Context, s Store, collection, id string) (*T, error) {
	raw, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", collection, err)
	}
	return &v, nil
}
