package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pharmapsy/pharmapsy-backend/pkg/database"
)

// PostgresStore keeps records in the JSONB records table
type PostgresStore struct {
	db *database.DB
	tx *sqlx.Tx
}

// NewPostgresStore creates a store on db
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type recordRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

func (s *PostgresStore) q(ctx context.Context) database.Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db.Q(ctx)
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	var rows []recordRow
	query := `SELECT id, data FROM records WHERE collection = $1 ORDER BY id COLLATE "C"`
	if err := s.q(ctx).SelectContext(ctx, &rows, query, collection); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, json.RawMessage(r.Data))
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	var row recordRow
	query := `SELECT id, data FROM records WHERE collection = $1 AND id = $2`
	if err := s.q(ctx).GetContext(ctx, &row, query, collection, id); err != nil {
		if database.IsNoRows(err) {
			return nil, notFound(collection, id)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(row.Data), nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, record any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	raw, err := encode(record)
	if err != nil {
		return err
	}
	return s.put(ctx, collection, id, raw)
}

func (s *PostgresStore) put(ctx context.Context, collection, id string, raw json.RawMessage) error {
	query := `
		INSERT INTO records (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`
	if _, err := s.q(ctx).ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	query := `DELETE FROM records WHERE collection = $1 AND id = $2`
	if _, err := s.q(ctx).ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) ExportAll(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.Atomic(ctx, func(tx Store) error {
		var err error
		blob, err = exportDocument(func(collection string) ([]json.RawMessage, error) {
			return tx.GetAll(ctx, collection)
		})
		return err
	})
	return blob, err
}

func (s *PostgresStore) ImportAll(ctx context.Context, blob []byte) error {
	set, err := parseBackup(blob)
	if err != nil {
		return err
	}
	return s.Atomic(ctx, func(st Store) error {
		tx := st.(*PostgresStore)
		for _, collection := range set.collections() {
			records := set[collection]
			if _, err := tx.q(ctx).ExecContext(ctx, `DELETE FROM records WHERE collection = $1`, collection); err != nil {
				return fmt.Errorf("failed to clear %s: %w", collection, err)
			}
			for _, r := range records {
				if err := tx.put(ctx, collection, r.ID, r.Data); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Atomic runs fn inside one transaction; nested calls join the outer one
func (s *PostgresStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(&PostgresStore{db: s.db, tx: tx})
	})
}

func (s *PostgresStore) Health(ctx context.Context) map[string]string {
	status := s.db.Health(ctx)
	status["driver"] = "postgres"
	return status
}
