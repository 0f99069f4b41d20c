//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/database"
	apperrors "github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/testutil"
)

// ============================================================================
// INTEGRATION TESTS: PostgresStore against a real PostgreSQL
// ============================================================================

var testDB *database.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	testDB, err = container.Migrated(ctx)
	if err != nil {
		container.Terminate(ctx)
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close()
	container.Terminate(ctx)
	os.Exit(code)
}

func freshStore(t *testing.T) repository.Store {
	t.Helper()
	_, err := testDB.ExecContext(context.Background(), "TRUNCATE records")
	require.NoError(t, err)
	return repository.NewPostgresStore(testDB)
}

func TestPostgresIntegration_CRUD(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)

	med := domain.Medication{ID: "m1", DCI: "PARACETAMOL", CommercialNom: "DOLIPRANE", FullNom: "DOLIPRANE"}
	require.NoError(t, s.Put(ctx, domain.CollectionMedications, med.ID, med))

	got, err := repository.Find[domain.Medication](ctx, s, domain.CollectionMedications, "m1")
	require.NoError(t, err)
	assert.Equal(t, med, *got)

	med.Dosage = "500MG"
	require.NoError(t, s.Put(ctx, domain.CollectionMedications, med.ID, med))
	all, err := repository.List[domain.Medication](ctx, s, domain.CollectionMedications)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "500MG", all[0].Dosage)

	require.NoError(t, s.Delete(ctx, domain.CollectionMedications, "m1"))
	_, err = s.Get(ctx, domain.CollectionMedications, "m1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgresIntegration_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Put(ctx, domain.CollectionSuppliers, "1", domain.Supplier{ID: "1", Name: "A"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.GetAll(ctx, domain.CollectionSuppliers)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPostgresIntegration_ExportImport(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)

	require.NoError(t, s.Put(ctx, domain.CollectionSuppliers, "1", domain.Supplier{ID: "1", Name: "A"}))
	require.NoError(t, s.Put(ctx, domain.CollectionMedications, "m1", domain.Medication{ID: "m1", FullNom: "X"}))

	blob, err := s.ExportAll(ctx)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &doc))
	assert.Contains(t, doc, domain.CollectionSuppliers)

	// suppliers only: medications survive the import
	require.NoError(t, s.ImportAll(ctx, []byte(`{"suppliers":[{"id":"2","name":"B"}]}`)))

	suppliers, err := repository.List[domain.Supplier](ctx, s, domain.CollectionSuppliers)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "B", suppliers[0].Name)

	meds, err := s.GetAll(ctx, domain.CollectionMedications)
	require.NoError(t, err)
	assert.Len(t, meds, 1)

	assert.Error(t, s.ImportAll(ctx, []byte(`{"suppliers":{}}`)))
	suppliers, err = repository.List[domain.Supplier](ctx, s, domain.CollectionSuppliers)
	require.NoError(t, err)
	assert.Len(t, suppliers, 1)
}
