package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
)

var (
	orgA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	orgB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func fixedClock(ms int64) Clock {
	return func() time.Time { return time.UnixMilli(ms) }
}

func patientRow(id string, org uuid.UUID, updated int64) schema.Row {
	return schema.Row{
		"id": id, "orgId": org.String(), "firstName": "Ada", "lastName": "Lovelace",
		"status": schema.PatientActive, "createdAt": updated, "updatedAt": updated,
	}
}

func staff(org uuid.UUID) models.Identity {
	return models.Identity{UserID: uuid.New(), OrgID: org, Role: models.OrgRoleStaff}
}

func TestMemoryStore_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schema.Default(), fixedClock(1000))

	err := store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		assert.Equal(t, int64(1000), tx.Now())
		return tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, tx.Now()))
	})
	require.NoError(t, err)
	_, ok := store.Row(schema.TablePatient, "p1")
	assert.True(t, ok)

	errBoom := errors.New("boom")
	err = store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Insert(ctx, schema.TablePatient, patientRow("p2", orgA, tx.Now())))
		require.NoError(t, tx.Update(ctx, schema.TablePatient, "p1", schema.Row{"firstName": "Grace"}))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, ok = store.Row(schema.TablePatient, "p2")
	assert.False(t, ok, "aborted insert must not be visible")
	p1, _ := store.Row(schema.TablePatient, "p1")
	assert.Equal(t, "Ada", p1["firstName"], "aborted update must not be visible")
}

func TestMemoryStore_UpdateDeleteSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schema.Default(), fixedClock(1000))

	err := store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, schema.TablePatient, "missing", schema.Row{"firstName": "X"})
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		if err := tx.Delete(ctx, schema.TablePatient, "missing"); err != nil {
			return err
		}
		return tx.Delete(ctx, schema.TablePatient, "missing")
	})
	assert.NoError(t, err)

	err = store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, 1)); err != nil {
			return err
		}
		return tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, 1))
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestMemoryStore_QueryScopesByOrgAndVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schema.Default(), fixedClock(1000))
	insert := func(rows ...schema.Row) {
		require.NoError(t, store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
			for _, r := range rows {
				if err := tx.Insert(ctx, schema.TablePatient, r); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	insert(patientRow("p1", orgA, 10))
	insert(patientRow("p2", orgA, 5), patientRow("p3", orgB, 40))
	insert(patientRow("p4", orgA, 1))

	changes, err := store.Query(ctx, staff(orgA), schema.TablePatient, 1)
	require.NoError(t, err)
	require.Len(t, changes.Rows, 2)
	assert.Equal(t, "p2", changes.Rows[0]["id"], "ordered by commit version, not updatedAt")
	assert.Equal(t, "p4", changes.Rows[1]["id"])
	assert.Equal(t, int64(3), changes.Version)
	assert.Empty(t, changes.Deleted)

	changes, err = store.Query(ctx, models.Anonymous, schema.TablePatient, 0)
	require.NoError(t, err)
	assert.Empty(t, changes.Rows)
}

func TestMemoryStore_DeletesAreReported(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schema.Default(), fixedClock(1000))
	require.NoError(t, store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, 1)); err != nil {
			return err
		}
		return tx.Insert(ctx, schema.TablePatient, patientRow("pb", orgB, 1))
	}))
	first, err := store.Query(ctx, staff(orgA), schema.TablePatient, 0)
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)

	require.NoError(t, store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		if err := tx.Delete(ctx, schema.TablePatient, "p1"); err != nil {
			return err
		}
		return tx.Delete(ctx, schema.TablePatient, "pb")
	}))

	changes, err := store.Query(ctx, staff(orgA), schema.TablePatient, first.Version)
	require.NoError(t, err)
	assert.Empty(t, changes.Rows)
	assert.Equal(t, []string{"p1"}, changes.Deleted, "other organizations' deletes stay hidden")
	assert.Greater(t, changes.Version, first.Version)

	require.NoError(t, store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		return tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, 1))
	}))
	changes, err = store.Query(ctx, staff(orgA), schema.TablePatient, first.Version)
	require.NoError(t, err)
	assert.Len(t, changes.Rows, 1)
	assert.Empty(t, changes.Deleted, "reinserting clears the tombstone")
}

func TestMemoryStore_ReadOnlyRunKeepsVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schema.Default(), fixedClock(1000))
	require.NoError(t, store.Run(ctx, staff(orgA), func(ctx context.Context, tx Tx) error {
		_, err := tx.Get(ctx, schema.TablePatient, "nope")
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}))
	assert.Equal(t, int64(0), store.Version())
}
