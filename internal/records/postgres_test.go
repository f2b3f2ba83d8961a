package records

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
	"github.com/nextoral/backend/pkg/database"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })
	return NewPostgresStore(mock, database.NewTxManager(mock), schema.Default(), fixedClock(5000)), mock
}

func TestPostgresStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients \(created_at,first_name,id,last_name,org_id,status,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\)`).
		WithArgs(int64(5000), "Ada", "p1", "Lovelace", orgA.String(), schema.PatientActive, int64(5000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.Run(context.Background(), staff(orgA), func(ctx context.Context, tx Tx) error {
		return tx.Insert(ctx, schema.TablePatient, patientRow("p1", orgA, tx.Now()))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE patients SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.Run(context.Background(), staff(orgA), func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, schema.TablePatient, "p1", schema.Row{"firstName": "Jane", "updatedAt": tx.Now()})
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	tbl, err := schema.Default().Table(schema.TableAddress)
	require.NoError(t, err)

	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.ColumnNames() {
		cols = append(cols, schema.SnakeCase(c))
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, org_id, patient_id, .* FROM addresses WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("a1", [16]byte(orgA), "p1", "Main St 1", "Oslo", nil, "NO", int64(10), int64(20)))
	mock.ExpectCommit()

	var got schema.Row
	err = store.Run(context.Background(), staff(orgA), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.Get(ctx, schema.TableAddress, "a1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, orgA.String(), got["orgId"])
	assert.Equal(t, "Oslo", got["city"])
	assert.Nil(t, got["postalCode"])
	assert.Equal(t, int64(20), got["updatedAt"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteIsIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM patients WHERE id = \$1`).WithArgs("p1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	err := store.Run(context.Background(), staff(orgA), func(ctx context.Context, tx Tx) error {
		return tx.Delete(ctx, schema.TablePatient, "p1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryReadsVersionRange(t *testing.T) {
	store, mock := newMockStore(t)
	tbl, err := schema.Default().Table(schema.TablePatient)
	require.NoError(t, err)
	cols := make([]string, 0, len(tbl.Columns))
	values := make([]any, 0, len(tbl.Columns))
	row := patientRow("p2", orgA, 10)
	for _, c := range tbl.ColumnNames() {
		cols = append(cols, schema.SnakeCase(c))
		values = append(values, row[c])
	}

	mock.ExpectQuery(`SELECT version FROM sync_version`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT .* FROM patients WHERE org_id = \$1 AND version > \$2 AND version <= \$3 ORDER BY version ASC, id ASC`).
		WithArgs(orgA, int64(3), int64(7)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(values...))
	mock.ExpectQuery(`SELECT row_id FROM sync_tombstones WHERE org_id = \$1 AND table_name = \$2 AND version > \$3 AND version <= \$4`).
		WithArgs(orgA, schema.TablePatient, int64(3), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"row_id"}).AddRow("p1"))

	changes, err := store.Query(context.Background(), staff(orgA), schema.TablePatient, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), changes.Version)
	require.Len(t, changes.Rows, 1)
	assert.Equal(t, "p2", changes.Rows[0]["id"])
	assert.Equal(t, []string{"p1"}, changes.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryWithoutOrgReturnsOnlyVersion(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT version FROM sync_version`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(4)))

	changes, err := store.Query(context.Background(), models.Anonymous, schema.TablePatient, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), changes.Version)
	assert.Empty(t, changes.Rows)
	assert.Empty(t, changes.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
