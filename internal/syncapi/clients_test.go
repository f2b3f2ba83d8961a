package syncapi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/pkg/database"
)

func newMockClients(t *testing.T) (*ClientRepository, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })
	r := NewClientRepository(mock)
	r.now = func() time.Time { return time.UnixMilli(9000) }
	return r, mock
}

func TestClientRepositoryUnknownClientIsZero(t *testing.T) {
	r, mock := newMockClients(t)
	mock.ExpectQuery(`SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = \$1$`).
		WithArgs("c1").
		WillReturnError(pgx.ErrNoRows)

	last, err := r.LastMutationID(context.Background(), "c1", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryRejectsOtherUser(t *testing.T) {
	r, mock := newMockClients(t)
	owner := uuid.New()
	mock.ExpectQuery(`SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = \$1$`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "last_mutation_id"}).AddRow(&owner, int64(3)))

	_, err := r.LastMutationID(context.Background(), "c1", uuid.New())
	assert.ErrorIs(t, err, ErrClientOwned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryClaimInsertsThenLocks(t *testing.T) {
	r, mock := newMockClients(t)
	user := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sync_clients .* ON CONFLICT \(client_id\) DO NOTHING`).
		WithArgs("c1", pgxmock.AnyArg(), int64(9000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = \$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "last_mutation_id"}).AddRow(&user, int64(0)))
	mock.ExpectExec(`UPDATE sync_clients SET last_mutation_id = \$2, updated_at = \$3 WHERE client_id = \$1`).
		WithArgs("c1", int64(1), int64(9000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := database.NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		last, err := r.Claim(ctx, "c1", user)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(0), last)
		return r.SetLastMutationID(ctx, "c1", last+1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryClaimKeepsOwner(t *testing.T) {
	r, mock := newMockClients(t)
	owner, other := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sync_clients`).
		WithArgs("c1", pgxmock.AnyArg(), int64(9000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = \$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "last_mutation_id"}).AddRow(&owner, int64(5)))
	mock.ExpectRollback()

	err := database.NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		_, err := r.Claim(ctx, "c1", other)
		return err
	})
	assert.ErrorIs(t, err, ErrClientOwned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryAnonymousClient(t *testing.T) {
	assert.True(t, sameOwner(nil, uuid.Nil))
	assert.False(t, sameOwner(nil, uuid.New()))
	assert.Nil(t, owner(uuid.Nil))
}
