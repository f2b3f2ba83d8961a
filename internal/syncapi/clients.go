package syncapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/pkg/database"
)

// ErrClientOwned is returned when a client id is used by a user other than the one that first pushed with it.
var ErrClientOwned = apperr.Forbidden("client belongs to another user")

// ClientStore tracks the last mutation applied per sync client. A client id is
// bound to the user that created it.
type ClientStore interface {
	// LastMutationID returns 0 for an unknown client.
	LastMutationID(ctx context.Context, clientID string, userID uuid.UUID) (int64, error)
	// Claim creates the client for userID if it does not exist and returns its
	// last mutation id. Inside a transaction the row stays locked until commit.
	Claim(ctx context.Context, clientID string, userID uuid.UUID) (int64, error)
	SetLastMutationID(ctx context.Context, clientID string, mutationID int64) error
}

// ClientRepository implements ClientStore on the sync_clients table.
type ClientRepository struct {
	db  database.Querier
	now func() time.Time
}

// NewClientRepository creates a client repository.
func NewClientRepository(db database.Querier) *ClientRepository {
	return &ClientRepository{db: db, now: time.Now}
}

// LastMutationID implements ClientStore.
func (r *ClientRepository) LastMutationID(ctx context.Context, clientID string, userID uuid.UUID) (int64, error) {
	last, err := r.load(ctx, `SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = $1`, clientID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

// Claim implements ClientStore. The insert comes first so that a brand new
// client has a row for the locking select to hold.
func (r *ClientRepository) Claim(ctx context.Context, clientID string, userID uuid.UUID) (int64, error) {
	const insert = `INSERT INTO sync_clients (client_id, user_id, last_mutation_id, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (client_id) DO NOTHING`
	q := database.QuerierFromCtx(ctx, r.db)
	if _, err := q.Exec(ctx, insert, clientID, owner(userID), r.now().UnixMilli()); err != nil {
		return 0, database.MapError(err, "sync client")
	}
	sel := `SELECT user_id, last_mutation_id FROM sync_clients WHERE client_id = $1`
	if database.InTx(ctx) {
		sel += ` FOR UPDATE`
	}
	return r.load(ctx, sel, clientID, userID)
}

func (r *ClientRepository) load(ctx context.Context, q, clientID string, userID uuid.UUID) (int64, error) {
	var (
		stored *uuid.UUID
		last   int64
	)
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, clientID).Scan(&stored, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if err != nil {
		return 0, database.MapError(err, "sync client")
	}
	if !sameOwner(stored, userID) {
		return 0, ErrClientOwned
	}
	return last, nil
}

// SetLastMutationID implements ClientStore.
func (r *ClientRepository) SetLastMutationID(ctx context.Context, clientID string, mutationID int64) error {
	const q = `UPDATE sync_clients SET last_mutation_id = $2, updated_at = $3 WHERE client_id = $1`
	tag, err := database.QuerierFromCtx(ctx, r.db).Exec(ctx, q, clientID, mutationID, r.now().UnixMilli())
	if err != nil {
		return database.MapError(err, "sync client")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync client %q was not claimed", clientID)
	}
	return nil
}

func owner(userID uuid.UUID) *uuid.UUID {
	if userID == uuid.Nil {
		return nil
	}
	return &userID
}

func sameOwner(stored *uuid.UUID, userID uuid.UUID) bool {
	if stored == nil {
		return userID == uuid.Nil
	}
	return *stored == userID
}
