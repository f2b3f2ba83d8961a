// Package records applies row writes for mutators against a transaction handle.
// The same mutator body runs against the Postgres store or the in-memory store.
package records

import (
	"context"
	"time"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
)

// Tx is the transaction handle handed to mutators.
type Tx interface {
	// Identity is the caller the transaction runs for.
	Identity() models.Identity
	// Now is the execution clock in epoch milliseconds, fixed for the transaction.
	Now() int64
	// Get returns the row or an apperr.ErrNotFound error.
	Get(ctx context.Context, table, id string) (schema.Row, error)
	// Insert adds a row. An existing id is a conflict.
	Insert(ctx context.Context, table string, row schema.Row) error
	// Update patches an existing row and fails with apperr.ErrNotFound when it is absent.
	Update(ctx context.Context, table, id string, patch schema.Row) error
	// Delete removes a row. Deleting an absent row is not an error.
	Delete(ctx context.Context, table, id string) error
}

// Runner executes fn in one transaction: every write commits or none does.
type Runner interface {
	Run(ctx context.Context, id models.Identity, fn func(ctx context.Context, tx Tx) error) error
}

// Changes is what happened to one table of the caller's organization between
// two versions.
type Changes struct {
	Rows    []schema.Row // rows written after since that the caller may select
	Deleted []string     // ids deleted after since
	Version int64        // every change up to this version is included
}

// Querier reads the changes made after version since. Versions are assigned
// in commit order, one per writing transaction.
type Querier interface {
	Query(ctx context.Context, id models.Identity, table string, since int64) (Changes, error)
}

// Clock returns the current time. Swapped in tests.
type Clock func() time.Time

func (c Clock) millis() int64 {
	if c == nil {
		return time.Now().UnixMilli()
	}
	return c().UnixMilli()
}
