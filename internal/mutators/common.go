package mutators

import (
	"context"
	"errors"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// ClientStamps absorbs timestamps a client may send. They are always
// replaced by the transaction clock.
type ClientStamps struct {
	CreatedAt *int64 `json:"createdAt,omitempty"`
	UpdatedAt *int64 `json:"updatedAt,omitempty"`
}

// ByID is the payload of every delete mutator.
type ByID struct {
	ID string `json:"id" validate:"required,max=64"`
}

func newRow(tx records.Tx, id string) schema.Row {
	now := tx.Now()
	return schema.Row{
		"id":        id,
		"orgId":     tx.Identity().OrgID.String(),
		"createdAt": now,
		"updatedAt": now,
	}
}

// setOpt copies optional fields into a row: nil pointers are skipped.
func setOpt(row schema.Row, col string, v *string) {
	if v != nil {
		row[col] = *v
	}
}

// nullable maps an empty optional string to NULL.
func nullable(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func update(ctx context.Context, tx records.Tx, table, id string, patch schema.Row) error {
	patch["updatedAt"] = tx.Now()
	return tx.Update(ctx, table, id, patch)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}
