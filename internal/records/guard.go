package records

import (
	"context"
	"errors"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
)

// Guarded wraps a Runner so every write inside it is checked against the
// schema's permission predicates.
func Guarded(r Runner, s *schema.Schema) Runner {
	return guardedRunner{inner: r, schema: s}
}

type guardedRunner struct {
	inner  Runner
	schema *schema.Schema
}

func (g guardedRunner) Run(ctx context.Context, id models.Identity, fn func(ctx context.Context, tx Tx) error) error {
	return g.inner.Run(ctx, id, func(ctx context.Context, tx Tx) error {
		return fn(ctx, &guardTx{Tx: tx, schema: g.schema})
	})
}

type guardTx struct {
	Tx
	schema *schema.Schema
}

// Get hides rows the caller may not select behind NotFound.
func (g *guardTx) Get(ctx context.Context, table, id string) (schema.Row, error) {
	row, err := g.Tx.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if g.schema.Check(schema.OpSelect, g.Identity(), table, row) != nil {
		return nil, notFound(table, id)
	}
	return row, nil
}

func (g *guardTx) Insert(ctx context.Context, table string, row schema.Row) error {
	if err := g.schema.Check(schema.OpInsert, g.Identity(), table, row); err != nil {
		return err
	}
	if err := g.checkReferences(ctx, table, row); err != nil {
		return err
	}
	return g.Tx.Insert(ctx, table, row)
}

// Update checks the row before and after the patch so a row cannot be moved
// into another organization.
func (g *guardTx) Update(ctx context.Context, table, id string, patch schema.Row) error {
	pre, err := g.Tx.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if err := g.schema.Check(schema.OpUpdate, g.Identity(), table, pre); err != nil {
		return err
	}
	post := pre.Clone()
	for k, v := range patch {
		post[k] = v
	}
	if err := g.schema.Check(schema.OpUpdate, g.Identity(), table, post); err != nil {
		return err
	}
	if err := g.checkReferences(ctx, table, patch); err != nil {
		return err
	}
	return g.Tx.Update(ctx, table, id, patch)
}

func (g *guardTx) Delete(ctx context.Context, table, id string) error {
	pre, err := g.Tx.Get(ctx, table, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := g.schema.Check(schema.OpDelete, g.Identity(), table, pre); err != nil {
		return err
	}
	return g.Tx.Delete(ctx, table, id)
}

// checkReferences loads every row that row points at through the guarded Get,
// so an id owned by another organization reads as NotFound.
func (g *guardTx) checkReferences(ctx context.Context, table string, row schema.Row) error {
	t, err := g.schema.Table(table)
	if err != nil {
		return err
	}
	for _, ref := range t.References {
		target := row.String(ref.Column)
		if target == "" {
			continue
		}
		if _, err := g.Get(ctx, ref.Table, target); err != nil {
			return err
		}
	}
	return nil
}
