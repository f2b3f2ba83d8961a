package records

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
	"github.com/nextoral/backend/pkg/database"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// TxRunner is implemented by *database.TxManager.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgresStore applies rows to the relational schema. Table and column names
// come from the schema declaration, never from caller input.
type PostgresStore struct {
	db     database.Querier
	txm    TxRunner
	schema *schema.Schema
	clock  Clock
}

// NewPostgresStore creates a store over db (usually the pool).
func NewPostgresStore(db database.Querier, txm TxRunner, s *schema.Schema, clock Clock) *PostgresStore {
	return &PostgresStore{db: db, txm: txm, schema: s, clock: clock}
}

// Run implements Runner. It joins a transaction already carried by ctx.
func (p *PostgresStore) Run(ctx context.Context, id models.Identity, fn func(ctx context.Context, tx Tx) error) error {
	now := p.clock.millis()
	return p.txm.RunInTx(ctx, func(ctx context.Context) error {
		tx := &pgTx{q: database.QuerierFromCtx(ctx, p.db), schema: p.schema, identity: id, now: now}
		return fn(ctx, tx)
	})
}

// Query implements Querier. The counter is read before the rows, and rows
// stamped above it belong to transactions that had not committed yet, so they
// are left for the next pull.
func (p *PostgresStore) Query(ctx context.Context, id models.Identity, table string, since int64) (Changes, error) {
	t, err := p.schema.Table(table)
	if err != nil {
		return Changes{}, err
	}
	q := database.QuerierFromCtx(ctx, p.db)
	var version int64
	if err := q.QueryRow(ctx, `SELECT version FROM sync_version`).Scan(&version); err != nil {
		return Changes{}, database.MapError(err, "sync version")
	}
	if !id.HasOrg() {
		return Changes{Rows: []schema.Row{}, Deleted: []string{}, Version: version}, nil
	}

	sqlStr, args, err := psql.Select(sqlColumns(t.ColumnNames())...).
		From(t.SQLName).
		Where(squirrel.Eq{schema.SnakeCase(t.OrgColumn): id.OrgID}).
		Where(squirrel.Gt{"version": since}).
		Where(squirrel.LtOrEq{"version": version}).
		OrderBy("version ASC", "id ASC").
		ToSql()
	if err != nil {
		return Changes{}, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return Changes{}, database.MapError(err, table)
	}
	out, err := collectRows(rows, t)
	if err != nil {
		return Changes{}, database.MapError(err, table)
	}
	out, err = p.schema.Filter(id, table, out)
	if err != nil {
		return Changes{}, err
	}

	sqlStr, args, err = psql.Select("row_id").
		From("sync_tombstones").
		Where(squirrel.Eq{"org_id": id.OrgID, "table_name": table}).
		Where(squirrel.Gt{"version": since}).
		Where(squirrel.LtOrEq{"version": version}).
		OrderBy("version ASC", "row_id ASC").
		ToSql()
	if err != nil {
		return Changes{}, fmt.Errorf("build tombstones: %w", err)
	}
	trows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return Changes{}, database.MapError(err, table)
	}
	deleted, err := pgx.CollectRows(trows, pgx.RowTo[string])
	if err != nil {
		return Changes{}, database.MapError(err, table)
	}
	if deleted == nil {
		deleted = []string{}
	}
	return Changes{Rows: out, Deleted: deleted, Version: version}, nil
}

type pgTx struct {
	q        database.Querier
	schema   *schema.Schema
	identity models.Identity
	now      int64
}

func (tx *pgTx) Identity() models.Identity { return tx.identity }

func (tx *pgTx) Now() int64 { return tx.now }

func (tx *pgTx) Get(ctx context.Context, table, id string) (schema.Row, error) {
	t, err := tx.schema.Table(table)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := psql.Select(sqlColumns(t.ColumnNames())...).
		From(t.SQLName).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}
	rows, err := tx.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, database.MapError(err, table)
	}
	out, err := collectRows(rows, t)
	if err != nil {
		return nil, database.MapError(err, table)
	}
	if len(out) == 0 {
		return nil, notFound(table, id)
	}
	return out[0], nil
}

func (tx *pgTx) Insert(ctx context.Context, table string, row schema.Row) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.ValidateInsert(row); err != nil {
		return err
	}
	names := sortedKeys(row)
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = row[n]
	}
	sqlStr, args, err := psql.Insert(t.SQLName).
		Columns(sqlColumns(names)...).
		Values(values...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.q.Exec(ctx, sqlStr, args...); err != nil {
		return database.MapError(err, table)
	}
	return nil
}

func (tx *pgTx) Update(ctx context.Context, table, id string, patch schema.Row) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.ValidatePatch(patch); err != nil {
		return err
	}
	if len(patch) == 0 {
		_, err := tx.Get(ctx, table, id)
		return err
	}
	set := make(map[string]any, len(patch))
	for k, v := range patch {
		set[schema.SnakeCase(k)] = v
	}
	sqlStr, args, err := psql.Update(t.SQLName).
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := tx.q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return database.MapError(err, table)
	}
	if tag.RowsAffected() == 0 {
		return notFound(table, id)
	}
	return nil
}

func (tx *pgTx) Delete(ctx context.Context, table, id string) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	sqlStr, args, err := psql.Delete(t.SQLName).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.q.Exec(ctx, sqlStr, args...); err != nil {
		return database.MapError(err, table)
	}
	return nil
}

func sqlColumns(names []string) []string {
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = schema.SnakeCase(n)
	}
	return cols
}

func sortedKeys(row schema.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// collectRows reads rows selected with t's columns in declaration order.
func collectRows(rows pgx.Rows, t *schema.Table) ([]schema.Row, error) {
	defer rows.Close()
	names := t.ColumnNames()
	var out []schema.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(values) != len(names) {
			return nil, errors.New("column count mismatch")
		}
		r := make(schema.Row, len(names))
		for i, n := range names {
			r[n] = normalize(values[i])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case int32:
		return int64(x)
	case int:
		return int64(x)
	}
	return v
}
