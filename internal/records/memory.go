package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/schema"
)

// MemoryStore keeps tables in memory. Transactions run serially against a copy
// that replaces the live data only when fn succeeds. Each committed writing
// transaction takes the next version, like the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	schema *schema.Schema
	clock  Clock
	state  memoryState
}

type memoryState struct {
	tables     map[string]map[string]schema.Row
	versions   map[string]map[string]int64
	tombstones map[string]map[string]tombstone
	version    int64
}

type tombstone struct {
	org     string
	version int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(s *schema.Schema, clock Clock) *MemoryStore {
	return &MemoryStore{schema: s, clock: clock, state: memoryState{
		tables:     make(map[string]map[string]schema.Row),
		versions:   make(map[string]map[string]int64),
		tombstones: make(map[string]map[string]tombstone),
	}}
}

// Run implements Runner.
func (m *MemoryStore) Run(ctx context.Context, id models.Identity, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		schema:   m.schema,
		identity: id,
		now:      m.clock.millis(),
		version:  m.state.version + 1,
		state:    m.state.clone(),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.wrote {
		tx.state.version = tx.version
	}
	m.state = tx.state
	return nil
}

// Query implements Querier.
func (m *MemoryStore) Query(_ context.Context, id models.Identity, table string, since int64) (Changes, error) {
	t, err := m.schema.Table(table)
	if err != nil {
		return Changes{}, err
	}
	m.mu.Lock()
	out := Changes{Rows: []schema.Row{}, Deleted: []string{}, Version: m.state.version}
	if !id.HasOrg() {
		m.mu.Unlock()
		return out, nil
	}
	org := id.OrgID.String()
	versions := m.state.versions[table]
	for rid, r := range m.state.tables[table] {
		if versions[rid] > since && schema.AsString(r[t.OrgColumn]) == org {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	tombs := m.state.tombstones[table]
	for rid, ts := range tombs {
		if ts.version > since && ts.org == org {
			out.Deleted = append(out.Deleted, rid)
		}
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i].String("id"), out.Rows[j].String("id")
		if versions[a] != versions[b] {
			return versions[a] < versions[b]
		}
		return a < b
	})
	sort.Slice(out.Deleted, func(i, j int) bool {
		a, b := out.Deleted[i], out.Deleted[j]
		if tombs[a].version != tombs[b].version {
			return tombs[a].version < tombs[b].version
		}
		return a < b
	})
	m.mu.Unlock()

	out.Rows, err = m.schema.Filter(id, table, out.Rows)
	return out, err
}

// Row returns a copy of a stored row. Intended for tests and diagnostics.
func (m *MemoryStore) Row(table, id string) (schema.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.tables[table][id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Version returns the version of the last committed write.
func (m *MemoryStore) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.version
}

type memoryTx struct {
	schema   *schema.Schema
	identity models.Identity
	now      int64
	version  int64
	wrote    bool
	state    memoryState
}

func (tx *memoryTx) Identity() models.Identity { return tx.identity }

func (tx *memoryTx) Now() int64 { return tx.now }

func (tx *memoryTx) Get(_ context.Context, table, id string) (schema.Row, error) {
	if _, err := tx.schema.Table(table); err != nil {
		return nil, err
	}
	r, ok := tx.state.tables[table][id]
	if !ok {
		return nil, notFound(table, id)
	}
	return r.Clone(), nil
}

func (tx *memoryTx) Insert(_ context.Context, table string, row schema.Row) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.ValidateInsert(row); err != nil {
		return err
	}
	id := row.String("id")
	if _, exists := tx.state.tables[table][id]; exists {
		return apperr.Conflict(fmt.Sprintf("%s %s already exists", table, id))
	}
	if tx.state.tables[table] == nil {
		tx.state.tables[table] = make(map[string]schema.Row)
	}
	tx.state.tables[table][id] = row.Clone()
	delete(tx.state.tombstones[table], id)
	tx.stamp(table, id)
	return nil
}

func (tx *memoryTx) Update(_ context.Context, table, id string, patch schema.Row) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	if err := t.ValidatePatch(patch); err != nil {
		return err
	}
	r, ok := tx.state.tables[table][id]
	if !ok {
		return notFound(table, id)
	}
	for k, v := range patch {
		r[k] = v
	}
	tx.stamp(table, id)
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, table, id string) error {
	t, err := tx.schema.Table(table)
	if err != nil {
		return err
	}
	r, ok := tx.state.tables[table][id]
	if !ok {
		return nil
	}
	delete(tx.state.tables[table], id)
	delete(tx.state.versions[table], id)
	if tx.state.tombstones[table] == nil {
		tx.state.tombstones[table] = make(map[string]tombstone)
	}
	tx.state.tombstones[table][id] = tombstone{org: schema.AsString(r[t.OrgColumn]), version: tx.version}
	tx.wrote = true
	return nil
}

func (tx *memoryTx) stamp(table, id string) {
	if tx.state.versions[table] == nil {
		tx.state.versions[table] = make(map[string]int64)
	}
	tx.state.versions[table][id] = tx.version
	tx.wrote = true
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		tables:     cloneTables(s.tables),
		versions:   make(map[string]map[string]int64, len(s.versions)),
		tombstones: make(map[string]map[string]tombstone, len(s.tombstones)),
		version:    s.version,
	}
	for name, vs := range s.versions {
		cp := make(map[string]int64, len(vs))
		for id, v := range vs {
			cp[id] = v
		}
		out.versions[name] = cp
	}
	for name, ts := range s.tombstones {
		cp := make(map[string]tombstone, len(ts))
		for id, v := range ts {
			cp[id] = v
		}
		out.tombstones[name] = cp
	}
	return out
}

func cloneTables(in map[string]map[string]schema.Row) map[string]map[string]schema.Row {
	out := make(map[string]map[string]schema.Row, len(in))
	for name, rows := range in {
		cp := make(map[string]schema.Row, len(rows))
		for id, r := range rows {
			cp[id] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

func notFound(table, id string) error {
	return apperr.NotFound(fmt.Sprintf("%s %s not found", table, id))
}
