// Package schema declares the synced tables, their columns and the row-level
// permission predicates evaluated for every read and write.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
)

// Row is a record keyed by camelCase column name.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the column value as a string, or "" when absent or not a string.
func (r Row) String(col string) string {
	return AsString(r[col])
}

// Op is a permission-checked operation.
type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ColumnType is the value kind stored in a column.
type ColumnType string

const (
	String ColumnType = "string"
	Number ColumnType = "number"
)

// Column describes a single column. SQL names are derived by snake-casing Name.
type Column struct {
	Name     string
	Type     ColumnType
	Optional bool
}

// Reference is a column holding the id of a row in another table. The
// referenced row must be visible to the writer, which keeps it in the same
// organization.
type Reference struct {
	Column string
	Table  string
}

// Table declares a synced table.
type Table struct {
	Name        string
	SQLName     string
	OrgColumn   string // column holding the owning organization id
	Columns     []Column
	References  []Reference
	Permissions Permissions

	byName map[string]Column
}

// Column looks up a column by its camelCase name.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// ColumnNames returns the camelCase column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ValidateInsert checks that row has every required column and no unknown ones.
func (t *Table) ValidateInsert(row Row) error {
	if err := t.validateValues(row); err != nil {
		return err
	}
	for _, c := range t.Columns {
		if c.Optional {
			continue
		}
		if v, ok := row[c.Name]; !ok || v == nil {
			return apperr.Validation(fmt.Sprintf("%s.%s is required", t.Name, c.Name))
		}
	}
	return nil
}

// ValidatePatch checks a partial update. The id column cannot be patched.
func (t *Table) ValidatePatch(patch Row) error {
	if _, ok := patch["id"]; ok {
		return apperr.Validation(fmt.Sprintf("%s.id cannot be changed", t.Name))
	}
	if err := t.validateValues(patch); err != nil {
		return err
	}
	for name, v := range patch {
		if c := t.byName[name]; !c.Optional && v == nil {
			return apperr.Validation(fmt.Sprintf("%s.%s cannot be null", t.Name, name))
		}
	}
	return nil
}

func (t *Table) validateValues(row Row) error {
	for name, v := range row {
		c, ok := t.byName[name]
		if !ok {
			return apperr.Validation(fmt.Sprintf("unknown column %s.%s", t.Name, name))
		}
		if v == nil {
			continue
		}
		if !c.accepts(v) {
			return apperr.Validation(fmt.Sprintf("%s.%s must be a %s", t.Name, name, c.Type))
		}
	}
	return nil
}

func (c Column) accepts(v any) bool {
	switch c.Type {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		}
	}
	return false
}

// Schema is the set of synced tables.
type Schema struct {
	tables map[string]*Table
}

// New indexes the given tables. It panics on duplicate names.
func New(tables ...*Table) *Schema {
	s := &Schema{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := s.tables[t.Name]; dup {
			panic("schema: duplicate table " + t.Name)
		}
		t.byName = make(map[string]Column, len(t.Columns))
		for _, c := range t.Columns {
			t.byName[c.Name] = c
		}
		if t.SQLName == "" {
			t.SQLName = SnakeCase(t.Name)
		}
		s.tables[t.Name] = t
	}
	return s
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown table %q", name))
	}
	return t, nil
}

// TableNames returns the table names sorted.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check evaluates the op predicate of table for row.
func (s *Schema) Check(op Op, id models.Identity, table string, row Row) error {
	t, err := s.Table(table)
	if err != nil {
		return err
	}
	if !t.Permissions.For(op)(id, row) {
		return apperr.Forbidden(fmt.Sprintf("%s on %s not permitted", op, table))
	}
	return nil
}

// Filter keeps the rows the identity may select.
func (s *Schema) Filter(id models.Identity, table string, rows []Row) ([]Row, error) {
	t, err := s.Table(table)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if t.Permissions.For(OpSelect)(id, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SnakeCase converts a camelCase identifier to snake_case.
func SnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AsString normalizes string-like values, including uuids, to a string.
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case uuid.UUID:
		return s.String()
	case [16]byte:
		return uuid.UUID(s).String()
	case fmt.Stringer:
		return s.String()
	}
	return ""
}
