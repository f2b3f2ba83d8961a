package schema

import (
	"github.com/nextoral/backend/internal/models"
)

// Predicate decides whether identity may perform an operation on row.
// Predicates must be pure: the same inputs always give the same answer.
type Predicate func(id models.Identity, row Row) bool

// Permissions holds one predicate per operation. A nil predicate denies.
type Permissions struct {
	Select Predicate
	Insert Predicate
	Update Predicate
	Delete Predicate
}

// For returns the predicate guarding op.
func (p Permissions) For(op Op) Predicate {
	var pred Predicate
	switch op {
	case OpSelect:
		pred = p.Select
	case OpInsert:
		pred = p.Insert
	case OpUpdate:
		pred = p.Update
	case OpDelete:
		pred = p.Delete
	}
	if pred == nil {
		return Nobody
	}
	return pred
}

// Anyone allows every caller, including anonymous ones.
func Anyone(models.Identity, Row) bool { return true }

// Nobody denies every caller.
func Nobody(models.Identity, Row) bool { return false }

// InOrg allows signed-in callers whose active organization owns the row.
func InOrg(column string) Predicate {
	return func(id models.Identity, row Row) bool {
		if id.IsAnonymous() || !id.HasOrg() {
			return false
		}
		return AsString(row[column]) == id.OrgID.String()
	}
}

// WithRole allows callers holding one of roles in their active organization.
func WithRole(roles ...string) Predicate {
	return func(id models.Identity, _ Row) bool {
		for _, r := range roles {
			if id.Role == r {
				return true
			}
		}
		return false
	}
}

// InOrgWithRole is InOrg and WithRole combined.
func InOrgWithRole(column string, roles ...string) Predicate {
	return And(InOrg(column), WithRole(roles...))
}

// And allows only when every predicate allows.
func And(preds ...Predicate) Predicate {
	return func(id models.Identity, row Row) bool {
		for _, p := range preds {
			if !p(id, row) {
				return false
			}
		}
		return true
	}
}
