package models

import "github.com/google/uuid"

// Identity is the authenticated caller as seen by permission checks.
// It is derived per request from a session cookie or a bearer token.
type Identity struct {
	UserID uuid.UUID `json:"userId"`
	OrgID  uuid.UUID `json:"orgId"`
	Role   string    `json:"role"`
	Email  string    `json:"email"`
}

// Anonymous is the identity of a caller that presented no credentials.
var Anonymous = Identity{}

// IsAnonymous reports whether no user is signed in.
func (i Identity) IsAnonymous() bool { return i.UserID == uuid.Nil }

// HasOrg reports whether an active organization is selected.
func (i Identity) HasOrg() bool { return i.OrgID != uuid.Nil }
