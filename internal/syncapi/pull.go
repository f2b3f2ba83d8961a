package syncapi

import (
	"context"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// PullResponse carries the changes to one table after the request's cursor.
type PullResponse struct {
	Table          string       `json:"table"`
	Rows           []schema.Row `json:"rows"`
	Deleted        []string     `json:"deleted"`
	Cookie         int64        `json:"cookie"` // change version; pass back as since
	LastMutationID *int64       `json:"lastMutationID,omitempty"`
}

// Puller serves changed rows.
type Puller struct {
	rows    records.Querier
	clients ClientStore
}

// NewPuller creates a puller.
func NewPuller(rows records.Querier, clients ClientStore) *Puller {
	return &Puller{rows: rows, clients: clients}
}

// Pull returns the rows of table written after version since that id may
// select, and the ids deleted since then. When clientID is set the response
// also carries that client's last applied mutation; the client must belong to
// the caller.
func (p *Puller) Pull(ctx context.Context, id models.Identity, table string, since int64, clientID string) (*PullResponse, error) {
	var last *int64
	if clientID != "" {
		v, err := p.clients.LastMutationID(ctx, clientID, id.UserID)
		if err != nil {
			return nil, err
		}
		last = &v
	}
	changes, err := p.rows.Query(ctx, id, table, since)
	if err != nil {
		return nil, err
	}
	resp := &PullResponse{Table: table, Rows: changes.Rows, Deleted: changes.Deleted, Cookie: changes.Version, LastMutationID: last}
	if resp.Rows == nil {
		resp.Rows = []schema.Row{}
	}
	if resp.Deleted == nil {
		resp.Deleted = []string{}
	}
	return resp, nil
}
