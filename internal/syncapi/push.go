// Package syncapi serves the push/pull endpoints that replay client mutations
// authoritatively and hand changed rows back to clients.
package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/mutators"
	"github.com/nextoral/backend/internal/records"
)

// Per-mutation error codes.
const (
	ErrAlreadyProcessed = "alreadyProcessed"
	ErrOutOfOrder       = "oooMutation"
	ErrApp              = "app"
	ErrInternal         = "internal"
)

// TxRunner is implemented by *database.TxManager.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Poker notifies an organization's clients that rows changed. *realtime.Hub implements it.
type Poker interface {
	Poke(orgID uuid.UUID)
}

// Mutation is one named invocation from a client. IDs increase by one per client.
type Mutation struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// PushRequest is the body of POST /api/sync/push.
type PushRequest struct {
	ClientID  string     `json:"clientID" binding:"required,max=128"`
	Mutations []Mutation `json:"mutations"`
}

// MutationResult reports what happened to one mutation.
type MutationResult struct {
	ID      int64  `json:"id"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushResponse is returned by Push.
type PushResponse struct {
	Mutations []MutationResult `json:"mutations"`
}

// Pusher applies client mutation batches.
type Pusher struct {
	txm      TxRunner
	clients  ClientStore
	runner   records.Runner
	mutators *mutators.Registry
	poker    Poker
	logger   *zap.Logger
}

// NewPusher creates a pusher. runner should already enforce permissions (records.Guarded).
func NewPusher(txm TxRunner, clients ClientStore, runner records.Runner, registry *mutators.Registry, poker Poker, logger *zap.Logger) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{txm: txm, clients: clients, runner: runner, mutators: registry, poker: poker, logger: logger}
}

// Push applies req's mutations in order, each in its own transaction. Processing
// stops at an out-of-order mutation or an internal failure; later mutations are
// left for the client to resend. A client id owned by another user fails the
// whole request with ErrClientOwned.
func (p *Pusher) Push(ctx context.Context, id models.Identity, req PushRequest) (PushResponse, error) {
	if _, err := p.clients.LastMutationID(ctx, req.ClientID, id.UserID); errors.Is(err, ErrClientOwned) {
		return PushResponse{}, err
	}
	results := make([]MutationResult, 0, len(req.Mutations))
	changed := false
	for _, m := range req.Mutations {
		res, err := p.apply(ctx, id, req.ClientID, m)
		if errors.Is(err, ErrClientOwned) {
			return PushResponse{}, err
		}
		if err != nil {
			p.logger.Error("mutation failed",
				zap.String("client_id", req.ClientID),
				zap.Int64("mutation_id", m.ID),
				zap.String("mutator", m.Name),
				zap.Error(err))
			results = append(results, MutationResult{ID: m.ID, Error: ErrInternal, Message: "mutation failed"})
			break
		}
		results = append(results, res)
		if res.Error == ErrOutOfOrder {
			break
		}
		if res.Error == "" {
			changed = true
		}
	}
	if changed && id.HasOrg() && p.poker != nil {
		p.poker.Poke(id.OrgID)
	}
	return PushResponse{Mutations: results}, nil
}

// apply runs one mutation. A returned error is internal; app failures are
// reported in the result and still advance the client's mutation id.
func (p *Pusher) apply(ctx context.Context, id models.Identity, clientID string, m Mutation) (MutationResult, error) {
	res := MutationResult{ID: m.ID}
	err := p.txm.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := p.admit(ctx, id, clientID, m.ID, &res)
		if err != nil || !ok {
			return err
		}
		err = p.runner.Run(ctx, id, func(ctx context.Context, tx records.Tx) error {
			return p.mutators.Apply(ctx, tx, m.Name, m.Args)
		})
		if err != nil {
			return err
		}
		return p.clients.SetLastMutationID(ctx, clientID, m.ID)
	})
	if err == nil {
		return res, nil
	}
	if apperr.Kind(err) == "" || errors.Is(err, ErrClientOwned) {
		return res, err
	}

	res.Error, res.Message = ErrApp, apperr.Message(err)
	p.logger.Debug("mutation rejected",
		zap.String("client_id", clientID), zap.Int64("mutation_id", m.ID),
		zap.String("mutator", m.Name), zap.Error(err))
	err = p.txm.RunInTx(ctx, func(ctx context.Context) error {
		var skipped MutationResult
		ok, err := p.admit(ctx, id, clientID, m.ID, &skipped)
		if err != nil || !ok {
			return err
		}
		return p.clients.SetLastMutationID(ctx, clientID, m.ID)
	})
	return res, err
}

// admit reports whether mutationID is the next one for clientID, filling res otherwise.
func (p *Pusher) admit(ctx context.Context, id models.Identity, clientID string, mutationID int64, res *MutationResult) (bool, error) {
	last, err := p.clients.Claim(ctx, clientID, id.UserID)
	if err != nil {
		return false, err
	}
	switch {
	case mutationID <= last:
		res.Error = ErrAlreadyProcessed
		return false, nil
	case mutationID > last+1:
		res.Error = ErrOutOfOrder
		res.Message = fmt.Sprintf("expected mutation %d", last+1)
		return false, nil
	}
	return true, nil
}
