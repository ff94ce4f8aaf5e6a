// Package strategy resolves inbound signals against a user's configured strategies.
package strategy

import (
	"context"
	"errors"

	"signal-bridge/internal/signal"
	"signal-bridge/pkg/db"
)

// Rejection reasons surfaced to the webhook layer.
var (
	ErrNotFound          = errors.New("no enabled strategy with that name")
	ErrBadAction         = errors.New("action is neither long nor short")
	ErrDirectionMismatch = errors.New("action direction not allowed by strategy")
	ErrNoAccounts        = errors.New("strategy has no enabled accounts")
)

// Repository loads a user's strategies from the external store. The SQLite
// implementation lives in pkg/db; tests substitute an in-memory fake.
type Repository interface {
	Load(ctx context.Context, ownerID string) ([]db.Strategy, error)
}

// SQLRepository adapts pkg/db queries to the Repository interface.
type SQLRepository struct {
	Queries *db.Queries
}

func (r SQLRepository) Load(ctx context.Context, ownerID string) ([]db.Strategy, error) {
	return r.Queries.ListStrategiesByOwner(ctx, ownerID)
}

// Resolved is a strategy matched to a signal, with only its enabled
// account links and the classified direction.
type Resolved struct {
	Strategy  db.Strategy
	Accounts  []db.AccountLink
	Direction signal.Direction
}

// Resolver matches signals to strategies. Pure read; every rejection it
// returns must still be audited by the caller.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve selects the first enabled strategy whose name matches exactly,
// checks direction compatibility, and filters to enabled account links.
func (r *Resolver) Resolve(ctx context.Context, ownerID, strategyName, action string) (*Resolved, error) {
	strategies, err := r.repo.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var match *db.Strategy
	for i := range strategies {
		if strategies[i].Name == strategyName && strategies[i].Enabled {
			match = &strategies[i]
			break
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}

	direction := signal.ClassifyAction(action)
	if direction == signal.DirectionUnrecognized {
		return nil, ErrBadAction
	}
	switch match.Direction {
	case "long":
		if direction == signal.DirectionShort {
			return nil, ErrDirectionMismatch
		}
	case "short":
		if direction == signal.DirectionLong {
			return nil, ErrDirectionMismatch
		}
	}

	var enabled []db.AccountLink
	for _, l := range match.Links {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoAccounts
	}

	return &Resolved{
		Strategy:  *match,
		Accounts:  enabled,
		Direction: direction,
	}, nil
}
