package strategy

import (
	"context"
	"testing"

	"signal-bridge/internal/signal"
	"signal-bridge/pkg/db"
)

type fakeRepo map[string][]db.Strategy

func (f fakeRepo) Load(_ context.Context, ownerID string) ([]db.Strategy, error) {
	return f[ownerID], nil
}

func repoWith(strategies ...db.Strategy) fakeRepo {
	return fakeRepo{"owner-1": strategies}
}

func link(accountID string, enabled bool) db.AccountLink {
	return db.AccountLink{AccountID: accountID, Enabled: enabled, RiskBudget: 1000}
}

func TestResolveMatchesEnabledStrategyByName(t *testing.T) {
	r := NewResolver(repoWith(
		db.Strategy{Name: "S1", Enabled: false, Direction: "both", Links: []db.AccountLink{link("a", true)}},
		db.Strategy{Name: "S1", Enabled: true, Direction: "both", Links: []db.AccountLink{link("b", true)}},
	))

	resolved, err := r.Resolve(context.Background(), "owner-1", "S1", "buy")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved.Accounts) != 1 || resolved.Accounts[0].AccountID != "b" {
		t.Errorf("expected the enabled strategy's account, got %+v", resolved.Accounts)
	}
	if resolved.Direction != signal.DirectionLong {
		t.Errorf("Direction = %v, want long", resolved.Direction)
	}
}

func TestResolveNameIsCaseSensitive(t *testing.T) {
	r := NewResolver(repoWith(
		db.Strategy{Name: "S1", Enabled: true, Direction: "both", Links: []db.AccountLink{link("a", true)}},
	))

	if _, err := r.Resolve(context.Background(), "owner-1", "s1", "buy"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for case mismatch, got %v", err)
	}
}

func TestResolveUnknownStrategy(t *testing.T) {
	r := NewResolver(repoWith())
	if _, err := r.Resolve(context.Background(), "owner-1", "S1", "buy"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveDirectionCompatibility(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		action    string
		wantErr   error
	}{
		{"long accepts buy", "long", "buy", nil},
		{"long rejects sell", "long", "sell", ErrDirectionMismatch},
		{"long rejects short", "long", "open short", ErrDirectionMismatch},
		{"short accepts sell", "short", "sell", nil},
		{"short rejects buy", "short", "buy", ErrDirectionMismatch},
		{"short rejects long", "short", "go long", ErrDirectionMismatch},
		{"both accepts buy", "both", "buy", nil},
		{"both accepts sell", "both", "sell", nil},
		{"unrecognized action", "both", "hold", ErrBadAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(repoWith(
				db.Strategy{Name: "S1", Enabled: true, Direction: tt.direction, Links: []db.AccountLink{link("a", true)}},
			))
			_, err := r.Resolve(context.Background(), "owner-1", "S1", tt.action)
			if err != tt.wantErr {
				t.Errorf("Resolve err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveFiltersDisabledAccounts(t *testing.T) {
	r := NewResolver(repoWith(
		db.Strategy{Name: "S1", Enabled: true, Direction: "both", Links: []db.AccountLink{
			link("a", true), link("b", false), link("c", true),
		}},
	))

	resolved, err := r.Resolve(context.Background(), "owner-1", "S1", "sell")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved.Accounts) != 2 {
		t.Fatalf("expected 2 enabled accounts, got %d", len(resolved.Accounts))
	}
	for _, l := range resolved.Accounts {
		if !l.Enabled {
			t.Errorf("disabled account %s leaked through", l.AccountID)
		}
	}
}

func TestResolveNoEnabledAccounts(t *testing.T) {
	r := NewResolver(repoWith(
		db.Strategy{Name: "S1", Enabled: true, Direction: "both", Links: []db.AccountLink{link("a", false)}},
	))
	if _, err := r.Resolve(context.Background(), "owner-1", "S1", "buy"); err != ErrNoAccounts {
		t.Errorf("expected ErrNoAccounts, got %v", err)
	}
}
