package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"signal-bridge/pkg/db"
)

func seedQueries(t *testing.T) *db.Queries {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d.Queries()
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestImportSeed(t *testing.T) {
	q := seedQueries(t)
	path := writeSeed(t, `
owner: u1
strategies:
  - name: breakout-v2
    direction: long
    enabled: true
    accounts:
      - account_id: a1
        enabled: true
        risk_budget: 1000
      - account_id: a2
        enabled: false
        risk_budget: 250
  - name: mean-revert
    enabled: false
`)

	if err := ImportSeed(context.Background(), q, path); err != nil {
		t.Fatalf("ImportSeed failed: %v", err)
	}

	strategies, err := q.ListStrategiesByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list strategies: %v", err)
	}
	if len(strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(strategies))
	}

	byName := map[string]db.Strategy{}
	for _, s := range strategies {
		byName[s.Name] = s
	}
	breakout := byName["breakout-v2"]
	if breakout.Direction != "long" || !breakout.Enabled || len(breakout.Links) != 2 {
		t.Errorf("breakout-v2 = %+v", breakout)
	}
	if byName["mean-revert"].Direction != "both" {
		t.Errorf("omitted direction should default to both, got %q", byName["mean-revert"].Direction)
	}
}

func TestImportSeedIsIdempotent(t *testing.T) {
	q := seedQueries(t)
	path := writeSeed(t, `
owner: u1
strategies:
  - name: breakout-v2
    direction: long
    enabled: true
    accounts:
      - account_id: a1
        enabled: true
        risk_budget: 1000
`)

	for i := 0; i < 2; i++ {
		if err := ImportSeed(context.Background(), q, path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	strategies, _ := q.ListStrategiesByOwner(context.Background(), "u1")
	if len(strategies) != 1 {
		t.Errorf("re-import duplicated strategies: %d", len(strategies))
	}
	if len(strategies[0].Links) != 1 {
		t.Errorf("re-import duplicated links: %d", len(strategies[0].Links))
	}
}

func TestImportSeedRejectsMissingOwner(t *testing.T) {
	q := seedQueries(t)
	path := writeSeed(t, "strategies: []\n")

	if err := ImportSeed(context.Background(), q, path); err == nil {
		t.Fatal("expected error for seed file without owner")
	}
}
