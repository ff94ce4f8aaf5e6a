package strategy

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"signal-bridge/pkg/db"
)

// seedFile is the YAML shape accepted by ImportSeed:
//
//	owner: <user id>
//	strategies:
//	  - name: breakout-v2
//	    direction: long
//	    enabled: true
//	    accounts:
//	      - account_id: <id>
//	        enabled: true
//	        risk_budget: 1000
type seedFile struct {
	Owner      string `yaml:"owner"`
	Strategies []struct {
		Name      string `yaml:"name"`
		Direction string `yaml:"direction"`
		Enabled   bool   `yaml:"enabled"`
		Accounts  []struct {
			AccountID  string  `yaml:"account_id"`
			Enabled    bool    `yaml:"enabled"`
			RiskBudget float64 `yaml:"risk_budget"`
		} `yaml:"accounts"`
	} `yaml:"strategies"`
}

// ImportSeed upserts strategies from a YAML file, keyed by (owner, name).
// Safe to run on every startup.
func ImportSeed(ctx context.Context, q *db.Queries, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if seed.Owner == "" {
		return fmt.Errorf("seed file missing owner")
	}

	for _, s := range seed.Strategies {
		direction := s.Direction
		if direction == "" {
			direction = "both"
		}
		row := db.Strategy{
			ID:        uuid.NewString(),
			UserID:    seed.Owner,
			Name:      s.Name,
			Direction: direction,
			Enabled:   s.Enabled,
		}
		for _, a := range s.Accounts {
			row.Links = append(row.Links, db.AccountLink{
				AccountID:  a.AccountID,
				Enabled:    a.Enabled,
				RiskBudget: a.RiskBudget,
			})
		}
		if err := q.UpsertStrategySeed(ctx, row); err != nil {
			return fmt.Errorf("upsert strategy %q: %w", s.Name, err)
		}
		log.Printf("seeded strategy %q for owner %s (%d accounts)", s.Name, seed.Owner, len(row.Links))
	}
	return nil
}
