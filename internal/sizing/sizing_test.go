package sizing

import (
	"math"
	"testing"
)

func TestQuantity(t *testing.T) {
	tests := []struct {
		name       string
		riskBudget float64
		entry      float64
		stop       float64
		want       float64
	}{
		{"long 1000 over 1000", 1000, 45000, 44000, 1.0},
		{"short side distance", 500, 44000, 45000, 0.5},
		{"fractional budget", 250, 30000, 29500, 0.5},
		{"tight stop", 100, 100.5, 100, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantity(tt.riskBudget, tt.entry, tt.stop)
			if err != nil {
				t.Fatalf("Quantity failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Quantity = %v, want %v", got, tt.want)
			}
			if got <= 0 {
				t.Errorf("Quantity must be positive, got %v", got)
			}
		})
	}
}

func TestQuantityRejects(t *testing.T) {
	tests := []struct {
		name       string
		riskBudget float64
		entry      float64
		stop       float64
	}{
		{"zero budget", 0, 45000, 44000},
		{"negative budget", -100, 45000, 44000},
		{"zero entry", 1000, 0, 44000},
		{"negative stop", 1000, 45000, -1},
		{"entry equals stop", 1000, 45000, 45000},
		{"NaN entry", 1000, math.NaN(), 44000},
		{"Inf budget", math.Inf(1), 45000, 44000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Quantity(tt.riskBudget, tt.entry, tt.stop); err != ErrInvalidInputs {
				t.Errorf("expected ErrInvalidInputs, got %v", err)
			}
		})
	}
}
