package gate

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

func TestGateCommitSmallDelta(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate(state.Vector{Value: 0.2}, 0.05, catalog.Individual, false)

	if decision.Action != "commit" {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed || len(decision.Warnings) != 0 {
		t.Fatalf("expected clean pass, got %+v", decision)
	}
	if math.Abs(decision.ProposedValue-0.25) > 1e-12 {
		t.Fatalf("proposed = %f, want 0.25", decision.ProposedValue)
	}
}

func TestGateRejectNonFinite(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	for _, d := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		decision := g.Evaluate(state.Vector{Value: 0.2}, d, catalog.Individual, false)
		if decision.Action != "reject" || !decision.Vetoed {
			t.Fatalf("delta %v: expected veto, got %+v", d, decision)
		}
		if decision.VetoSignals[0].Type != VetoNonFinite {
			t.Fatalf("expected VetoNonFinite, got %s", decision.VetoSignals[0].Type)
		}
		if decision.ProposedValue != 0.2 {
			t.Fatal("vetoed decision should keep current value")
		}
	}
}

func TestGateWarnings(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	// nation caps value change at 0.06/day; 0.9 + 0.5 saturates
	decision := g.Evaluate(state.Vector{Value: 0.9}, 0.5, catalog.Nation, true)
	if decision.Action != "commit" {
		t.Fatalf("warnings must not block, got %s", decision.Action)
	}
	if len(decision.Warnings) != 3 {
		t.Fatalf("expected rate, saturation and quarantine warnings, got %v", decision.Warnings)
	}
	if decision.ProposedValue != 1 {
		t.Fatalf("expected clamped 1, got %f", decision.ProposedValue)
	}
}
