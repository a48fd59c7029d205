package assess

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func TestRunHealthyEntity(t *testing.T) {
	h := NewHarness(DefaultConfig())
	r := h.Run(state.Vector{Value: 0.6, DValueDt: 0.01, Confidence: 1, Timestamp: now}, catalog.LargeOrg)
	if !r.Passed || r.Risk != RiskNone {
		t.Fatalf("expected pass/none, got %v/%s (%s)", r.Passed, r.Risk, r.Reason)
	}
	if len(r.Forecasts) != 3 {
		t.Fatalf("expected 3 forecasts, got %d", len(r.Forecasts))
	}
	if r.TimeToCritical != nil {
		t.Fatal("rising entity should have no time to critical")
	}
	for i := 1; i < len(r.Forecasts); i++ {
		if r.Forecasts[i].State.Confidence > r.Forecasts[i-1].State.Confidence {
			t.Fatal("confidence should not grow with horizon")
		}
	}
}

func TestRunElevatedRisk(t *testing.T) {
	h := NewHarness(DefaultConfig())
	// venture: (-0.3 - 0.1) / (-0.2/1.18) ≈ 2.36 days
	r := h.Run(state.Vector{Value: 0.1, DValueDt: -0.2, Confidence: 1, Timestamp: now}, catalog.Venture)
	if r.Risk != RiskElevated {
		t.Fatalf("expected elevated, got %s", r.Risk)
	}
	if r.Passed {
		t.Fatal("expected failure: 30-day forecast is critical")
	}
	if r.TimeToCritical == nil || *r.TimeToCritical > 3 {
		t.Fatalf("unexpected time to critical %v", r.TimeToCritical)
	}
}

func TestRunWatchRisk(t *testing.T) {
	h := NewHarness(DefaultConfig())
	// individual: 1.0 gap at 0.01/1.05 per day ≈ 105 days
	r := h.Run(state.Vector{Value: 0.4, DValueDt: -0.01, Confidence: 1, Timestamp: now}, catalog.Individual)
	if r.Risk != RiskWatch {
		t.Fatalf("expected watch, got %s", r.Risk)
	}
}

func TestRunAlreadyCritical(t *testing.T) {
	h := NewHarness(DefaultConfig())
	r := h.Run(state.Vector{Value: -0.9, Confidence: 1, Timestamp: now}, catalog.Nation)
	if r.Risk != RiskCritical || r.Passed {
		t.Fatalf("expected critical failure, got %s passed=%v", r.Risk, r.Passed)
	}
	if r.Metrics[0].Name != "value" || r.Metrics[0].Pass {
		t.Fatalf("unexpected first metric %+v", r.Metrics[0])
	}
}
