package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region gate
// Gate evaluates whether a manual value injection may be committed.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then collects soft warnings.
// Warnings never block; the injected value is always clamped into [-1,1].
func (g *Gate) Evaluate(current state.Vector, delta float64, c catalog.Category, quarantined bool) GateDecision {
	// --- Hard veto pass ---
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		v := VetoSignal{Type: VetoNonFinite, Reason: fmt.Sprintf("delta %v is not a finite number", delta)}
		return GateDecision{
			Action:        "reject",
			Reason:        fmt.Sprintf("hard veto: %s", v.Reason),
			Vetoed:        true,
			VetoSignals:   []VetoSignal{v},
			ProposedValue: current.Value,
		}
	}

	// --- Soft warnings ---
	var warnings []string
	k := catalog.For(c)
	limit := k.MaxValueDeltaPerDay * g.config.WarnRateMultiple
	if limit > 0 && math.Abs(delta) > limit {
		warnings = append(warnings, fmt.Sprintf("delta %.4f exceeds %.4f (%.2fx daily cap)", delta, limit, g.config.WarnRateMultiple))
	}
	raw := current.Value + delta
	proposed := state.Clamp(raw)
	if proposed != raw {
		warnings = append(warnings, fmt.Sprintf("value %.4f saturates to %.4f", raw, proposed))
	}
	if quarantined {
		warnings = append(warnings, "entity is quarantined")
	}

	return GateDecision{
		Action:        "commit",
		Reason:        fmt.Sprintf("passed gate: %d warnings", len(warnings)),
		Warnings:      warnings,
		ProposedValue: proposed,
	}
}

// #endregion gate
