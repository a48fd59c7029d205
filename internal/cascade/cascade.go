// Package cascade detects one-hop propagation of sharp declines from an
// entity to the entities bound in its relationship matrix. Detection is
// advisory: it never mutates targets.
package cascade

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region config
// Config holds the detection thresholds.
type Config struct {
	ShockThreshold        float64 `json:"shock_threshold" yaml:"shock_threshold"`                 // trigger when d_value_dt < this
	NegligibleImpactFloor float64 `json:"negligible_impact_floor" yaml:"negligible_impact_floor"` // drop |impact| <= this
}

// DefaultConfig returns a -0.02/day shock threshold and a 0.001 impact floor.
func DefaultConfig() Config {
	return Config{ShockThreshold: -0.02, NegligibleImpactFloor: 0.001}
}

// #endregion config

// #region types
// Trigger describes the entity whose update may cascade.
type Trigger struct {
	EntityID string
	Category catalog.Category
	Rate     float64 // raw d_value_dt of the new state
	At       time.Time
}

// Impact is one affected neighbor of a cascade.
type Impact struct {
	EntityID                 string           `json:"entity_id"`
	Category                 catalog.Category `json:"category"`
	Relation                 relation.SlotKey `json:"relation"`
	RelationInteractionValue float64          `json:"relation_interaction_value"`
	InteractionCoefficient   float64          `json:"interaction_coefficient"`
	EstimatedImpact          float64          `json:"estimated_impact"`
}

// Alert aggregates every non-negligible impact of one trigger.
type Alert struct {
	ID                  string           `json:"id"`
	TriggerEntityID     string           `json:"trigger_entity_id"`
	TriggerCategory     catalog.Category `json:"trigger_category"`
	TriggerRateOfChange float64          `json:"trigger_rate_of_change"`
	Affected            []Impact         `json:"affected"`
	Timestamp           time.Time        `json:"timestamp"`
}

// Resolver looks up the category of a registered entity.
type Resolver func(entityID string) (catalog.Category, bool)

// #endregion types

// #region detect
// Detect evaluates a trigger against a consistent snapshot of its relation
// slots. ok is false when the rate is above the shock threshold or no bound
// registered target receives a non-negligible impact.
func Detect(trigger Trigger, slots []relation.Slot, resolve Resolver, config Config) (Alert, bool) {
	if !(trigger.Rate < config.ShockThreshold) {
		return Alert{}, false
	}

	var affected []Impact
	for _, s := range slots {
		if !s.Filled() {
			continue
		}
		targetCat, registered := resolve(s.TargetID)
		if !registered {
			continue
		}
		coef := catalog.InteractionCoefficient(trigger.Category, targetCat)
		impact := trigger.Rate * coef * s.Interaction
		if math.Abs(impact) <= config.NegligibleImpactFloor {
			continue
		}
		affected = append(affected, Impact{
			EntityID:                 s.TargetID,
			Category:                 targetCat,
			Relation:                 s.Key,
			RelationInteractionValue: s.Interaction,
			InteractionCoefficient:   coef,
			EstimatedImpact:          impact,
		})
	}
	if len(affected) == 0 {
		return Alert{}, false
	}

	return Alert{
		ID:                  uuid.New().String(),
		TriggerEntityID:     trigger.EntityID,
		TriggerCategory:     trigger.Category,
		TriggerRateOfChange: trigger.Rate,
		Affected:            affected,
		Timestamp:           trigger.At,
	}, true
}

// #endregion detect

// #region apply
// Suggestion is the value a target would take if an impact were applied.
type Suggestion struct {
	EntityID string  `json:"entity_id"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
}

// Suggest folds every impact of the alert onto the targets' current values.
// A target bound through several slots accumulates all of its impacts.
// current reports the present value of a target; unknown targets are skipped.
func (a Alert) Suggest(current func(entityID string) (float64, bool)) []Suggestion {
	order := []string{}
	totals := map[string]float64{}
	for _, imp := range a.Affected {
		if _, seen := totals[imp.EntityID]; !seen {
			order = append(order, imp.EntityID)
		}
		totals[imp.EntityID] += imp.EstimatedImpact
	}

	out := make([]Suggestion, 0, len(order))
	for _, id := range order {
		from, ok := current(id)
		if !ok {
			continue
		}
		out = append(out, Suggestion{EntityID: id, From: from, To: state.Clamp(from + totals[id])})
	}
	return out
}

// #endregion apply
