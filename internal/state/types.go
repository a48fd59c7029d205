package state

import (
	"math"
	"time"
)

// #region vector
// Vector is a point-in-time snapshot of an entity: value and interaction
// indices, their first and second derivatives (per day), entropy and the
// confidence attached to the snapshot.
type Vector struct {
	Value            float64   `json:"value"`
	Interaction      float64   `json:"interaction"`
	DValueDt         float64   `json:"d_value_dt"`
	DInteractionDt   float64   `json:"d_interaction_dt"`
	D2ValueDt2       float64   `json:"d2_value_dt2"`
	D2InteractionDt2 float64   `json:"d2_interaction_dt2"`
	Entropy          float64   `json:"entropy"`
	Confidence       float64   `json:"confidence"`
	Timestamp        time.Time `json:"timestamp"`
}

// New builds an observed vector with full confidence. Out-of-range inputs
// are clamped into [-1,1].
func New(value, interaction float64, at time.Time) Vector {
	return Vector{
		Value:       Clamp(value),
		Interaction: Clamp(interaction),
		Confidence:  1,
		Timestamp:   at,
	}
}

// Zero is the default state of an entity with an empty history.
func Zero(at time.Time) Vector {
	return Vector{Confidence: 1, Timestamp: at}
}

// Clamped re-applies the range invariants: value and interaction in [-1,1],
// entropy >= 0, confidence in (0,1].
func (v Vector) Clamped() Vector {
	v.Value = Clamp(v.Value)
	v.Interaction = Clamp(v.Interaction)
	if v.Entropy < 0 || math.IsNaN(v.Entropy) {
		v.Entropy = 0
	}
	if v.Confidence > 1 || math.IsNaN(v.Confidence) {
		v.Confidence = 1
	}
	if v.Confidence <= 0 {
		v.Confidence = math.SmallestNonzeroFloat64
	}
	return v
}

// #endregion vector

// #region decay-config
// DecayConfig parameterizes forecast confidence decay:
// base = Base - inertia*InertiaFactor, applied once per 7 days of horizon.
type DecayConfig struct {
	Base          float64 `json:"decay_base" yaml:"decay_base"`
	InertiaFactor float64 `json:"decay_inertia_factor" yaml:"decay_inertia_factor"`
}

// DefaultDecayConfig returns the 0.99 / 0.04 decay constants.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{Base: 0.99, InertiaFactor: 0.04}
}

// #endregion decay-config

// #region clamp
// Clamp bounds x into [-1,1]. NaN collapses to 0.
func Clamp(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	return x
}

// #endregion clamp
