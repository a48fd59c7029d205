package update

import (
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region observation
// Observation is a newly measured value/interaction pair for an entity.
type Observation struct {
	Value       float64
	Interaction float64
	At          time.Time
}

// #endregion observation

// #region decision
// Decision records what the step function decided.
type Decision struct {
	Action string
	Reason string
}

// Step decision actions.
const (
	ActionFirstObservation = "first_observation"
	ActionCommit           = "commit"
	ActionHoldDerivatives  = "hold_derivatives"
)

// #endregion decision

// #region update-config
// Config holds the finite-difference parameters of the step function.
type Config struct {
	MinElapsedDays float64 // below this, derivatives are carried over instead of recomputed
	EntropyWindow  int     // number of prior vectors included in the entropy estimate
}

// DefaultConfig returns the step defaults.
func DefaultConfig() Config {
	return Config{
		MinElapsedDays: 1.0 / (24 * 60), // one minute
		EntropyWindow:  30,
	}
}

// #endregion update-config

// #region update-result
// Result bundles everything returned by Step.
type Result struct {
	State       state.Vector
	ElapsedDays float64
	Decision    Decision
}

// #endregion update-result
