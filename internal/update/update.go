package update

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region step-function
// Step is a pure function computing the next state vector from the retained
// history (oldest first) and a new observation. Derivatives come from finite
// differences against the most recent vector; the observation is clamped.
func Step(history []state.Vector, obs Observation, config Config) Result {
	next := state.New(obs.Value, obs.Interaction, obs.At)

	if len(history) == 0 {
		next.Entropy = spread(nil, next.Value)
		return Result{
			State:    next,
			Decision: Decision{Action: ActionFirstObservation, Reason: "no prior state"},
		}
	}

	prev := history[len(history)-1]
	elapsed := obs.At.Sub(prev.Timestamp).Hours() / 24

	var decision Decision
	if elapsed <= config.MinElapsedDays {
		// Same instant (or clock skew): a rate over ~0 days is meaningless.
		next.DValueDt = prev.DValueDt
		next.DInteractionDt = prev.DInteractionDt
		next.D2ValueDt2 = prev.D2ValueDt2
		next.D2InteractionDt2 = prev.D2InteractionDt2
		decision = Decision{
			Action: ActionHoldDerivatives,
			Reason: fmt.Sprintf("elapsed %.6f days below %.6f", elapsed, config.MinElapsedDays),
		}
	} else {
		next.DValueDt = (next.Value - prev.Value) / elapsed
		next.DInteractionDt = (next.Interaction - prev.Interaction) / elapsed
		next.D2ValueDt2 = (next.DValueDt - prev.DValueDt) / elapsed
		next.D2InteractionDt2 = (next.DInteractionDt - prev.DInteractionDt) / elapsed
		decision = Decision{
			Action: ActionCommit,
			Reason: fmt.Sprintf("d_value_dt=%.6f over %.4f days", next.DValueDt, elapsed),
		}
	}

	window := history
	if config.EntropyWindow > 0 && len(window) > config.EntropyWindow {
		window = window[len(window)-config.EntropyWindow:]
	}
	next.Entropy = spread(window, next.Value)

	return Result{
		State:       next.Clamped(),
		ElapsedDays: elapsed,
		Decision:    decision,
	}
}

// #endregion step-function

// #region helpers
// spread is the population standard deviation of value across the window
// plus the newest observation.
func spread(window []state.Vector, latest float64) float64 {
	n := float64(len(window) + 1)
	mean := latest
	for _, v := range window {
		mean += v.Value
	}
	mean /= n

	sumSq := (latest - mean) * (latest - mean)
	for _, v := range window {
		d := v.Value - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / n)
}

// #endregion helpers
