package assess

import (
	"fmt"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region harness
// Harness forecasts an entity over fixed horizons and grades its risk.
type Harness struct {
	config Config
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config Config) *Harness {
	return &Harness{config: config}
}

// Run predicts v at every horizon and estimates time-to-critical.
// Passed is false as soon as any horizon lands in the critical region.
func (h *Harness) Run(v state.Vector, c catalog.Category) Result {
	var metrics []Metric
	var forecasts []Forecast
	var failReasons []string
	passed := true

	critNow := state.IsCritical(v, c)
	metrics = append(metrics, Metric{Name: "value", Value: v.Value, Pass: !critNow})
	if critNow {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("value %.4f at or below threshold %.4f", v.Value, catalog.For(c).CriticalThreshold))
	}

	maxHorizon := 0.0
	predictedCritical := false
	for _, days := range h.config.HorizonsDays {
		p := state.Predict(v, c, days, h.config.Decay)
		forecasts = append(forecasts, Forecast{Days: days, State: p})
		crit := state.IsCritical(p, c)
		metrics = append(metrics,
			Metric{Name: fmt.Sprintf("forecast_%gd_value", days), Value: p.Value, Pass: !crit},
			Metric{Name: fmt.Sprintf("forecast_%gd_confidence", days), Value: p.Confidence, Pass: true},
		)
		if crit {
			predictedCritical = true
			if passed {
				failReasons = append(failReasons, fmt.Sprintf("critical within %g days", days))
			}
			passed = false
		}
		if days > maxHorizon {
			maxHorizon = days
		}
	}

	var ttcPtr *float64
	ttc, ok := state.TimeToCritical(v, c)
	if ok {
		ttcPtr = &ttc
		metrics = append(metrics, Metric{Name: "time_to_critical_days", Value: ttc, Pass: ttc > h.config.LookaheadDays})
	}

	risk := RiskNone
	switch {
	case critNow:
		risk = RiskCritical
	case ok && ttc <= h.config.LookaheadDays:
		risk = RiskElevated
	case (ok && ttc <= maxHorizon) || predictedCritical:
		risk = RiskWatch
	}

	reason := "no critical crossing within horizons"
	if len(failReasons) > 0 {
		reason = failReasons[0]
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("%d checks failed: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed:         passed,
		Risk:           risk,
		Metrics:        metrics,
		Forecasts:      forecasts,
		TimeToCritical: ttcPtr,
		Reason:         reason,
	}
}

// #endregion harness
