package state

import (
	"math"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
)

const daysPerWeek = 7.0

// #region effective-rates
// EffectiveValueRate clamps d_value_dt to the category's daily cap and
// damps it by inertia.
func EffectiveValueRate(v Vector, c catalog.Category) float64 {
	k := catalog.For(c)
	return capRate(v.DValueDt, k.MaxValueDeltaPerDay) / (1 + k.Inertia)
}

// EffectiveInteractionRate is EffectiveValueRate for the interaction index.
func EffectiveInteractionRate(v Vector, c catalog.Category) float64 {
	k := catalog.For(c)
	return capRate(v.DInteractionDt, k.MaxInteractionDeltaPerDay) / (1 + k.Inertia)
}

func capRate(rate, limit float64) float64 {
	if math.IsNaN(rate) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, rate))
}

// #endregion effective-rates

// #region predict
// Predict extrapolates v forward by days using second-order kinematics.
// Derivatives are carried unchanged; confidence decays geometrically per week
// of horizon and entropy grows by the information lost to that decay.
func Predict(v Vector, c catalog.Category, days float64, decay DecayConfig) Vector {
	if days < 0 || math.IsNaN(days) {
		days = 0
	}
	k := catalog.For(c)

	out := v
	out.Value = Clamp(v.Value + EffectiveValueRate(v, c)*days + 0.5*v.D2ValueDt2*days*days)
	out.Interaction = Clamp(v.Interaction + EffectiveInteractionRate(v, c)*days + 0.5*v.D2InteractionDt2*days*days)

	base := decay.Base - k.Inertia*decay.InertiaFactor
	if base <= 0 {
		base = math.SmallestNonzeroFloat64
	}
	if base > 1 {
		base = 1
	}
	factor := math.Pow(base, days/daysPerWeek)
	out.Confidence = v.Confidence * factor
	if factor > 0 {
		out.Entropy = v.Entropy - math.Log(factor)
	}
	out.Timestamp = v.Timestamp.Add(time.Duration(days * float64(24*time.Hour)))
	return out.Clamped()
}

// #endregion predict

// #region critical
// TimeToCritical estimates the days until value reaches the category's
// critical threshold. ok is false when the value is not declining.
// An entity already at or below the threshold reports (0, true).
func TimeToCritical(v Vector, c catalog.Category) (float64, bool) {
	rate := EffectiveValueRate(v, c)
	if rate >= 0 {
		return 0, false
	}
	threshold := catalog.For(c).CriticalThreshold
	if v.Value <= threshold {
		return 0, true
	}
	days := (threshold - v.Value) / rate
	if days <= 0 {
		return 0, false
	}
	return days, true
}

// IsCritical reports whether value sits at or below the critical threshold.
func IsCritical(v Vector, c catalog.Category) bool {
	return v.Value <= catalog.For(c).CriticalThreshold
}

// #endregion critical
