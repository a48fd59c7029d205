package assess

import "github.com/danielpatrickdp/entity-dynamics/internal/state"

// #region risk
// Risk grades how close an entity is to its critical threshold.
type Risk string

const (
	RiskNone     Risk = "none"
	RiskWatch    Risk = "watch"    // crosses the threshold within the longest horizon
	RiskElevated Risk = "elevated" // crosses the threshold within the lookahead
	RiskCritical Risk = "critical" // already at or below the threshold
)

// #endregion risk

// #region config
// Config holds the forecast horizons and the critical lookahead.
type Config struct {
	HorizonsDays  []float64
	LookaheadDays float64
	Decay         state.DecayConfig
}

// DefaultConfig returns 30/90/365-day horizons and a 30-day lookahead.
func DefaultConfig() Config {
	return Config{
		HorizonsDays:  []float64{30, 90, 365},
		LookaheadDays: 30,
		Decay:         state.DefaultDecayConfig(),
	}
}

// #endregion config

// #region metric
// Metric captures a single check result.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// Forecast is the predicted state at one horizon.
type Forecast struct {
	Days  float64      `json:"days"`
	State state.Vector `json:"state"`
}

// #endregion metric

// #region result
// Result is the output of an assessment.
type Result struct {
	Passed         bool       `json:"passed"`
	Risk           Risk       `json:"risk"`
	Metrics        []Metric   `json:"metrics"`
	Forecasts      []Forecast `json:"forecasts"`
	TimeToCritical *float64   `json:"time_to_critical_days,omitempty"`
	Reason         string     `json:"reason"`
}

// #endregion result
