package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNonFinite VetoType = "non_finite_delta"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType `json:"type"`
	Reason string   `json:"reason"`
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for injection decisions.
type GateConfig struct {
	// WarnRateMultiple warns when |delta| exceeds this many days of the
	// category's maximum daily value change.
	WarnRateMultiple float64
}

// DefaultGateConfig warns on injections larger than one day's maximum change.
func DefaultGateConfig() GateConfig {
	return GateConfig{WarnRateMultiple: 1}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action        string       `json:"action"` // "commit" | "reject"
	Reason        string       `json:"reason"`
	Vetoed        bool         `json:"vetoed"`
	VetoSignals   []VetoSignal `json:"veto_signals,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
	ProposedValue float64      `json:"proposed_value"`
}

// #endregion gate-decision
