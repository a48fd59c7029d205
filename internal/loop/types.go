package loop

import (
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/assess"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/gate"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region phase
// Phase is one step of the review loop. Phases always run in Phases() order.
type Phase string

const (
	Discovery Phase = "discovery"
	Analysis  Phase = "analysis"
	Redesign  Phase = "redesign"
	Optimize  Phase = "optimize"
	Eliminate Phase = "eliminate"
)

// Phases returns the five phases in execution order.
func Phases() []Phase {
	return []Phase{Discovery, Analysis, Redesign, Optimize, Eliminate}
}

// #endregion phase

// #region execution
// Execution is the immutable record of one phase run on one entity.
type Execution struct {
	ID            string       `json:"id"`
	EntityID      string       `json:"entity_id"`
	Phase         Phase        `json:"phase"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   time.Time    `json:"completed_at"`
	InputState    state.Vector `json:"input_state"`
	OutputState   state.Vector `json:"output_state"`
	ActionsTaken  []string     `json:"actions_taken"`
	InjectedDelta *float64     `json:"injected_delta,omitempty"`
	Success       bool         `json:"success"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// #endregion execution

// #region subject
// Subject is the entity a loop runs against. The registry implements it
// while holding the entity's lock, so a Subject is never shared across
// goroutines during a run.
type Subject interface {
	ID() string
	Category() catalog.Category
	Current() state.Vector
	HistoryLen() int
	Relations() *relation.Matrix
	// AppendValue records a new state with the given value through the
	// normal update path and returns it.
	AppendValue(value float64) (state.Vector, error)
	Unbind(key relation.SlotKey) bool
	Quarantine()
	Quarantined() bool
}

// #endregion subject

// #region config
// Config holds the thresholds used by the phases.
type Config struct {
	Assess                assess.Config
	Gate                  gate.GateConfig
	WeakRelationThreshold float64 // redesign: filled relations below this are weak
	PrimaryFillFloor      float64 // redesign: primary categories filled below this fraction are flagged
	CriticalLookaheadDays float64 // eliminate: warn when critical is reachable within this
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		Assess:                assess.DefaultConfig(),
		Gate:                  gate.DefaultGateConfig(),
		WeakRelationThreshold: 0.3,
		PrimaryFillFloor:      0.25,
		CriticalLookaheadDays: 30,
	}
}

// #endregion config
