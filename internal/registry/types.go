package registry

import (
	"errors"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
	"github.com/danielpatrickdp/entity-dynamics/internal/update"
)

// #region errors
var (
	ErrNotFound        = errors.New("entity not found")
	ErrDuplicateEntity = errors.New("duplicate entity")
	ErrInvalidEntity   = errors.New("invalid entity")
	ErrSelfRelation    = errors.New("entity cannot bind to itself")
	ErrQuarantined     = errors.New("entity is quarantined")
	ErrInvalidSlot     = errors.New("invalid relation slot")
	ErrAlertNotFound   = errors.New("cascade alert not found")
	ErrAlertApplied    = errors.New("cascade alert already applied")
)

// #endregion errors

// #region config
// Config holds the per-registry tunables.
type Config struct {
	HistoryCapacity     int
	AlertLogCapacity    int
	LoopHistoryCapacity int // per entity
	LoopWorkers         int
	Decay               state.DecayConfig
	Update              update.Config
	Cascade             cascade.Config
	Loop                loop.Config
}

// DefaultConfig returns registry defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity:     state.DefaultHistoryCapacity,
		AlertLogCapacity:    1000,
		LoopHistoryCapacity: 500,
		LoopWorkers:         4,
		Decay:               state.DefaultDecayConfig(),
		Update:              update.DefaultConfig(),
		Cascade:             cascade.DefaultConfig(),
		Loop:                loop.DefaultConfig(),
	}
}

// #endregion config

// #region hooks
// Sink receives every record the registry produces. Errors are logged and
// never fail the operation that produced the record.
type Sink interface {
	SaveEntity(h Handle) error
	SaveState(entityID string, v state.Vector) error
	SaveLoop(e loop.Execution) error
	SaveAlert(a cascade.Alert) error
}

// Recorder observes registry activity for metrics.
type Recorder interface {
	EntityRegistered(c catalog.Category)
	StateUpdated(c catalog.Category, v state.Vector)
	CascadeDetected(a cascade.Alert)
	PhaseCompleted(e loop.Execution)
	SweepCompleted(s SweepResult)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source for updates and loops.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithSink attaches a persistence sink.
func WithSink(s Sink) Option {
	return func(r *Registry) {
		r.sink = s
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// #endregion hooks

// #region records
// Handle identifies a registered entity.
type Handle struct {
	ID        string           `json:"id"`
	Name      string           `json:"display_name"`
	Category  catalog.Category `json:"category"`
	CreatedAt time.Time        `json:"created_at"`
}

// Snapshot is a read-only copy of an entity at one instant.
type Snapshot struct {
	Handle
	Current        state.Vector    `json:"current_state"`
	HistoryLen     int             `json:"history_len"`
	Relations      []relation.Slot `json:"relations"` // filled slots only
	FillRate       float64         `json:"fill_rate"`
	LastLoopRunAt  *time.Time      `json:"last_loop_run_at,omitempty"`
	LoopRuns       int             `json:"loop_runs"`
	Quarantined    bool            `json:"quarantined"`
	Critical       bool            `json:"critical"`
	TimeToCritical *float64        `json:"time_to_critical_days,omitempty"`
}

// Outcome is one entity's result within a sweep.
type Outcome struct {
	EntityID     string `json:"entity_id"`
	Ran          bool   `json:"ran"`
	Executions   int    `json:"executions"`
	FailedPhases int    `json:"failed_phases"`
	Error        string `json:"error,omitempty"`
}

// SweepResult summarises one RunAllLoops call.
type SweepResult struct {
	Sweep     int64         `json:"sweep"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Ran       int           `json:"ran"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Prediction is one entity's projected state.
type Prediction struct {
	EntityID          string           `json:"entity_id"`
	Category          catalog.Category `json:"category"`
	Current           state.Vector     `json:"current"`
	Predicted         state.Vector     `json:"predicted"`
	TimeToCritical    *float64         `json:"time_to_critical_days,omitempty"`
	CriticalNow       bool             `json:"critical_now"`
	CriticalPredicted bool             `json:"critical_predicted"`
}

// Forecast is the result of SimulateFuture.
type Forecast struct {
	Days          float64      `json:"days"`
	At            time.Time    `json:"at"`
	Predictions   []Prediction `json:"predictions"`
	NewlyCritical []string     `json:"newly_critical"`
}

// CategorySummary aggregates one category.
type CategorySummary struct {
	Count     int     `json:"count"`
	MeanValue float64 `json:"mean_value"`
}

// Summary is the registry-wide aggregate returned by GlobalState.
type Summary struct {
	Entities      int                                  `json:"entities"`
	ByCategory    map[catalog.Category]CategorySummary `json:"by_category"`
	Critical      int                                  `json:"critical"`
	Quarantined   int                                  `json:"quarantined"`
	CascadeAlerts int64                                `json:"cascade_alerts"`
	LoopSweeps    int64                                `json:"loop_sweeps"`
	At            time.Time                            `json:"at"`
}

// #endregion records
