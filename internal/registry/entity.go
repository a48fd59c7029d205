package registry

import (
	"sync"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// entity is owned by the registry. mu serialises every read and write of
// the fields below it; handle is immutable after registration.
type entity struct {
	handle Handle

	mu          sync.Mutex
	history     *state.History
	matrix      *relation.Matrix
	loops       []loop.Execution
	lastLoopRun *time.Time
	loopRuns    int
	quarantined bool
}

func newEntity(h Handle, historyCap int) *entity {
	return &entity{
		handle:  h,
		history: state.NewHistory(historyCap),
		matrix:  relation.NewMatrix(h.Category),
	}
}

// current returns the latest state, or a zero state stamped at creation.
func (e *entity) current() state.Vector {
	if v, ok := e.history.Current(); ok {
		return v
	}
	return state.Zero(e.handle.CreatedAt)
}

func (e *entity) snapshot() Snapshot {
	cur := e.current()
	s := Snapshot{
		Handle:      e.handle,
		Current:     cur,
		HistoryLen:  e.history.Len(),
		Relations:   e.matrix.Filled(),
		FillRate:    e.matrix.FillRate(),
		LoopRuns:    e.loopRuns,
		Quarantined: e.quarantined,
		Critical:    state.IsCritical(cur, e.handle.Category),
	}
	if e.lastLoopRun != nil {
		t := *e.lastLoopRun
		s.LastLoopRunAt = &t
	}
	if ttc, ok := state.TimeToCritical(cur, e.handle.Category); ok {
		s.TimeToCritical = &ttc
	}
	return s
}

func (e *entity) appendLoops(execs []loop.Execution, capacity int) {
	e.loops = append(e.loops, execs...)
	if capacity > 0 && len(e.loops) > capacity {
		e.loops = append([]loop.Execution(nil), e.loops[len(e.loops)-capacity:]...)
	}
}

// #region subject
// subject adapts a locked entity to loop.Subject. It is only valid while the
// caller holds e.mu.
type subject struct {
	r *Registry
	e *entity
}

func (s subject) ID() string { return s.e.handle.ID }
func (s subject) Category() catalog.Category { return s.e.handle.Category }
func (s subject) Current() state.Vector { return s.e.current() }
func (s subject) HistoryLen() int { return s.e.history.Len() }
func (s subject) Relations() *relation.Matrix { return s.e.matrix }
func (s subject) Quarantined() bool { return s.e.quarantined }

func (s subject) Unbind(key relation.SlotKey) bool {
	return s.e.matrix.Unbind(key)
}

func (s subject) Quarantine() {
	s.e.quarantined = true
}

// AppendValue commits value through the regular update path, keeping the
// current interaction index.
func (s subject) AppendValue(value float64) (state.Vector, error) {
	interaction := s.e.current().Interaction
	return s.r.applyLocked(s.e, value, &interaction, s.r.clock())
}

// #endregion subject
