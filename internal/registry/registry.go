package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
	"github.com/danielpatrickdp/entity-dynamics/internal/update"
)

// Registry owns every entity, its history and its relation matrix.
// Entities are kept in an arena keyed by id; relation slots refer to other
// entities by id only.
type Registry struct {
	config   Config
	clock    func() time.Time
	logger   *slog.Logger
	sink     Sink
	recorder Recorder
	runner   *loop.Runner

	mu       sync.RWMutex
	entities map[string]*entity

	alertMu sync.Mutex
	alerts  []cascade.Alert
	applied map[string]bool

	alertTotal atomic.Int64
	sweeps     atomic.Int64
}

// New creates an empty registry. Zero-valued capacities fall back to defaults.
func New(cfg Config, opts ...Option) *Registry {
	def := DefaultConfig()
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.AlertLogCapacity <= 0 {
		cfg.AlertLogCapacity = def.AlertLogCapacity
	}
	if cfg.LoopHistoryCapacity <= 0 {
		cfg.LoopHistoryCapacity = def.LoopHistoryCapacity
	}
	if cfg.LoopWorkers <= 0 {
		cfg.LoopWorkers = def.LoopWorkers
	}
	cfg.Loop.Assess.Decay = cfg.Decay

	r := &Registry{
		config:   cfg,
		clock:    time.Now,
		entities: make(map[string]*entity),
		applied:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.runner = loop.NewRunner(cfg.Loop, r.clock, r.logger)
	r.logger = r.logger.With("component", "registry")
	return r
}

// Config returns the effective configuration.
func (r *Registry) Config() Config { return r.config }

// #region registration
// Register creates a new entity with an empty history.
func (r *Registry) Register(id, name string, c catalog.Category) (Handle, error) {
	if id == "" {
		return Handle{}, fmt.Errorf("register: %w: empty id", ErrInvalidEntity)
	}
	if !catalog.Valid(c) {
		return Handle{}, fmt.Errorf("register %s: %w: %w %q", id, ErrInvalidEntity, catalog.ErrUnknownCategory, c)
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	if _, exists := r.entities[id]; exists {
		r.mu.Unlock()
		return Handle{}, fmt.Errorf("register %s: %w", id, ErrDuplicateEntity)
	}
	h := Handle{ID: id, Name: name, Category: c, CreatedAt: r.clock()}
	r.entities[id] = newEntity(h, r.config.HistoryCapacity)
	r.mu.Unlock()

	r.logger.Info("entity registered", "entity", id, "category", c)
	if r.recorder != nil {
		r.recorder.EntityRegistered(c)
	}
	if r.sink != nil {
		if err := r.sink.SaveEntity(h); err != nil {
			r.logger.Warn("sink save entity failed", "entity", id, "err", err)
		}
	}
	return h, nil
}

func (r *Registry) lookup(id string) (*entity, error) {
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// resolve is the cascade resolver over the arena. Categories are immutable
// so no entity lock is taken.
func (r *Registry) resolve(id string) (catalog.Category, bool) {
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return e.handle.Category, true
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Entity returns a snapshot of one entity.
func (r *Registry) Entity(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// History returns the retained states, oldest first.
func (r *Registry) History(id string) ([]state.Vector, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Slice(), nil
}

// #endregion registration

// #region update
// Update records a new observation at the registry clock's current time.
// A nil interaction is derived from the mean of filled relation slots, or 0.
func (r *Registry) Update(id string, value float64, interaction *float64) (state.Vector, error) {
	return r.UpdateAt(id, value, interaction, r.clock())
}

// UpdateAt records a new observation at an explicit time.
func (r *Registry) UpdateAt(id string, value float64, interaction *float64, at time.Time) (state.Vector, error) {
	e, err := r.lookup(id)
	if err != nil {
		return state.Vector{}, fmt.Errorf("update: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.applyLocked(e, value, interaction, at)
}

// applyLocked runs the update step, appends the state and runs cascade
// detection against the entity's current slots. Caller holds e.mu.
func (r *Registry) applyLocked(e *entity, value float64, interaction *float64, at time.Time) (state.Vector, error) {
	ia := 0.0
	if interaction != nil {
		ia = *interaction
	} else if mean, ok := e.matrix.MeanFilledInteraction(); ok {
		ia = mean
	}

	var window []state.Vector
	if n := r.config.Update.EntropyWindow; n > 0 {
		window = e.history.Window(n)
	} else {
		window = e.history.Slice()
	}
	res := update.Step(window, update.Observation{Value: value, Interaction: ia, At: at}, r.config.Update)
	e.history.Append(res.State)

	c := e.handle.Category
	r.logger.Debug("state updated", "entity", e.handle.ID, "value", res.State.Value,
		"d_value_dt", res.State.DValueDt, "action", res.Decision.Action)
	if r.recorder != nil {
		r.recorder.StateUpdated(c, res.State)
	}
	if r.sink != nil {
		if err := r.sink.SaveState(e.handle.ID, res.State); err != nil {
			r.logger.Warn("sink save state failed", "entity", e.handle.ID, "err", err)
		}
	}

	// held derivatives describe no new change
	if res.Decision.Action == update.ActionHoldDerivatives {
		return res.State, nil
	}
	trigger := cascade.Trigger{EntityID: e.handle.ID, Category: c, Rate: res.State.DValueDt, At: at}
	if alert, ok := cascade.Detect(trigger, e.matrix.Filled(), r.resolve, r.config.Cascade); ok {
		r.pushAlert(alert)
	}
	return res.State, nil
}

// #endregion update

// #region relations
// Bind attaches targetID to the first free slot of rc. ok is false when all
// twelve slots of rc are taken.
func (r *Registry) Bind(id string, rc catalog.RelationCategory, targetID string, initial *float64) (relation.SlotKey, bool, error) {
	if _, known := catalog.RelationIndex(rc); !known {
		return relation.SlotKey{}, false, fmt.Errorf("bind %s: %w %q", id, catalog.ErrUnknownRelation, rc)
	}
	if targetID == "" {
		return relation.SlotKey{}, false, fmt.Errorf("bind %s: %w: empty target", id, ErrInvalidEntity)
	}
	if targetID == id {
		return relation.SlotKey{}, false, fmt.Errorf("bind %s: %w", id, ErrSelfRelation)
	}
	e, err := r.lookup(id)
	if err != nil {
		return relation.SlotKey{}, false, fmt.Errorf("bind: %w", err)
	}
	targetName := targetID
	if t, err := r.lookup(targetID); err == nil {
		targetName = t.handle.Name
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quarantined {
		return relation.SlotKey{}, false, fmt.Errorf("bind %s: %w", id, ErrQuarantined)
	}
	key, ok := e.matrix.Bind(rc, targetID, targetName, initial)
	if !ok {
		r.logger.Debug("relation category full", "entity", id, "relation", rc)
	}
	return key, ok, nil
}

// Unbind clears a slot. It reports false when the slot was already empty.
func (r *Registry) Unbind(id string, key relation.SlotKey) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, fmt.Errorf("unbind: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.matrix.Get(key); !ok {
		return false, fmt.Errorf("unbind %s: %w: %s", id, ErrInvalidSlot, key)
	}
	return e.matrix.Unbind(key), nil
}

// SetRelationInteraction overwrites a slot's interaction value.
func (r *Registry) SetRelationInteraction(id string, key relation.SlotKey, v float64) error {
	e, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("set interaction: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.matrix.SetInteraction(key, v) {
		return fmt.Errorf("set interaction %s: %w: %s", id, ErrInvalidSlot, key)
	}
	return nil
}

// #endregion relations

// #region loops
// ShouldRunLoop reports whether the entity's review cadence has elapsed.
func (r *Registry) ShouldRunLoop(id string) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return loop.ShouldRun(e.lastLoopRun, e.handle.Category, r.clock()), nil
}

// RunLoop runs all five phases on one entity regardless of cadence.
func (r *Registry) RunLoop(id string, delta *float64) ([]loop.Execution, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("run loop: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.runLocked(e, delta), nil
}

func (r *Registry) runLocked(e *entity, delta *float64) []loop.Execution {
	execs := r.runner.Run(subject{r: r, e: e}, delta)
	now := r.clock()
	e.lastLoopRun = &now
	e.loopRuns++
	e.appendLoops(execs, r.config.LoopHistoryCapacity)

	for _, ex := range execs {
		if r.recorder != nil {
			r.recorder.PhaseCompleted(ex)
		}
		if r.sink != nil {
			if err := r.sink.SaveLoop(ex); err != nil {
				r.logger.Warn("sink save loop failed", "entity", e.handle.ID, "phase", ex.Phase, "err", err)
			}
		}
	}
	return execs
}

// RunAllLoops runs the loop on every entity whose cadence has elapsed,
// up to LoopWorkers entities at a time. Failures are reported per entity.
func (r *Registry) RunAllLoops() SweepResult {
	ids := r.IDs()
	started := r.clock()
	wall := time.Now()
	outcomes := make([]Outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(r.config.LoopWorkers)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = r.sweepOne(id)
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{
		Sweep:     r.sweeps.Add(1),
		StartedAt: started,
		Duration:  time.Since(wall),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			res.Failed++
		case o.Ran:
			res.Ran++
		default:
			res.Skipped++
		}
	}
	r.logger.Info("loop sweep complete", "sweep", res.Sweep, "ran", res.Ran, "skipped", res.Skipped, "failed", res.Failed)
	if r.recorder != nil {
		r.recorder.SweepCompleted(res)
	}
	return res
}

func (r *Registry) sweepOne(id string) (out Outcome) {
	out.EntityID = id
	defer func() {
		if p := recover(); p != nil {
			out.Error = fmt.Sprintf("panic: %v", p)
			r.logger.Error("loop panicked", "entity", id, "panic", p)
		}
	}()

	e, err := r.lookup(id)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !loop.ShouldRun(e.lastLoopRun, e.handle.Category, r.clock()) {
		return out
	}
	execs := r.runLocked(e, nil)
	out.Ran = true
	out.Executions = len(execs)
	for _, ex := range execs {
		if !ex.Success {
			out.FailedPhases++
		}
	}
	return out
}

// Sweeps returns the number of completed RunAllLoops calls.
func (r *Registry) Sweeps() int64 { return r.sweeps.Load() }

// Loops returns up to limit of the most recent executions for id. limit <= 0
// returns all retained executions.
func (r *Registry) Loops(id string, limit int) ([]loop.Execution, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	src := e.loops
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	return append([]loop.Execution(nil), src...), nil
}

// ReleaseQuarantine clears the quarantine flag set by the Eliminate phase.
// It reports whether the entity was quarantined.
func (r *Registry) ReleaseQuarantine(id string) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, fmt.Errorf("release quarantine: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	was := e.quarantined
	e.quarantined = false
	if was {
		r.logger.Info("quarantine released", "entity", id)
	}
	return was, nil
}

// #endregion loops

// #region cascade
func (r *Registry) pushAlert(a cascade.Alert) {
	r.alertMu.Lock()
	r.alerts = append(r.alerts, a)
	if over := len(r.alerts) - r.config.AlertLogCapacity; over > 0 {
		for _, old := range r.alerts[:over] {
			delete(r.applied, old.ID)
		}
		r.alerts = append([]cascade.Alert(nil), r.alerts[over:]...)
	}
	r.alertMu.Unlock()
	r.alertTotal.Add(1)

	r.logger.Warn("cascade alert", "trigger", a.TriggerEntityID, "rate", a.TriggerRateOfChange, "affected", len(a.Affected))
	if r.recorder != nil {
		r.recorder.CascadeDetected(a)
	}
	if r.sink != nil {
		if err := r.sink.SaveAlert(a); err != nil {
			r.logger.Warn("sink save alert failed", "alert", a.ID, "err", err)
		}
	}
}

// Alerts returns up to limit of the most recent alerts, newest last.
func (r *Registry) Alerts(limit int) []cascade.Alert {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()
	src := r.alerts
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	return append([]cascade.Alert(nil), src...)
}

// ApplyCascade commits an alert's estimated impacts as regular updates on
// the affected entities. Each alert applies at most once. Per-entity
// failures are joined and do not stop the remaining updates.
func (r *Registry) ApplyCascade(alertID string) ([]cascade.Suggestion, error) {
	r.alertMu.Lock()
	var alert *cascade.Alert
	for i := range r.alerts {
		if r.alerts[i].ID == alertID {
			a := r.alerts[i]
			alert = &a
			break
		}
	}
	if alert == nil {
		r.alertMu.Unlock()
		return nil, fmt.Errorf("apply cascade: %w: %s", ErrAlertNotFound, alertID)
	}
	if r.applied[alertID] {
		r.alertMu.Unlock()
		return nil, fmt.Errorf("apply cascade: %w: %s", ErrAlertApplied, alertID)
	}
	r.applied[alertID] = true
	r.alertMu.Unlock()

	suggestions := alert.Suggest(func(id string) (float64, bool) {
		s, err := r.Entity(id)
		if err != nil {
			return 0, false
		}
		return s.Current.Value, true
	})

	var errs []error
	applied := make([]cascade.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if _, err := r.applyValue(s.EntityID, s.To); err != nil {
			errs = append(errs, fmt.Errorf("apply to %s: %w", s.EntityID, err))
			continue
		}
		applied = append(applied, s)
	}
	return applied, errors.Join(errs...)
}

// applyValue commits a value-only change, keeping the entity's current
// interaction index.
func (r *Registry) applyValue(id string, value float64) (state.Vector, error) {
	e, err := r.lookup(id)
	if err != nil {
		return state.Vector{}, fmt.Errorf("update: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	interaction := e.current().Interaction
	return r.applyLocked(e, value, &interaction, r.clock())
}

// #endregion cascade

// #region batch
// SimulateFuture predicts every entity days ahead and lists those that are
// not critical now but become critical within the horizon.
func (r *Registry) SimulateFuture(days float64) Forecast {
	f := Forecast{Days: days, At: r.clock()}
	for _, id := range r.IDs() {
		e, err := r.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		cur := e.current()
		e.mu.Unlock()

		c := e.handle.Category
		p := Prediction{
			EntityID:    id,
			Category:    c,
			Current:     cur,
			Predicted:   state.Predict(cur, c, days, r.config.Decay),
			CriticalNow: state.IsCritical(cur, c),
		}
		p.CriticalPredicted = state.IsCritical(p.Predicted, c)
		ttc, ok := state.TimeToCritical(cur, c)
		if ok {
			p.TimeToCritical = &ttc
		}
		if !p.CriticalNow && (p.CriticalPredicted || (ok && ttc <= days)) {
			f.NewlyCritical = append(f.NewlyCritical, id)
		}
		f.Predictions = append(f.Predictions, p)
	}
	return f
}

// GlobalState aggregates the registry.
func (r *Registry) GlobalState() Summary {
	s := Summary{
		ByCategory:    make(map[catalog.Category]CategorySummary),
		CascadeAlerts: r.alertTotal.Load(),
		LoopSweeps:    r.sweeps.Load(),
		At:            r.clock(),
	}
	sums := make(map[catalog.Category]float64)
	for _, id := range r.IDs() {
		e, err := r.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		cur := e.current()
		quarantined := e.quarantined
		e.mu.Unlock()

		c := e.handle.Category
		s.Entities++
		cs := s.ByCategory[c]
		cs.Count++
		s.ByCategory[c] = cs
		sums[c] += cur.Value
		if state.IsCritical(cur, c) {
			s.Critical++
		}
		if quarantined {
			s.Quarantined++
		}
	}
	for c, cs := range s.ByCategory {
		cs.MeanValue = sums[c] / float64(cs.Count)
		s.ByCategory[c] = cs
	}
	return s
}

// #endregion batch
