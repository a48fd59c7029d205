package loop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/entity-dynamics/internal/assess"
	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/gate"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region runner
// Runner executes the five-phase review loop.
type Runner struct {
	config  Config
	harness *assess.Harness
	gate    *gate.Gate
	clock   func() time.Time
	logger  *slog.Logger
}

// NewRunner creates a runner. A nil clock uses time.Now; a nil logger discards.
func NewRunner(config Config, clock func() time.Time, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		config:  config,
		harness: assess.NewHarness(config.Assess),
		gate:    gate.NewGate(config.Gate),
		clock:   clock,
		logger:  logger.With("component", "loop"),
	}
}

// ShouldRun reports whether the category's review cadence has elapsed since
// lastRun. A nil lastRun always runs.
func ShouldRun(lastRun *time.Time, c catalog.Category, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	cadence := time.Duration(catalog.For(c).ReviewCadenceDays * float64(24*time.Hour))
	return now.Sub(*lastRun) >= cadence
}

// Run executes all five phases in order against s, producing one Execution
// per phase. A failing phase is recorded and the loop continues.
// delta, when set, is injected into value during Optimize.
func (r *Runner) Run(s Subject, delta *float64) []Execution {
	execs := make([]Execution, 0, 5)
	for _, phase := range Phases() {
		exec := Execution{
			ID:         uuid.New().String(),
			EntityID:   s.ID(),
			Phase:      phase,
			StartedAt:  r.clock(),
			InputState: s.Current(),
		}

		var actions []string
		var injected *float64
		var err error
		switch phase {
		case Discovery:
			actions = r.discover(s)
		case Analysis:
			actions = r.analyze(s)
		case Redesign:
			actions = r.redesign(s)
		case Optimize:
			actions, injected, err = r.optimize(s, delta)
		case Eliminate:
			actions = r.eliminate(s)
		}

		exec.ActionsTaken = actions
		exec.InjectedDelta = injected
		exec.Success = err == nil
		if err != nil {
			exec.ErrorMessage = err.Error()
			r.logger.Warn("phase failed", "entity", s.ID(), "phase", phase, "err", err)
		}
		exec.OutputState = s.Current()
		exec.CompletedAt = r.clock()
		execs = append(execs, exec)
	}
	r.logger.Debug("loop complete", "entity", s.ID(), "category", s.Category())
	return execs
}

// #endregion runner

// #region discovery
func (r *Runner) discover(s Subject) []string {
	cur := s.Current()
	m := s.Relations()
	actions := []string{
		fmt.Sprintf("state value=%.4f interaction=%.4f d_value_dt=%+.4f", cur.Value, cur.Interaction, cur.DValueDt),
		fmt.Sprintf("history depth %d", s.HistoryLen()),
		fmt.Sprintf("relations filled %d/%d (%.1f%%)", m.FilledCount(), relation.TotalSlots, m.FillRate()*100),
	}
	for _, rc := range catalog.RelationCategories() {
		if n := m.CategoryFill(rc); n > 0 {
			actions = append(actions, fmt.Sprintf("relation %s filled %d/%d", rc, n, relation.SlotsPerCategory))
		}
	}
	return actions
}

// #endregion discovery

// #region analysis
func (r *Runner) analyze(s Subject) []string {
	res := r.harness.Run(s.Current(), s.Category())
	actions := make([]string, 0, len(res.Forecasts)+2)
	for _, f := range res.Forecasts {
		actions = append(actions, fmt.Sprintf("forecast %gd value=%.4f confidence=%.4f", f.Days, f.State.Value, f.State.Confidence))
	}
	if res.TimeToCritical != nil {
		actions = append(actions, fmt.Sprintf("time to critical %.2f days", *res.TimeToCritical))
	} else {
		actions = append(actions, "no approach to critical threshold")
	}
	actions = append(actions, fmt.Sprintf("risk=%s: %s", res.Risk, res.Reason))
	return actions
}

// #endregion analysis

// #region redesign
func (r *Runner) redesign(s Subject) []string {
	var actions []string
	m := s.Relations()
	for _, slot := range m.Filled() {
		if slot.Interaction < r.config.WeakRelationThreshold {
			actions = append(actions, fmt.Sprintf("weak relation %s -> %s (%.2f)", slot.Key, slot.TargetID, slot.Interaction))
		}
	}
	for _, rc := range catalog.For(s.Category()).PrimaryRelations {
		n := m.CategoryFill(rc)
		if float64(n)/relation.SlotsPerCategory < r.config.PrimaryFillFloor {
			actions = append(actions, fmt.Sprintf("under-filled primary relation %s: %d/%d", rc, n, relation.SlotsPerCategory))
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "no redesign recommendations")
	}
	return actions
}

// #endregion redesign

// #region optimize
var errVetoed = errors.New("injection vetoed")

func (r *Runner) optimize(s Subject, delta *float64) ([]string, *float64, error) {
	cur := s.Current()
	if delta == nil {
		rate := state.EffectiveValueRate(cur, s.Category())
		if rate >= 0 {
			return []string{fmt.Sprintf("no correction needed: value rate %+.4f/day", rate)}, nil, nil
		}
		cadence := catalog.For(s.Category()).ReviewCadenceDays
		return []string{fmt.Sprintf("suggested correction %+.4f over %g days (decline %+.4f/day)", -rate*cadence, cadence, rate)}, nil, nil
	}

	d := *delta
	decision := r.gate.Evaluate(cur, d, s.Category(), s.Quarantined())
	if decision.Vetoed {
		return []string{decision.Reason}, nil, fmt.Errorf("%w: %s", errVetoed, decision.Reason)
	}

	actions := make([]string, 0, len(decision.Warnings)+1)
	for _, w := range decision.Warnings {
		actions = append(actions, "warning: "+w)
	}
	next, err := s.AppendValue(decision.ProposedValue)
	if err != nil {
		return append(actions, "injection failed"), nil, fmt.Errorf("inject delta: %w", err)
	}
	actions = append(actions, fmt.Sprintf("injected %+.4f: value %.4f -> %.4f", d, cur.Value, next.Value))
	return actions, &d, nil
}

// #endregion optimize

// #region eliminate
func (r *Runner) eliminate(s Subject) []string {
	cur := s.Current()
	if !state.IsCritical(cur, s.Category()) {
		if days, ok := state.TimeToCritical(cur, s.Category()); ok && days <= r.config.CriticalLookaheadDays {
			return []string{fmt.Sprintf("warning: critical state reachable in %.2f days", days)}
		}
		return []string{"no-op: entity not critical"}
	}

	var actions []string
	for _, slot := range s.Relations().Filled() {
		if slot.Interaction >= 0 {
			continue
		}
		if s.Unbind(slot.Key) {
			actions = append(actions, fmt.Sprintf("unbound %s -> %s (%.2f)", slot.Key, slot.TargetID, slot.Interaction))
		}
	}
	s.Quarantine()
	actions = append(actions, fmt.Sprintf("quarantined at value %.4f", cur.Value))
	r.logger.Info("entity quarantined", "entity", s.ID(), "value", cur.Value, "unbound", len(actions)-1)
	return actions
}

// #endregion eliminate
