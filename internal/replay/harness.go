package replay

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
)

// #region types
// StepResult is the outcome of one scripted step.
type StepResult struct {
	Index    int       `json:"index"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity,omitempty"`
	At       time.Time `json:"at"`
	Detail   string    `json:"detail"`
	Err      string    `json:"error,omitempty"`
	Failures []string  `json:"failures,omitempty"`
}

// Passed reports whether every expectation held.
func (r StepResult) Passed() bool { return len(r.Failures) == 0 }

// Summary aggregates a replay run.
type Summary struct {
	TotalSteps int              `json:"total_steps"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Final      registry.Summary `json:"final"`
}

// ErrUnknownAction marks a step whose action is not recognised.
var ErrUnknownAction = errors.New("unknown action")

const defaultTolerance = 1e-9

// simClock is the scenario's simulated time source.
type simClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// #endregion types

// #region replay
// Replay runs every step against a fresh registry on a simulated clock.
// Step errors are recorded, never fatal. Extra options (sink, recorder,
// logger) are passed to the registry; WithClock is always overridden.
func Replay(s *Scenario, opts ...registry.Option) ([]StepResult, *registry.Registry) {
	clk := &simClock{t: s.Start}
	opts = append(opts, registry.WithClock(clk.Now))
	reg := registry.New(s.Engine.Registry(), opts...)

	results := make([]StepResult, 0, len(s.Steps))
	for i, st := range s.Steps {
		at := s.Start.Add(time.Duration(st.Day * float64(24*time.Hour)))
		clk.set(at)

		alertsBefore := reg.GlobalState().CascadeAlerts
		res := StepResult{Index: i, Action: st.Action, Entity: st.Entity, At: at}
		obs, err := execute(reg, st)
		res.Detail = obs.detail
		if err != nil {
			res.Err = err.Error()
		}
		obs.alerts = int(reg.GlobalState().CascadeAlerts - alertsBefore)
		if st.Expect != nil {
			res.Failures = check(reg, st, *st.Expect, obs, err)
		} else if err != nil {
			res.Failures = []string{"unexpected error: " + err.Error()}
		}
		results = append(results, res)
	}
	return results, reg
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult, reg *registry.Registry) Summary {
	s := Summary{TotalSteps: len(results), Final: reg.GlobalState()}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// #endregion replay

// #region execute
// observed carries the values a step produced for expectation checks.
type observed struct {
	detail        string
	bound         *bool
	alerts        int
	ran           *int
	failedPhases  *int
	newlyCritical []string
	forecast      bool
}

func execute(reg *registry.Registry, st Step) (observed, error) {
	var obs observed
	switch st.Action {
	case "register":
		c, err := catalog.Parse(st.Category)
		if err != nil {
			return obs, err
		}
		h, err := reg.Register(st.Entity, st.Name, c)
		if err != nil {
			return obs, err
		}
		obs.detail = fmt.Sprintf("registered %s (%s)", h.ID, h.Category)

	case "bind":
		rc, err := catalog.ParseRelation(st.Relation)
		if err != nil {
			return obs, err
		}
		key, ok, err := reg.Bind(st.Entity, rc, st.Target, st.Initial)
		if err != nil {
			return obs, err
		}
		obs.bound = &ok
		if ok {
			obs.detail = fmt.Sprintf("bound %s -> %s", key, st.Target)
		} else {
			obs.detail = fmt.Sprintf("%s full", rc)
		}

	case "unbind":
		rc, err := catalog.ParseRelation(st.Relation)
		if err != nil {
			return obs, err
		}
		if st.Index == nil {
			return obs, fmt.Errorf("unbind: index required")
		}
		ok, err := reg.Unbind(st.Entity, relation.SlotKey{Category: rc, Index: *st.Index})
		if err != nil {
			return obs, err
		}
		obs.bound = &ok
		obs.detail = fmt.Sprintf("unbound=%v", ok)

	case "update":
		if st.Value == nil {
			return obs, fmt.Errorf("update: value required")
		}
		v, err := reg.Update(st.Entity, *st.Value, st.Interaction)
		if err != nil {
			return obs, err
		}
		obs.detail = fmt.Sprintf("value=%.4f d_value_dt=%+.4f", v.Value, v.DValueDt)

	case "loop":
		execs, err := reg.RunLoop(st.Entity, st.Delta)
		if err != nil {
			return obs, err
		}
		failed := 0
		for _, e := range execs {
			if !e.Success {
				failed++
			}
		}
		obs.failedPhases = &failed
		obs.detail = fmt.Sprintf("%d phases, %d failed", len(execs), failed)

	case "sweep":
		res := reg.RunAllLoops()
		obs.ran = &res.Ran
		obs.detail = fmt.Sprintf("sweep %d: ran=%d skipped=%d failed=%d", res.Sweep, res.Ran, res.Skipped, res.Failed)

	case "forecast":
		f := reg.SimulateFuture(st.Horizon)
		obs.forecast = true
		obs.newlyCritical = f.NewlyCritical
		obs.detail = fmt.Sprintf("%g days: newly critical %v", st.Horizon, f.NewlyCritical)

	case "apply_cascade":
		alerts := reg.Alerts(1)
		if len(alerts) == 0 {
			return obs, fmt.Errorf("apply_cascade: %w", registry.ErrAlertNotFound)
		}
		applied, err := reg.ApplyCascade(alerts[0].ID)
		obs.detail = fmt.Sprintf("applied %d suggestions", len(applied))
		if err != nil {
			return obs, err
		}

	case "release":
		was, err := reg.ReleaseQuarantine(st.Entity)
		if err != nil {
			return obs, err
		}
		obs.detail = fmt.Sprintf("released=%v", was)

	default:
		return obs, fmt.Errorf("%w: %q", ErrUnknownAction, st.Action)
	}
	return obs, nil
}

// #endregion execute

// #region check
func check(reg *registry.Registry, st Step, want Expect, obs observed, stepErr error) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if want.Error != "" {
		if stepErr == nil {
			fail("expected error containing %q, got none", want.Error)
		} else if !strings.Contains(stepErr.Error(), want.Error) {
			fail("expected error containing %q, got %q", want.Error, stepErr.Error())
		}
		return failures
	}
	if stepErr != nil {
		fail("unexpected error: %v", stepErr)
		return failures
	}

	tol := want.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	if want.Value != nil || want.DValueDt != nil || want.Critical != nil || want.Quarantined != nil {
		snap, err := reg.Entity(st.Entity)
		if err != nil {
			fail("entity %s: %v", st.Entity, err)
			return failures
		}
		if want.Value != nil && math.Abs(snap.Current.Value-*want.Value) > tol {
			fail("value = %.6f, want %.6f", snap.Current.Value, *want.Value)
		}
		if want.DValueDt != nil && math.Abs(snap.Current.DValueDt-*want.DValueDt) > tol {
			fail("d_value_dt = %.6f, want %.6f", snap.Current.DValueDt, *want.DValueDt)
		}
		if want.Critical != nil && snap.Critical != *want.Critical {
			fail("critical = %v, want %v", snap.Critical, *want.Critical)
		}
		if want.Quarantined != nil && snap.Quarantined != *want.Quarantined {
			fail("quarantined = %v, want %v", snap.Quarantined, *want.Quarantined)
		}
	}
	if want.Bound != nil && (obs.bound == nil || *obs.bound != *want.Bound) {
		fail("bound = %v, want %v", deref(obs.bound), *want.Bound)
	}
	if want.Alerts != nil && obs.alerts != *want.Alerts {
		fail("alerts = %d, want %d", obs.alerts, *want.Alerts)
	}
	if want.Ran != nil && (obs.ran == nil || *obs.ran != *want.Ran) {
		fail("ran = %v, want %d", deref(obs.ran), *want.Ran)
	}
	if want.FailedPhases != nil && (obs.failedPhases == nil || *obs.failedPhases != *want.FailedPhases) {
		fail("failed phases = %v, want %d", deref(obs.failedPhases), *want.FailedPhases)
	}
	if want.NewlyCritical != nil {
		if !obs.forecast {
			fail("newly_critical checked on a %s step", st.Action)
		} else if strings.Join(obs.newlyCritical, ",") != strings.Join(want.NewlyCritical, ",") {
			fail("newly critical = %v, want %v", obs.newlyCritical, want.NewlyCritical)
		}
	}
	return failures
}

func deref[T any](p *T) any {
	if p == nil {
		return "<unset>"
	}
	return *p
}

// #endregion check
