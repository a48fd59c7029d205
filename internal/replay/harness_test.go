package replay

import (
	"strings"
	"testing"
)

// helper: parse an inline scenario or fail.
func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	return s
}

// 1. Cascade scenario: nation shock reaches a bonded individual.
func TestReplay_CascadeAlert(t *testing.T) {
	s := mustParse(t, `
steps:
  - {action: register, entity: E1, category: nation}
  - {action: register, entity: E2, category: individual}
  - {action: bind, entity: E1, relation: bond, target: E2, initial: 0.8, expect: {bound: true}}
  - {action: update, entity: E1, value: 0.5, expect: {alerts: 0}}
  - {day: 1, action: update, entity: E1, value: 0.45, expect: {d_value_dt: -0.05, alerts: 1}}
  - {day: 1, action: apply_cascade, entity: E2, expect: {value: -0.06}}
`)
	results, reg := Replay(s)
	for _, r := range results {
		if !r.Passed() {
			t.Errorf("step %d %s: %v", r.Index, r.Action, r.Failures)
		}
	}
	if got := len(reg.Alerts(0)); got != 1 {
		t.Fatalf("expected 1 alert, got %d", got)
	}
}

// 2. Unexpected errors fail the step but the run continues.
func TestReplay_ErrorsAreRecorded(t *testing.T) {
	s := mustParse(t, `
steps:
  - {action: update, entity: ghost, value: 0.1}
  - {action: register, entity: a, category: martian, expect: {error: unknown}}
  - {action: explode, expect: {error: unknown action}}
  - {action: register, entity: a, category: venture}
  - {action: register, entity: a, category: venture, expect: {error: duplicate}}
`)
	results, _ := Replay(s)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if results[0].Passed() || !strings.Contains(results[0].Err, "not found") {
		t.Fatalf("first step should fail with not found, got %+v", results[0])
	}
	for _, r := range results[1:] {
		if !r.Passed() {
			t.Errorf("step %d: %v", r.Index, r.Failures)
		}
	}
}

// 3. Failed expectations are reported, not swallowed.
func TestReplay_ExpectationMismatch(t *testing.T) {
	s := mustParse(t, `
steps:
  - {action: register, entity: a, category: individual}
  - {action: update, entity: a, value: 0.4, expect: {value: 0.9, critical: true}}
  - {action: sweep, expect: {ran: 5}}
  - {action: forecast, horizon: 30, expect: {newly_critical: [a]}}
  - {action: sweep, expect: {newly_critical: [a]}}
`)
	results, reg := Replay(s)
	if n := len(results[1].Failures); n != 2 {
		t.Fatalf("expected value and critical failures, got %v", results[1].Failures)
	}
	for _, i := range []int{2, 3, 4} {
		if results[i].Passed() {
			t.Errorf("step %d should fail", i)
		}
	}
	if sum := Summarize(results, reg); sum.Failed != 4 || sum.Passed != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

// 4. Loop injection through a scenario, including a vetoed delta.
func TestReplay_LoopInjection(t *testing.T) {
	s := mustParse(t, `
steps:
  - {action: register, entity: a, category: individual}
  - {action: update, entity: a, value: 0.2}
  - {day: 1, action: loop, entity: a, delta: 0.1, expect: {value: 0.3, failed_phases: 0}}
  - {day: 2, action: loop, entity: a, delta: .nan, expect: {value: 0.3, failed_phases: 1}}
  - {day: 2, action: unbind, entity: a, relation: bond, index: 0, expect: {bound: false}}
`)
	results, _ := Replay(s)
	for _, r := range results {
		if !r.Passed() {
			t.Errorf("step %d %s: %v (%s)", r.Index, r.Action, r.Failures, r.Err)
		}
	}
}
