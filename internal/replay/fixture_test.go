package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// #region fixture-tests

// TestFixture_VentureDecline runs the checked-in scenario end to end. If
// catalog constants or engine defaults drift, a step expectation fails here.
func TestFixture_VentureDecline(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "venture_decline.yaml"))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if !s.Start.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", s.Start)
	}

	results, reg := Replay(s)
	if len(results) != len(s.Steps) {
		t.Fatalf("expected %d results, got %d", len(s.Steps), len(results))
	}
	for _, r := range results {
		if !r.Passed() {
			t.Errorf("step %d (%s %s): %v", r.Index, r.Action, r.Entity, r.Failures)
		}
	}

	sum := Summarize(results, reg)
	if sum.Failed != 0 || sum.Passed != len(results) {
		t.Fatalf("summary %+v", sum)
	}
	if sum.Final.Entities != 2 || sum.Final.LoopSweeps != 2 || sum.Final.CascadeAlerts != 2 {
		t.Fatalf("unexpected final state %+v", sum.Final)
	}
}

func TestParseScenarioJSON(t *testing.T) {
	data := []byte(`{
		"description": "json fixture",
		"engine": {"shock_threshold": -0.5},
		"steps": [
			{"day": 0, "action": "register", "entity": "a", "category": "nation"},
			{"day": 1, "action": "update", "entity": "a", "value": 0.2}
		]
	}`)
	s, err := ParseScenario(data)
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if s.Engine.ShockThreshold != -0.5 || s.Engine.HistoryCapacity != 90 {
		t.Fatalf("engine overrides should merge with defaults, got %+v", s.Engine)
	}
	if !s.Start.Equal(defaultStart) {
		t.Fatalf("missing start should default, got %v", s.Start)
	}
	if len(s.Steps) != 2 || *s.Steps[1].Value != 0.2 {
		t.Fatalf("unexpected steps %+v", s.Steps)
	}
}

func TestParseScenarioRejectsBadSteps(t *testing.T) {
	cases := map[string]string{
		"missing action": "steps:\n  - {day: 0, entity: a}\n",
		"time goes back": "steps:\n  - {day: 2, action: sweep}\n  - {day: 1, action: sweep}\n",
		"malformed yaml": "steps: [",
	}
	for name, doc := range cases {
		if _, err := ParseScenario([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read scenario") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadScenarioFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	os.WriteFile(path, []byte("description: tmp\nsteps:\n  - {action: sweep}\n"), 0600)
	s, err := LoadScenario(path)
	if err != nil || s.Description != "tmp" || len(s.Steps) != 1 {
		t.Fatalf("unexpected scenario %+v err=%v", s, err)
	}
}

// #endregion fixture-tests
