package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/entity-dynamics/internal/config"
)

// #region fixture-types

// Scenario is the top-level structure of a replay fixture. Fixtures are
// YAML; JSON fixtures parse the same way.
type Scenario struct {
	Description string              `json:"description" yaml:"description"`
	Start       time.Time           `json:"start" yaml:"start"`
	Engine      config.EngineConfig `json:"engine" yaml:"engine"`
	Steps       []Step              `json:"steps" yaml:"steps"`
}

// Step is one scripted operation. Day is the offset from Start at which the
// step executes; the simulated clock never moves backwards.
type Step struct {
	Day    float64 `json:"day" yaml:"day"`
	Action string  `json:"action" yaml:"action"`

	Entity   string `json:"entity,omitempty" yaml:"entity,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	Relation string   `json:"relation,omitempty" yaml:"relation,omitempty"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
	Index    *int     `json:"index,omitempty" yaml:"index,omitempty"`
	Initial  *float64 `json:"initial,omitempty" yaml:"initial,omitempty"`

	Value       *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Interaction *float64 `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	Delta       *float64 `json:"delta,omitempty" yaml:"delta,omitempty"`
	Horizon     float64  `json:"horizon,omitempty" yaml:"horizon,omitempty"`

	Expect *Expect `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// Expect lists the checks made after a step. Unset fields are not checked.
type Expect struct {
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"` // substring of the step error
	Value         *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	DValueDt      *float64 `json:"d_value_dt,omitempty" yaml:"d_value_dt,omitempty"`
	Tolerance     float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Bound         *bool    `json:"bound,omitempty" yaml:"bound,omitempty"`
	Alerts        *int     `json:"alerts,omitempty" yaml:"alerts,omitempty"` // alerts emitted by this step
	Critical      *bool    `json:"critical,omitempty" yaml:"critical,omitempty"`
	Quarantined   *bool    `json:"quarantined,omitempty" yaml:"quarantined,omitempty"`
	Ran           *int     `json:"ran,omitempty" yaml:"ran,omitempty"`
	NewlyCritical []string `json:"newly_critical,omitempty" yaml:"newly_critical,omitempty"`
	FailedPhases  *int     `json:"failed_phases,omitempty" yaml:"failed_phases,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

var defaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a fixture file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes a fixture over the default engine settings.
func ParseScenario(data []byte) (*Scenario, error) {
	s := Scenario{Engine: config.Default().Engine}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Start.IsZero() {
		s.Start = defaultStart
	}
	prev := 0.0
	for i, st := range s.Steps {
		if st.Action == "" {
			return nil, fmt.Errorf("step %d: missing action", i)
		}
		if st.Day < prev {
			return nil, fmt.Errorf("step %d: day %g before previous step day %g", i, st.Day, prev)
		}
		prev = st.Day
	}
	return &s, nil
}

// #endregion fixture-loader
