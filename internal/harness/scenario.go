package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/derive/internal/doc"
)

// Scenario drives a rule tree through a sequence of model updates and
// asserts on the resulting models, dirty trees, and logged changes.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the CUE rule spec to compile.
	// LoadScenario resolves it relative to the scenario file.
	Rules string `yaml:"rules"`

	// TokenPrefix prefixes the identity tokens issued to array elements.
	// Default: "e", so elements are tagged e1, e2, ...
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// Initial is the first model. Its array elements are tagged before any
	// step runs and it becomes the tracking baseline.
	Initial Document `yaml:"initial"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the state after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step produces the next document and feeds it to the session.
// Exactly one of Set, Patch, or Reset must be given.
type Step struct {
	// Set replaces the whole document.
	Set *Document `yaml:"set,omitempty"`

	// Patch maps dotted paths to new values, applied in order to the
	// current model. Array elements are addressed by index. A null value
	// removes the key.
	Patch *Document `yaml:"patch,omitempty"`

	// Reset re-baselines the session on the current model and clears
	// dirtiness.
	Reset bool `yaml:"reset,omitempty"`

	// Settle reapplies the rules until the model stops changing.
	Settle bool `yaml:"settle,omitempty"`

	// Expect is matched against the resulting model as a subset:
	// only the keys it names are compared.
	Expect *Document `yaml:"expect,omitempty"`

	// Error, when set, expects the step to fail with an error whose
	// message contains it. The session keeps its previous model.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final session state.
type Assertion struct {
	// Type selects the check: dirty, clean, log_count, or model.
	Type string `yaml:"type"`

	// Path is a dotted path. For dirty and clean, array elements are
	// addressed by identity token; for model, by index.
	Path string `yaml:"path,omitempty"`

	// Count is the expected number of logged changes (log_count).
	Count int `yaml:"count,omitempty"`

	// Expect is matched as a subset against the value at Path (model).
	Expect *Document `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertDirty    = "dirty"
	AssertClean    = "clean"
	AssertLogCount = "log_count"
	AssertModel    = "model"
)

// Document is a YAML value decoded into the document model.
// Mapping order is kept.
type Document struct {
	Value doc.Value
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	v, err := doc.FromYAML(node)
	if err != nil {
		return err
	}
	d.Value = v
	return nil
}

// Doc wraps a value for building scenarios in code.
func Doc(v doc.Value) *Document {
	return &Document{Value: v}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative rules path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Rules == "" {
		return fmt.Errorf("rules path is required")
	}
	if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
		return fmt.Errorf("rules file not found: %s", s.Rules)
	}

	if s.Initial.Value == nil {
		return fmt.Errorf("initial document is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	given := 0
	if s.Set != nil {
		given++
	}
	if s.Patch != nil {
		given++
		if _, ok := s.Patch.Value.(*doc.Object); !ok {
			return fmt.Errorf("steps[%d]: patch must be a mapping of paths to values", index)
		}
	}
	if s.Reset {
		given++
	}
	if given != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, patch, or reset is required", index)
	}
	if s.Reset && (s.Settle || s.Error != "") {
		return fmt.Errorf("steps[%d]: reset takes no settle or error", index)
	}
	if s.Error != "" && s.Expect != nil {
		return fmt.Errorf("steps[%d]: expect and error are exclusive", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDirty, AssertClean:
		// The root path is allowed: it asks about the whole model.
	case AssertLogCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
	case AssertModel:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for model", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
