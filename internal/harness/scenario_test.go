package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/doc"
)

// writeScenario writes content next to a placeholder rules file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(`rules: shape: {}`), 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
rules: rules.cue
initial: {b: 1, a: [x, y]}
steps:
  - patch: {b: 2}
    expect: {b: 2}
  - reset: true
assertions:
  - type: dirty
    path: b
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "rules.cue"), scenario.Rules)
	assert.Len(t, scenario.Steps, 2)
	assert.True(t, scenario.Steps[1].Reset)
	assert.Len(t, scenario.Assertions, 1)

	initial, ok := scenario.Initial.Value.(*doc.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, initial.Keys(), "mapping order is kept")
	assert.Equal(t, doc.Int(2), scenario.Steps[0].Expect.Value.(*doc.Object).Lookup("b"))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown field",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
step:
  - reset: true
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			content: `
description: y
rules: rules.cue
initial: {}
steps: [{reset: true}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
rules: rules.cue
initial: {}
steps: [{reset: true}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing rules",
			content: `
name: x
description: y
initial: {}
steps: [{reset: true}]
`,
			wantErr: "rules path is required",
		},
		{
			name: "rules not found",
			content: `
name: x
description: y
rules: nope.cue
initial: {}
steps: [{reset: true}]
`,
			wantErr: "rules file not found",
		},
		{
			name: "missing initial",
			content: `
name: x
description: y
rules: rules.cue
steps: [{reset: true}]
`,
			wantErr: "initial document is required",
		},
		{
			name: "no steps",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
`,
			wantErr: "steps list is required",
		},
		{
			name: "two step kinds",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{set: {a: 1}, patch: {a: 2}}]
`,
			wantErr: "steps[0]: exactly one of set, patch, or reset",
		},
		{
			name: "empty step",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{settle: true}]
`,
			wantErr: "steps[0]: exactly one of set, patch, or reset",
		},
		{
			name: "patch not a mapping",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{patch: [1, 2]}]
`,
			wantErr: "patch must be a mapping",
		},
		{
			name: "expect with error",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{set: {}, expect: {}, error: BOOM}]
`,
			wantErr: "expect and error are exclusive",
		},
		{
			name: "unknown assertion",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{reset: true}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "model assertion without expect",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{reset: true}]
assertions: [{type: model, path: a}]
`,
			wantErr: "expect is required for model",
		},
		{
			name: "negative log count",
			content: `
name: x
description: y
rules: rules.cue
initial: {}
steps: [{reset: true}]
assertions: [{type: log_count, count: -1}]
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
