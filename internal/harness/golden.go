package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/derive/internal/doc"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toValue builds the snapshot document. Absent fields are left out so the
// canonical form has no nulls that were not in the model.
func (s *TraceSnapshot) toValue() doc.Value {
	events := make([]doc.Value, len(s.Trace))
	for i, event := range s.Trace {
		pairs := []doc.Pair{
			doc.P("step", doc.Int(event.Step)),
			doc.P("kind", doc.String(event.Kind)),
			doc.P("model", event.Model),
			doc.P("dirty", event.Dirty),
		}
		if len(event.Changes) > 0 {
			changes := make([]doc.Value, len(event.Changes))
			for j, c := range event.Changes {
				changes[j] = doc.NewObject(
					doc.P("path", doc.String(c.Path)),
					doc.P("previous", c.Previous),
					doc.P("next", c.Next),
				)
			}
			pairs = append(pairs, doc.P("changes", doc.NewArray(changes...)))
		}
		if event.Error != "" {
			pairs = append(pairs, doc.P("error", doc.String(event.Error)))
		}
		events[i] = doc.NewObject(pairs...)
	}

	return doc.NewObject(
		doc.P("scenario_name", doc.String(s.ScenarioName)),
		doc.P("trace", doc.NewArray(events...)),
	)
}

// MarshalSnapshot renders the snapshot as canonical JSON with a trailing
// newline, the golden file format.
func MarshalSnapshot(s *TraceSnapshot) ([]byte, error) {
	data, err := doc.MarshalCanonical(s.toValue())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(&TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
