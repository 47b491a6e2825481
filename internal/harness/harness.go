package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
	"github.com/roach88/derive/internal/rules"
	"github.com/roach88/derive/internal/session"
	"github.com/roach88/derive/internal/testutil"
	"github.com/roach88/derive/internal/tracking"
)

// DefaultTokenPrefix prefixes identity tokens when a scenario sets none.
const DefaultTokenPrefix = "e"

// Harness is the test execution engine.
// It runs one scenario against a fresh session with sequential identity
// tokens, so traces are identical across runs.
type Harness struct {
	session *session.Session
	changes *testutil.Recorder[rules.Change]
	logger  *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for step progress. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// The rule spec is compiled with a recording logger, so nodes marked
// log: true feed the trace. Failed expectations are collected in the
// result; an error is returned only when the scenario cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	changes := &testutil.Recorder[rules.Change]{}
	rule, err := compiler.CompileFile(scenario.Rules, compiler.WithLogger(changes))
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	prefix := scenario.TokenPrefix
	if prefix == "" {
		prefix = DefaultTokenPrefix
	}
	ids := identity.NewManager(identity.WithGenerator(identity.NewSequenceGenerator(prefix)))

	h := &Harness{
		session: session.New(rule, scenario.Initial.Value, session.WithIdentityManager(ids)),
		changes: changes,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	result := NewResult()
	result.Trace = append(result.Trace, TraceEvent{
		Kind:  KindInitial,
		Model: h.session.Model(),
		Dirty: tracking.ToValue(h.session.Dirty()),
	})

	for i, step := range scenario.Steps {
		if err := h.executeStep(i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, h.session.Dirty()) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one step and appends its trace event.
func (h *Harness) executeStep(n int, step Step, result *Result) error {
	h.changes.Reset()

	if step.Reset {
		model := h.session.Reset(nil)
		result.Trace = append(result.Trace, TraceEvent{
			Step:  n,
			Kind:  KindReset,
			Model: model,
			Dirty: tracking.ToValue(h.session.Dirty()),
		})
		h.logger.Info("step completed", "step", n, "kind", KindReset)
		return nil
	}

	kind := KindSet
	var next doc.Value
	if step.Set != nil {
		next = step.Set.Value
	} else {
		kind = KindPatch
		patched, err := applyPatch(h.session.Model(), step.Patch.Value.(*doc.Object))
		if err != nil {
			return err
		}
		next = patched
	}

	update := h.session.Update
	if step.Settle {
		update = h.session.Settle
	}
	_, _, updateErr := update(next)

	event := TraceEvent{
		Step:    n,
		Kind:    kind,
		Model:   h.session.Model(),
		Dirty:   tracking.ToValue(h.session.Dirty()),
		Changes: changeEvents(h.changes.Entries()),
	}
	if updateErr != nil {
		event.Error = updateErr.Error()
	}
	result.Trace = append(result.Trace, event)

	switch {
	case updateErr != nil:
		if step.Error == "" {
			result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %v", n-1, updateErr))
		} else if !strings.Contains(updateErr.Error(), step.Error) {
			result.AddError(fmt.Sprintf("steps[%d]: error %q does not contain %q", n-1, updateErr.Error(), step.Error))
		}
	case step.Error != "":
		result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, step succeeded", n-1, step.Error))
	case step.Expect != nil:
		if diff := matchSubset(step.Expect.Value, event.Model); diff != "" {
			result.AddError((&AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("steps[%d] model to match", n-1),
				Actual:   "mismatch (-want +got):\n" + diff,
				Trace:    result.Trace,
			}).Error())
		}
	}

	h.logger.Info("step completed",
		"step", n,
		"kind", kind,
		"changes", len(event.Changes),
		"error", event.Error,
	)
	return nil
}

func changeEvents(changes []rules.Change) []ChangeEvent {
	if len(changes) == 0 {
		return nil
	}
	out := make([]ChangeEvent, len(changes))
	for i, c := range changes {
		out[i] = ChangeEvent{
			Path:     c.PathString(),
			Previous: c.Previous,
			Next:     c.Next,
		}
	}
	return out
}
