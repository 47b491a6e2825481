package harness

import "github.com/roach88/derive/internal/doc"

// Step kinds recorded in the trace.
const (
	KindInitial = "initial"
	KindSet     = "set"
	KindPatch   = "patch"
	KindReset   = "reset"
)

// TraceEvent records the session state after one step.
type TraceEvent struct {
	Step    int           `json:"step"` // 0 is the initial model
	Kind    string        `json:"kind"`
	Model   doc.Value     `json:"model"`
	Dirty   doc.Value     `json:"dirty"` // tracking.ToValue of the dirty tree
	Changes []ChangeEvent `json:"changes,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ChangeEvent is a logged rule change. Previous and Next are nil when the
// value was absent.
type ChangeEvent struct {
	Path     string    `json:"path"`
	Previous doc.Value `json:"previous,omitempty"`
	Next     doc.Value `json:"next,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every expect clause, expected
	// error, and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, after the initial event.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the most recent trace event.
func (r *Result) Last() TraceEvent {
	if len(r.Trace) == 0 {
		return TraceEvent{}
	}
	return r.Trace[len(r.Trace)-1]
}

// LogCount is the number of changes logged across all steps.
func (r *Result) LogCount() int {
	n := 0
	for _, ev := range r.Trace {
		n += len(ev.Changes)
	}
	return n
}
