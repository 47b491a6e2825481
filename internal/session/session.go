package session

import (
	"log/slog"
	"sync"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
	"github.com/roach88/derive/internal/rules"
	"github.com/roach88/derive/internal/tracking"
)

// DefaultMaxPasses bounds Settle.
const DefaultMaxPasses = 100

// Session applies a rule tree to successive versions of a model.
type Session struct {
	mu        sync.Mutex
	rule      rules.Rule
	ids       *identity.Manager
	logger    rules.Logger
	maxPasses int

	model doc.Value
	dirty tracking.Info
}

// Option configures a Session.
type Option func(*Session)

// WithLogger reports every change made by the rule tree to l.
// The rule tree is wrapped once, when the session is created.
func WithLogger(l rules.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithIdentityManager sets the manager that tags array elements.
// Default: a UUIDv7-backed manager.
func WithIdentityManager(m *identity.Manager) Option {
	return func(s *Session) {
		s.ids = m
	}
}

// WithMaxPasses sets how many applications Settle may run.
//
// Default: 100 (DefaultMaxPasses)
func WithMaxPasses(n int) Option {
	return func(s *Session) {
		s.maxPasses = n
	}
}

// New starts a session on initial. Array elements of initial are tagged
// and the tagged model becomes the baseline.
func New(rule rules.Rule, initial doc.Value, opts ...Option) *Session {
	s := &Session{
		rule:      rule,
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = identity.NewManager()
	}
	if s.logger != nil {
		s.rule = rules.LogTo(s.logger, s.rule)
	}
	s.model = s.ids.Ensure(initial)
	s.dirty = tracking.Create(s.model)
	return s
}

// Model returns the current model.
func (s *Session) Model() doc.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Dirty returns the accumulated dirty tree.
func (s *Session) Dirty() tracking.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Update applies the rule tree once to next, with the current model as the
// previous document, and makes the result the current model.
//
// When next is the current model itself nothing is applied and the current
// model is returned. On error the session is left unchanged.
func (s *Session) Update(next doc.Value) (doc.Value, tracking.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagged := s.ids.Ensure(next)
	if doc.Same(tagged, s.model) {
		return s.model, s.dirty, nil
	}
	result, err := rules.Apply(s.rule, tagged, s.model)
	if err != nil {
		return nil, nil, err
	}
	s.commit(result)
	slog.Debug("session updated", "passes", 1)
	return s.model, s.dirty, nil
}

// Settle is Update repeated until the rule tree stops changing the model.
// Each pass uses the previous pass's input as its previous document, so
// fields computed from each other converge.
//
// Returns a *PassesExceededError if the model still changes after the
// configured number of passes; the session is then left unchanged.
func (s *Session) Settle(next doc.Value) (doc.Value, tracking.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.ids.Ensure(next)
	if doc.Same(cur, s.model) {
		return s.model, s.dirty, nil
	}

	quota := newPassQuota(s.maxPasses)
	prev := s.model
	for {
		if err := quota.Check(); err != nil {
			return nil, nil, err
		}
		out, err := rules.Apply(s.rule, cur, prev)
		if err != nil {
			return nil, nil, err
		}
		if doc.Same(out, cur) {
			break
		}
		prev, cur = cur, out
	}

	s.commit(cur)
	slog.Debug("session settled", "passes", quota.Current())
	return s.model, s.dirty, nil
}

// commit must be called with mu held.
func (s *Session) commit(result doc.Value) {
	s.dirty = tracking.DetectChanges(result, s.model, s.dirty)
	s.model = result
}

// Reset re-baselines the session on model and clears dirtiness. A nil
// model keeps the current one.
func (s *Session) Reset(model doc.Value) doc.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	if model != nil {
		s.model = s.ids.Ensure(model)
	}
	s.dirty = tracking.Create(s.model)
	return s.model
}
