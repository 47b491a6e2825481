package testutil

import "sync"

// FixedTokens returns predetermined identity tokens in order.
//
// It satisfies identity.TokenGenerator, which lets tests predict exactly
// which token each newly inserted element receives.
//
// Thread-safety: FixedTokens is safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
//
//	gen := NewFixedTokens("u1", "u2")
//	gen.Generate() // "u1"
//	gen.Generate() // "u2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics if all tokens have been consumed, so a test that tags more
// elements than it expected fails loudly.
func (g *FixedTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	tok := g.tokens[g.idx]
	g.idx++
	return tok
}

// Issued returns how many tokens have been handed out.
func (g *FixedTokens) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx
}
