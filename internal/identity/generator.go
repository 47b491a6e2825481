package identity

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenGenerator produces identity tokens for array elements.
// Implemented by UUIDv7Generator (production) and SequenceGenerator
// (deterministic runs and golden files).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
//
// UUIDv7 embeds a millisecond timestamp in the most significant bits and
// random bits below it, so tokens are monotonic across calls and collision
// resistant across managers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator issues prefix+1, prefix+2, ... from an atomic counter.
//
// Two generators with the same prefix will collide; use one per tracking
// session, or distinct prefixes.
type SequenceGenerator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequenceGenerator creates a generator whose first token is prefix+"1".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// NewSequenceGeneratorAt resumes a sequence after start, e.g. when
// continuing a session whose documents already carry tokens up to start.
func NewSequenceGeneratorAt(prefix string, start int64) *SequenceGenerator {
	g := &SequenceGenerator{prefix: prefix}
	g.seq.Store(start)
	return g
}

// Generate returns the next token.
func (g *SequenceGenerator) Generate() string {
	return g.prefix + strconv.FormatInt(g.seq.Add(1), 10)
}

// Current returns the last issued sequence number without advancing.
func (g *SequenceGenerator) Current() int64 {
	return g.seq.Load()
}
