package rules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/derive/internal/doc"
)

// Change describes one value replaced by a rule.
type Change struct {
	// Path locates the changed value from the root passed to Apply.
	// Array elements appear as their identity token, or their index when
	// untagged. The root is the empty path.
	Path []string

	// Previous is the value before the rule ran; nil when absent.
	Previous doc.Value

	// Next is the value the rule produced; nil when the field was removed.
	Next doc.Value
}

// PathString renders Path in dotted form.
func (c Change) PathString() string {
	return strings.Join(c.Path, ".")
}

// Logger receives changes from LogTo rules.
//
// There is no default logger. Whoever builds the rule tree decides where
// changes go.
type Logger interface {
	Log(c Change)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(c Change)

// Log implements Logger.
func (f LoggerFunc) Log(c Change) {
	f(c)
}

// SlogLogger reports changes as structured slog records at Debug level.
func SlogLogger(l *slog.Logger) Logger {
	return slogLogger{logger: l, level: slog.LevelDebug}
}

// SlogLoggerAt reports changes at the given level.
func SlogLoggerAt(l *slog.Logger, level slog.Level) Logger {
	return slogLogger{logger: l, level: level}
}

type slogLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (s slogLogger) Log(c Change) {
	s.logger.Log(context.Background(), s.level, "rule changed value",
		"path", c.PathString(),
		"previous", render(c.Previous),
		"next", render(c.Next),
	)
}

func render(v doc.Value) string {
	if v == nil {
		return "<absent>"
	}
	data, err := doc.Marshal(v)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}
