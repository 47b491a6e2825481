package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/rules"
	"github.com/roach88/derive/internal/session"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Rules     string
	Current   string
	Previous  string
	Log       bool
	Settle    bool
	MaxPasses int
}

// ApplyResult is the JSON payload of apply.
type ApplyResult struct {
	Document json.RawMessage `json:"document"`
	Changes  []ChangeOutput  `json:"changes,omitempty"`
}

// ChangeOutput is one logged change. Absent values are omitted.
type ChangeOutput struct {
	Path     string          `json:"path"`
	Previous json.RawMessage `json:"previous,omitempty"`
	Next     json.RawMessage `json:"next,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply --rules <spec.cue> --current <doc.json>",
		Short: "Apply a rule spec to a document",
		Long: `Apply a rule spec to the current document and print the result.

The previous document decides which rules fire: a when/then node runs only
if the paths it watches differ between the two. Without --previous every
rule fires. Changes reported by nodes marked log: true are printed; --log
reports every change.

With --settle the rules are reapplied until the document stops changing.
Array elements without an _uid are then tagged with one.

Documents ending in .yaml or .yml are read as YAML; "-" reads stdin.

Examples:
  derive apply --rules order.cue --current order.json --previous old.json
  derive apply --rules ./rules --current - --log --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Rules, "rules", "r", "", "rule spec file or directory")
	cmd.Flags().StringVarP(&opts.Current, "current", "c", "", "current document")
	cmd.Flags().StringVarP(&opts.Previous, "previous", "p", "", "previous document")
	cmd.Flags().BoolVar(&opts.Log, "log", false, "report every change")
	cmd.Flags().BoolVar(&opts.Settle, "settle", false, "reapply until the document stops changing")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", session.DefaultMaxPasses, "pass limit for --settle")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("current")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Current == "-" && opts.Previous == "-" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--current and --previous cannot both read stdin", nil)
	}

	spec, err := LoadRules(opts.Rules)
	if err != nil {
		return failLoad(f, err)
	}
	current, err := LoadDocument(opts.Current, cmd.InOrStdin())
	if err != nil {
		return failLoad(f, err)
	}
	var previous doc.Value
	if opts.Previous != "" {
		if previous, err = LoadDocument(opts.Previous, cmd.InOrStdin()); err != nil {
			return failLoad(f, err)
		}
	}

	// Nodes marked log: true and --log report to separate collectors, so
	// a change is never listed twice.
	var marked, all []rules.Change
	rule, err := compiler.Compile(spec.Value, compiler.WithLogger(collect(&marked)))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, "rules do not compile", err)
	}
	f.VerboseLog("Compiled %d CUE file(s) from %s", spec.FileCount, opts.Rules)

	var result doc.Value
	if opts.Settle {
		sopts := []session.Option{session.WithMaxPasses(opts.MaxPasses)}
		if opts.Log {
			sopts = append(sopts, session.WithLogger(collect(&all)))
		}
		s := session.New(rule, previous, sopts...)
		result, _, err = s.Settle(current)
	} else {
		if opts.Log {
			rule = rules.LogTo(collect(&all), rule)
		}
		result, err = rules.Apply(rule, current, previous)
	}
	if err != nil {
		if session.IsPassesExceeded(err) {
			return f.Fail(ExitFailure, ErrCodeApply, "document did not settle", err)
		}
		return f.Fail(ExitFailure, ErrCodeApply, "applying rules failed", err)
	}

	changes := marked
	if opts.Log {
		changes = all
	}
	slog.Debug("rules applied", "rules", opts.Rules, "changes", len(changes), "unchanged", doc.Same(result, current))

	return outputApply(f, result, changes)
}

// collect returns a logger appending to dst.
func collect(dst *[]rules.Change) rules.Logger {
	return rules.LoggerFunc(func(c rules.Change) {
		*dst = append(*dst, c)
	})
}

func outputApply(f *OutputFormatter, result doc.Value, changes []rules.Change) error {
	out, err := rawDocument(result)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "rendering result", err)
	}

	if f.Format == "json" {
		payload := ApplyResult{Document: out}
		for _, c := range changes {
			co := ChangeOutput{Path: c.PathString()}
			if c.Previous != nil {
				if co.Previous, err = rawDocument(c.Previous); err != nil {
					return err
				}
			}
			if c.Next != nil {
				if co.Next, err = rawDocument(c.Next); err != nil {
					return err
				}
			}
			payload.Changes = append(payload.Changes, co)
		}
		return f.Success(payload)
	}

	fmt.Fprintln(f.Writer, string(out))
	w := f.GetErrWriter()
	for _, c := range changes {
		fmt.Fprintf(w, "~ %s: %s -> %s\n", displayPath(c.PathString()), displayValue(c.Previous), displayValue(c.Next))
	}
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

func displayValue(v doc.Value) string {
	if v == nil {
		return "(absent)"
	}
	data, err := doc.Marshal(v)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}

// failLoad reports a load error with its own code.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), msg)
		}
		return f.Fail(ExitCommandError, loadErr.Code, msg, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, "loading input failed", err)
}
