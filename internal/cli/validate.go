package cli

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/rules"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec.cue|dir>",
		Short: "Check a rule spec without applying it",
		Long: `Compile a rule spec and flag constructs that are probably mistakes.

Empty shapes, chains and predicate combinators fail validation, as do
scripts that read no input and min/max bounds that cross. Fields of one
shape that read each other are reported as warnings: a single apply does
not settle them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	spec, err := LoadRules(path)
	if err != nil {
		return failLoad(f, err)
	}
	f.VerboseLog("Found %d CUE file(s) in %s", spec.FileCount, path)

	var result ValidationResult
	result.Errors = compiler.Validate(spec.Value)
	if !spec.Value.LookupPath(cue.ParsePath(compiler.RulesField)).Exists() {
		// Validate already reported the missing root.
		return outputValidate(f, result)
	}

	discard := rules.LoggerFunc(func(rules.Change) {})
	if _, err := compiler.Compile(spec.Value, compiler.WithLogger(discard)); err != nil {
		result.Errors = append(result.Errors, compileValidationError(err))
	}

	warnings, err := compiler.AnalyzeCycles(spec.Value)
	if err != nil {
		f.VerboseLog("cycle analysis skipped: %v", err)
	}
	result.Warnings = warnings
	return outputValidate(f, result)
}

func outputValidate(f *OutputFormatter, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0
	if f.Format == "json" {
		return outputValidateJSON(f, result)
	}
	return outputValidateText(f, result)
}

// compileValidationError converts a compile failure into a validation
// error carrying the offending line.
func compileValidationError(err error) compiler.ValidationError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		ve := compiler.ValidationError{Field: cErr.Field, Message: cErr.Message, Code: ErrCodeCompile}
		if cErr.Pos.IsValid() {
			ve.Line = cErr.Pos.Line()
		}
		return ve
	}
	return compiler.ValidationError{Field: compiler.RulesField, Message: err.Error(), Code: ErrCodeCompile}
}

func outputValidateJSON(f *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return f.Success(result)
	}
	resp := CLIResponse{
		Status: "error",
		Data:   result,
		Error: &CLIError{
			Code:    ErrCodeLintFailed,
			Message: result.Errors[0].Message,
		},
	}
	if err := f.encode(resp); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func outputValidateText(f *OutputFormatter, result ValidationResult) error {
	w := f.Writer
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "! %s: %s (%s)\n", warn.Shape, warn.Message, strings.Join(warn.Path, " -> "))
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ Rule spec valid")
		return nil
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
