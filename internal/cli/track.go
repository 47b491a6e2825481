package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/tracking"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	Baseline string
	Current  string
	Paths    []string
}

// TrackResult is the JSON payload of track.
type TrackResult struct {
	Dirty json.RawMessage `json:"dirty"`
	Paths map[string]bool `json:"paths,omitempty"` // path -> dirty
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track --baseline <doc.json> --current <doc.json>",
		Short: "Report which paths of a document differ from a baseline",
		Long: `Compare a document against a baseline and print the dirty tree.

Records are compared field by field. Array elements are paired by their
_uid; elements without one count as new unless they are scalars, which
pair by position.

With --path, only the named dotted paths are reported. Array elements in a
path are addressed by _uid.

Examples:
  derive track --baseline saved.json --current edited.json
  derive track --baseline saved.json --current edited.json --path person.name`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Baseline, "baseline", "b", "", "baseline document")
	cmd.Flags().StringVarP(&opts.Current, "current", "c", "", "current document")
	cmd.Flags().StringArrayVar(&opts.Paths, "path", nil, "dotted path to report (repeatable)")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("current")

	return cmd
}

func runTrack(opts *TrackOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Baseline == "-" && opts.Current == "-" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--baseline and --current cannot both read stdin", nil)
	}

	baseline, err := LoadDocument(opts.Baseline, cmd.InOrStdin())
	if err != nil {
		return failLoad(f, err)
	}
	current, err := LoadDocument(opts.Current, cmd.InOrStdin())
	if err != nil {
		return failLoad(f, err)
	}

	dirty := tracking.DetectChanges(current, baseline, tracking.Create(baseline))
	slog.Debug("changes detected", "dirty", tracking.Any(dirty))

	if len(opts.Paths) > 0 {
		return outputTrackPaths(f, dirty, opts.Paths)
	}

	out, err := rawDocument(tracking.ToValue(dirty))
	if err != nil {
		return err
	}
	if f.Format == "json" {
		return f.Success(TrackResult{Dirty: out})
	}
	fmt.Fprintln(f.Writer, string(out))
	return nil
}

func outputTrackPaths(f *OutputFormatter, dirty tracking.Info, paths []string) error {
	result := make(map[string]bool, len(paths))
	for _, p := range paths {
		result[p] = tracking.IsDirty(dirty, doc.ParsePath(p)...)
	}

	if f.Format == "json" {
		out, err := rawDocument(tracking.ToValue(dirty))
		if err != nil {
			return err
		}
		return f.Success(TrackResult{Dirty: out, Paths: result})
	}

	for _, p := range paths {
		state := "clean"
		if result[p] {
			state = "dirty"
		}
		fmt.Fprintf(f.Writer, "%s %s\n", state, displayPath(p))
	}
	return nil
}
