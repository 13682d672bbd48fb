package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/engine"
	"github.com/roach88/rosie/internal/pattern"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                 `json:"valid"`
	Files       []string             `json:"files,omitempty"`
	Definitions []pattern.Definition `json:"definitions,omitempty"`
	Errors      []string             `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Load manifests and compile every definition",
		Long: `Load each manifest into a fresh engine and compile every definition it
brings in. References may be paths or $sys/... for the engine home.

Manifests are loaded in order into the same engine, so a later manifest
may refer to definitions from an earlier one.

Examples:
  rosie validate '$sys/MANIFEST'
  rosie validate ./rpl/net.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, refs []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	e, diags, err := engine.New(opts.home(), engine.WithLogger(opts.logger()))
	if err != nil {
		if ferr := f.Error(ErrCodeNotFound, "engine initialization failed", diags); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "engine initialization failed", err)
	}
	defer e.Close()

	result := ValidationResult{Valid: true}
	for _, ref := range refs {
		f.VerboseLog("Loading manifest: %s", ref)
		files, err := e.LoadManifest(ref)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, api.Diagnostics(err)...)
			continue
		}
		result.Files = append(result.Files, files...)
	}

	defs, err := e.Definitions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list definitions", err)
	}
	result.Definitions = defs

	if !result.Valid {
		if err := f.Error(ErrCodeLoadFailed, "manifest validation failed", result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d manifest error(s)", len(result.Errors)))
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	w := cmd.OutOrStdout()
	for _, d := range result.Definitions {
		kind := "pattern"
		if d.Alias {
			kind = "alias"
		}
		fmt.Fprintf(w, "%-8s %-16s %s\n", kind, d.Name, d.Expr)
	}
	fmt.Fprintf(w, "✓ %d definition(s) from %d file(s)\n", len(result.Definitions), len(result.Files))
	return nil
}
