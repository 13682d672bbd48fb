package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/config"
	"github.com/roach88/rosie/internal/encoder"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration payload schema",
		Long: `Print the JSON Schema that configure payloads are validated against,
followed by the available encoders.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	data, err := config.Schema()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build schema", err)
	}

	if opts.Format == "json" {
		f := opts.formatter(cmd)
		return f.Success(map[string]any{
			"schema":   json.RawMessage(data),
			"encoders": encoder.Names(),
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, string(data))
	fmt.Fprintf(w, "encoders: %v (default %s)\n", encoder.Names(), encoder.Default)
	return nil
}
