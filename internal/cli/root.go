package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/journal"
	"github.com/roach88/rosie/internal/settings"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string

	// Resolved in PersistentPreRunE.
	Settings settings.Settings
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rosie CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rosie",
		Short: "rosie - embeddable pattern matching",
		Long: `Drive the rosie matching engine through its boundary contract.

Settings come from flags, ROSIE_* environment variables and an optional
config file, in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Config, "config", "", "settings file (yaml, json or toml)")
	pf.String("home", ".", "engine home directory (must contain rpl/)")
	pf.String("journal", "", "record calls in this SQLite journal")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")

	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads settings and builds the logger. Logs go to stderr so JSON
// output stays parseable.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	v := settings.New()
	if err := settings.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	s, err := settings.Load(v, o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if o.Verbose {
		s.LogLevel = "debug"
	}
	logger, err := s.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	o.Settings = s
	o.Logger = logger
	return nil
}

// logger returns the resolved logger, or a discarding one when the command
// runs without its root (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// home returns the engine home: the resolved setting, else ".".
func (o *RootOptions) home() string {
	if o.Settings.Home == "" {
		return "."
	}
	return o.Settings.Home
}

// newRuntime creates a runtime, journaling to the configured journal. The
// returned close function closes both.
func (o *RootOptions) newRuntime() (*api.Runtime, func(), error) {
	opts := []api.Option{api.WithLogger(o.logger())}

	var j *journal.Journal
	if o.Settings.Journal != "" {
		var err error
		j, err = journal.Open(o.Settings.Journal)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		opts = append(opts, api.WithJournal(j))
	}

	rt := api.New(opts...)
	return rt, func() {
		if err := rt.Close(); err != nil {
			o.logger().Error("error closing runtime", "error", err)
		}
		if err := j.Close(); err != nil {
			o.logger().Error("error closing journal", "error", err)
		}
	}, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
