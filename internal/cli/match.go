package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/abi"
	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/handle"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Encode    string
	Manifests []string
	Start     int
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <expression> [input...]",
		Short: "Match an expression against inputs",
		Long: `Configure one engine with an expression and match it against each
input. Without inputs, every line of standard input is matched.

Manifests are loaded before the expression is configured, so the
expression may refer to the definitions they contain.

Examples:
  rosie match '[:digit:]+' 321 abc
  rosie match net.ipv4 --manifest '$sys/MANIFEST' --encode matches < hosts.txt`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Encode, "encode", "json", "output encoding")
	cmd.Flags().StringSliceVar(&opts.Manifests, "manifest", nil, "manifest to load first (repeatable)")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "1-based start position (0 means 1)")

	return cmd
}

func runMatch(opts *MatchOptions, expression string, inputs []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if len(inputs) == 0 {
		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		for sc.Scan() {
			inputs = append(inputs, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}
	}

	cfg, err := json.Marshal(map[string]string{"expression": expression, "encode": opts.Encode})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode configuration", err)
	}

	rt, closeRuntime, err := opts.newRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime()

	home := opts.home()
	h, arr := rt.Initialize(abi.NewBuffer(home))
	setup := []Call{collect(rt, api.OpInitialize, home, arr)}
	if h == handle.Zero {
		return failCalls(f, setup, "engine initialization failed")
	}
	defer func() {
		if err := rt.Finalize(h); err != nil {
			opts.logger().Warn("finalize failed", "error", err)
		}
	}()

	for _, ref := range opts.Manifests {
		c := collect(rt, api.OpLoadManifest, ref, rt.LoadManifest(h, abi.NewBuffer(ref)))
		setup = append(setup, c)
		if !succeeded(c) {
			return failCalls(f, setup, fmt.Sprintf("cannot load manifest %q", ref))
		}
	}

	c := collect(rt, api.OpConfigure, string(cfg), rt.Configure(h, abi.NewBuffer(string(cfg))))
	if !succeeded(c) {
		return failCalls(f, append(setup, c), "expression rejected")
	}
	for _, s := range setup {
		f.VerboseLog("%s", FormatCall(s))
	}

	var extra *abi.Buffer
	if opts.Start > 0 {
		b := abi.NewBuffer(strconv.Itoa(opts.Start))
		extra = &b
	}

	calls := make([]Call, 0, len(inputs))
	failed := 0
	for _, in := range inputs {
		c := collect(rt, api.OpMatch, in, rt.Match(h, abi.NewBuffer(in), extra))
		if !succeeded(c) {
			failed++
		}
		calls = append(calls, c)
	}
	if err := f.Calls(calls); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d match call(s) failed", failed))
	}
	return nil
}

func succeeded(c Call) bool {
	return c.Error == "" && len(c.Result) > 0 && c.Result[0] == api.StatusTrue
}

// failCalls prints the calls made so far and returns a failure exit.
func failCalls(f *OutputFormatter, calls []Call, msg string) error {
	if err := f.Calls(calls); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}
