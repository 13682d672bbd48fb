package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rosie/internal/abi"
	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/handle"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Expression string
	Encode     string
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the sample driver sequence",
		Long: `Run the sample driver sequence against one engine and print every
result array.

The sequence initializes an engine, configures an expression, inspects
it and matches a short and a 110 digit input. It then sends a malformed
configuration and an invalid manifest reference, matching after each to
show the engine keeps its last good expression. It loads $sys/MANIFEST,
configures the expression again and repeats the long match. Finally it
finalizes the engine and shows that a later call fails.

Examples:
  rosie demo --home ./rosie-home
  rosie demo --expression '[:alpha:]+' --encode matches --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Expression, "expression", "[:digit:]+", "expression to configure")
	cmd.Flags().StringVar(&opts.Encode, "encode", "json", "output encoding")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := json.Marshal(map[string]string{
		"expression": opts.Expression,
		"encode":     opts.Encode,
	})
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
	calls := []Call{collect(rt, api.OpInitialize, home, arr)}
	if h == handle.Zero {
		if err := f.Calls(calls); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "engine initialization failed")
	}

	short := "1239999999"
	long := strings.Repeat("1234567890", 11)
	malformed := "This is NOT valid json"
	sysManifest := "$sys/MANIFEST"

	calls = append(calls,
		collect(rt, api.OpConfigure, string(cfg), rt.Configure(h, abi.NewBuffer(string(cfg)))),
		collect(rt, api.OpInspect, "", rt.Inspect(h)),
		collect(rt, api.OpMatch, short, rt.Match(h, abi.NewBuffer(short), nil)),
		collect(rt, api.OpMatch, long, rt.Match(h, abi.NewBuffer(long), nil)),
		collect(rt, api.OpConfigure, malformed, rt.Configure(h, abi.NewBuffer(malformed))),
		collect(rt, api.OpMatch, short, rt.Match(h, abi.NewBuffer(short), nil)),
		collect(rt, api.OpLoadManifest, short, rt.LoadManifest(h, abi.NewBuffer(short))),
		collect(rt, api.OpMatch, short, rt.Match(h, abi.NewBuffer(short), nil)),
		collect(rt, api.OpLoadManifest, sysManifest, rt.LoadManifest(h, abi.NewBuffer(sysManifest))),
		collect(rt, api.OpConfigure, string(cfg), rt.Configure(h, abi.NewBuffer(string(cfg)))),
		collect(rt, api.OpMatch, long, rt.Match(h, abi.NewBuffer(long), nil)),
	)

	fin := Call{Op: api.OpFinalize}
	if err := rt.Finalize(h); err != nil {
		fin.Error = err.Error()
	}
	calls = append(calls, fin,
		collect(rt, api.OpMatch, short, rt.Match(h, abi.NewBuffer(short), nil)),
	)

	return f.Calls(calls)
}

// collect copies arr out as a Call and frees it.
func collect(rt *api.Runtime, op, input string, arr *abi.Array) Call {
	c := Call{Op: op, Input: input}
	items, err := arr.Strings()
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Result = items
	if err := rt.Free(arr); err != nil {
		c.Error = err.Error()
	}
	return c
}
