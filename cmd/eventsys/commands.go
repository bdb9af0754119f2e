package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsys/internal/app"
	"github.com/dshills/eventsys/internal/event"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "eventsys",
		Short:         "Prioritised in-process event dispatch with Lua handlers",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a TOML or YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error|off")

	root.AddCommand(
		newFireCmd(flags),
		newServeCmd(flags),
		newTypesCmd(flags),
	)
	return root
}

func (f *rootFlags) options(cmd *cobra.Command, plugins []string) app.Options {
	return app.Options{
		ConfigPath: f.configPath,
		LogLevel:   f.logLevel,
		Plugins:    plugins,
		LogOutput:  cmd.ErrOrStderr(),
	}
}

func newFireCmd(flags *rootFlags) *cobra.Command {
	var (
		count   int
		plugins []string
	)

	cmd := &cobra.Command{
		Use:   "fire <type> [key=value ...]",
		Short: "Fire an event through the loaded plugins",
		Example: "  eventsys fire buffer.save path=main.go --plugin guard.lua\n" +
			"  eventsys fire app.tick --count 10",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}

			application, err := app.New(flags.options(cmd, plugins))
			if err != nil {
				return err
			}
			defer application.Shutdown()

			out := cmd.OutOrStdout()
			cancelled := 0
			for i := 0; i < count; i++ {
				c, err := application.Fire(args[0], fields)
				if err != nil {
					return err
				}
				if c {
					cancelled++
				}
			}

			snapshot := application.Metrics().Snapshot()
			fmt.Fprintf(out, "fired %s %d time(s): %d cancelled, %d failure(s)\n",
				args[0], snapshot.Fired, cancelled, snapshot.Failures)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of times to fire the event")
	cmd.Flags().StringSliceVarP(&plugins, "plugin", "p", nil, "Lua plugin to load (repeatable)")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var plugins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin server and plugin hot reload until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(flags.options(cmd, plugins))
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
	cmd.Flags().StringSliceVarP(&plugins, "plugin", "p", nil, "Lua plugin to load (repeatable)")
	return cmd
}

func newTypesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered event types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(flags.options(cmd, nil))
			if err != nil {
				return err
			}
			defer application.Shutdown()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tABSTRACT\tPARENTS")
			for _, t := range event.Types() {
				parents := make([]string, 0, len(t.Parents()))
				for _, p := range t.Parents() {
					parents = append(parents, p.Name())
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", t.Name(), t.IsAbstract(), strings.Join(parents, ","))
			}
			return tw.Flush()
		},
	}
}

// parseFields turns key=value arguments into message fields. Values that
// parse as integers, floats or booleans keep that type.
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", arg)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

