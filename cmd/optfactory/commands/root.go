package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/pkg/evallog"
	"github.com/goliatone/go-optfactory/pkg/evalmetrics"
	"github.com/goliatone/go-optfactory/schemafile"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	schema  string
	verbose bool
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit string) error {
	return NewRootCommand(version, commit).ExecuteContext(ctx)
}

// NewRootCommand builds the optfactory command tree.
func NewRootCommand(version, commit string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "optfactory",
		Short: "Resolve and document option schemas",
		Long: `optfactory loads a YAML option schema, resolves it against layered
value files and command line overrides, and documents it.

Defaults may be literals, references to other options, or rules written in
expr, CEL or JavaScript.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.schema, "schema", "s", "", "schema file path")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log every default evaluation")
	_ = rootCmd.MarkPersistentFlagRequired("schema")

	rootCmd.AddCommand(newResolveCommand(flags))
	rootCmd.AddCommand(newTraceCommand(flags))
	rootCmd.AddCommand(newWatchCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newDescribeCommand(flags))
	rootCmd.AddCommand(newOpenAPICommand(flags))

	return rootCmd
}

// loadFactory parses the schema file, wiring evaluator logging when verbose.
func (g *globalFlags) loadFactory(extra ...optfactory.Option) (*optfactory.Factory, error) {
	var opts []optfactory.Option
	if logger := g.evaluatorLogger(); logger != nil {
		opts = append(opts, optfactory.WithEvaluatorLogger(logger))
	}
	opts = append(opts, extra...)
	factory, err := schemafile.Load(g.schema, opts...)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("schema", g.schema).
		Int("options", factory.Len()).
		Msg("schema loaded")
	return factory, nil
}

// evaluatorLogger combines extra with the debug log when verbose. It returns
// nil when there is nothing to report to.
func (g *globalFlags) evaluatorLogger(extra ...optfactory.EvaluatorLogger) optfactory.EvaluatorLogger {
	loggers := append([]optfactory.EvaluatorLogger{}, extra...)
	if g.verbose {
		loggers = append(loggers, evallog.Zerolog(log.Logger.Level(zerolog.DebugLevel)))
	}
	if len(loggers) == 0 {
		return nil
	}
	return evalmetrics.Tee(loggers...)
}
