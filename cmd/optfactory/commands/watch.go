package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/pkg/reload"
)

func newWatchCommand(global *globalFlags) *cobra.Command {
	var layers layerFlags

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Resolve options and print them again whenever a values file changes",
		Example: `  optfactory watch --schema schema.yaml --system /etc/app.yaml -f values.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := global.loadFactory()
			if err != nil {
				return err
			}
			load := func() (*optfactory.Options, error) {
				stack, err := layers.stack()
				if err != nil {
					return nil, err
				}
				return factory.CreateFromStack(stack)
			}
			holder, err := reload.New(load,
				reload.WithLogger(log.Logger),
				reload.WithPaths(layers.files()...),
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printSnapshot(out, holder.Get()); err != nil {
				return err
			}
			holder.OnChange(func(_, current *optfactory.Options, changed []string) {
				if len(changed) == 0 {
					return
				}
				if err := printSnapshot(out, current); err != nil {
					log.Error().Err(err).Msg("print options")
				}
			})

			ctx := cmd.Context()
			if err := holder.Watch(ctx); err != nil {
				return err
			}
			defer holder.Close()
			<-ctx.Done()
			return nil
		},
	}

	layers.register(cmd)

	return cmd
}

func printSnapshot(out io.Writer, opts *optfactory.Options) error {
	data, err := opts.ToYAML(true)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "---\n%s", data)
	return err
}
