package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTraceCommand(global *globalFlags) *cobra.Command {
	var layers layerFlags

	cmd := &cobra.Command{
		Use:     "trace <option>",
		Short:   "Explain where an option's value comes from",
		Example: `  optfactory trace --schema schema.yaml -f values.yaml server.admin_port`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := global.loadFactory()
			if err != nil {
				return err
			}
			stack, err := layers.stack()
			if err != nil {
				return err
			}
			opts, err := factory.CreateMutableFromStack(stack)
			if err != nil {
				return err
			}
			trace, err := opts.Trace(args[0])
			if err != nil {
				return err
			}
			trace.Layers = stack.Trace(args[0]).Layers
			payload, err := trace.ToJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}

	layers.register(cmd)

	return cmd
}
