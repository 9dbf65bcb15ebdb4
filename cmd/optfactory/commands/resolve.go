package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newResolveCommand(global *globalFlags) *cobra.Command {
	var (
		layers       layerFlags
		withDefaults bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve every option and print the result",
		Example: `  # Resolve with a project values file and one override
  optfactory resolve --schema schema.yaml -f values.yaml --set server.port=9000

  # Print only explicit values as JSON
  optfactory resolve --schema schema.yaml --with-defaults=false --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := global.loadFactory()
			if err != nil {
				return err
			}
			stack, err := layers.stack()
			if err != nil {
				return err
			}
			opts, err := factory.CreateFromStack(stack)
			if err != nil {
				return err
			}
			log.Debug().Str("snapshot", opts.ID()).Msg("options resolved")

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				data, err := opts.ToYAML(withDefaults)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(opts.ToMap(withDefaults))
			case "table":
				_, err := fmt.Fprintln(out, opts.AsTable())
				return err
			default:
				return fmt.Errorf("unknown format %q (want yaml, json or table)", format)
			}
		},
	}

	layers.register(cmd)
	cmd.Flags().BoolVar(&withDefaults, "with-defaults", true, "include options left at their default")
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format: yaml, json or table")

	return cmd
}
