package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-optfactory/schema/openapi"
)

func newDescribeCommand(global *globalFlags) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print a help table of options, docs and defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := global.loadFactory()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), factory.HelpTable(prefix))
			return err
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "prefix for every table line")

	return cmd
}

func newOpenAPICommand(global *globalFlags) *cobra.Command {
	var (
		title   string
		version string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print an OpenAPI document describing the options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := global.loadFactory(openapi.Option(openapi.WithInfo(title, version)))
			if err != nil {
				return err
			}
			doc, err := factory.Schema()
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(doc.Document)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&version, "doc-version", "", "document version")

	return cmd
}
