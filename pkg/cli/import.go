package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/urfave/cli/v3"
)

func importCommand() *cli.Command {
	var (
		cfg    config
		input  string
		dryRun bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to YAML seed file",
			Destination: &input,
			Required:    true,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Validate the file without writing anything",
			Destination: &dryRun,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "import",
		Usage: "Import seed content from a YAML file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			f, err := os.Open(input)
			if err != nil {
				return goerr.Wrap(err, "failed to open seed file", goerr.V("path", input))
			}
			defer f.Close()

			ctx, b, err := cfg.newBackend(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			result, err := b.Registry().Import(ctx, f, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(c.Root().Writer, "%d records are valid\n", result.Validated)
				return nil
			}
			for _, name := range model.ContentCollections {
				if n := result.Created[name]; n > 0 {
					fmt.Fprintf(c.Root().Writer, "%s\t%d\n", name, n)
				}
			}
			return nil
		},
	}
}
