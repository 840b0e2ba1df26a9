package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/urfave/cli/v3"
)

func contentCommand() *cli.Command {
	return &cli.Command{
		Name:  "content",
		Usage: "Inspect and remove website content",
		Commands: []*cli.Command{
			contentListCommand(),
			contentGetCommand(),
			contentDeleteCommand(),
		},
	}
}

func collectionFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "collection",
		Aliases:     []string{"c"},
		Usage:       "Collection (pages, events, team, programs)",
		Destination: dst,
		Required:    true,
	}
}

func idFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "id",
		Aliases:     []string{"i"},
		Usage:       "Record ID",
		Destination: dst,
		Required:    true,
	}
}

func contentListCommand() *cli.Command {
	var (
		cfg        config
		collection string
		search     string
	)

	flags := []cli.Flag{
		collectionFlag(&collection),
		&cli.StringFlag{
			Name:        "search",
			Aliases:     []string{"s"},
			Usage:       "Case-insensitive search text",
			Destination: &search,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List records, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, b, err := cfg.newBackend(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			col, err := b.Registry().Lookup(collection)
			if err != nil {
				return err
			}
			docs, err := col.List(ctx, search)
			if err != nil {
				return goerr.Wrap(err, "failed to list records")
			}

			for _, doc := range docs {
				meta := doc.GetMeta()
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n",
					meta.ID,
					col.Label(doc),
					meta.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}
}

func contentGetCommand() *cli.Command {
	var (
		cfg        config
		collection string
		id         string
	)

	flags := []cli.Flag{collectionFlag(&collection), idFlag(&id)}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "get",
		Usage: "Show one record as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, b, err := cfg.newBackend(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			col, err := b.Registry().Lookup(collection)
			if err != nil {
				return err
			}
			doc, err := col.Get(ctx, model.RecordID(id))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func contentDeleteCommand() *cli.Command {
	var (
		cfg        config
		collection string
		id         string
	)

	flags := []cli.Flag{collectionFlag(&collection), idFlag(&id)}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a record and its uploaded image",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, b, err := cfg.newBackend(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			col, err := b.Registry().Lookup(collection)
			if err != nil {
				return err
			}
			if err := col.Delete(ctx, model.RecordID(id)); err != nil {
				return goerr.Wrap(err, "failed to delete record")
			}

			fmt.Fprintf(c.Root().Writer, "Deleted: %s/%s\n", col.Slug(), id)
			return nil
		},
	}
}
