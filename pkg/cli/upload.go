package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/urfave/cli/v3"
)

func uploadCommand() *cli.Command {
	var (
		cfg    config
		input  string
		folder string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path of the file to upload",
			Destination: &input,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "folder",
			Aliases:     []string{"f"},
			Usage:       "Destination folder in the bucket",
			Value:       "uploads",
			Destination: &folder,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "upload",
		Usage: "Upload a file and print its public URL",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			f, err := os.Open(input)
			if err != nil {
				return goerr.Wrap(err, "failed to open file", goerr.V("path", input))
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return goerr.Wrap(err, "failed to stat file", goerr.V("path", input))
			}

			ctx, b, err := cfg.newBackend(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			name := filepath.Base(input)
			contentType := mime.TypeByExtension(filepath.Ext(name))
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			up := b.Uploader().Start(ctx, &adapter.File{
				Name:        name,
				ContentType: contentType,
				Size:        info.Size(),
				Reader:      f,
			}, adapter.GenerateFilePath(folder, name))

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			sp.Suffix = " uploading " + name
			sp.Start()
			for p := range up.Progress() {
				sp.Lock()
				sp.Suffix = fmt.Sprintf(" uploading %s %3.0f%%", name, p.Percent())
				sp.Unlock()
			}
			result, err := up.Wait()
			sp.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", result.URL)
			return nil
		},
	}
}
