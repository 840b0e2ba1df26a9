package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "sitecms",
		Usage: "Admin backend for a small organization website",
		Commands: []*cli.Command{
			serveCommand(),
			userCommand(),
			contentCommand(),
			uploadCommand(),
			importCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
