package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openngo/sitecms/pkg/server"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg          config
		addr         string
		secureCookie bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("SITECMS_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "secure-cookie",
			Usage:       "Send the session cookie only over HTTPS",
			Sources:     cli.EnvVars("SITECMS_SECURE_COOKIE"),
			Destination: &secureCookie,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the admin and public HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, b, err := cfg.requireAuth(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			var opts []server.Option
			if secureCookie {
				opts = append(opts, server.WithSecureCookie())
			}
			srv, err := server.New(b, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Listen(ctx, addr)
		},
	}
}
