package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage admin accounts",
		Commands: []*cli.Command{
			userAddCommand(),
			userListCommand(),
		},
	}
}

func userAddCommand() *cli.Command {
	var (
		cfg      config
		email    string
		name     string
		password string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "Email address used to sign in",
			Destination: &email,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "Display name",
			Destination: &name,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "Password; prompted for when empty",
			Sources:     cli.EnvVars("SITECMS_ADMIN_PASSWORD"),
			Destination: &password,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Create an admin account",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if password == "" {
				var err error
				if password, err = promptPassword(c.Root().Writer); err != nil {
					return err
				}
			}

			ctx, b, err := cfg.requireAuth(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			user, err := b.Auth().Register(ctx, email, password, name)
			if err != nil {
				return goerr.Wrap(err, "failed to add user")
			}

			fmt.Fprintf(c.Root().Writer, "User created: %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}
}

func promptPassword(w io.Writer) (string, error) {
	rl, err := readline.NewEx(&readline.Config{Stdout: w})
	if err != nil {
		return "", goerr.Wrap(err, "failed to open terminal")
	}
	defer rl.Close()

	password, err := rl.ReadPassword("Password: ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to read password")
	}
	confirm, err := rl.ReadPassword("Confirm password: ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to read password")
	}
	if string(password) != string(confirm) {
		return "", goerr.New("passwords do not match")
	}
	return string(password), nil
}

func userListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List admin accounts",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, b, err := cfg.requireAuth(ctx)
			if err != nil {
				return err
			}
			defer teardown(ctx, b)

			users, err := b.Auth().ListUsers(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", u.ID, u.Email, u.Name())
			}
			return nil
		},
	}
}
