package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/glvault/cmd/app/commands"
	"github.com/allisson/glvault/internal/app"
	"github.com/allisson/glvault/internal/config"
)

func trustTargetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "thumbprint", Aliases: []string{"t"}, Usage: "SHA-1 thumbprint, separators allowed"},
		&cli.StringFlag{Name: "cert-file", Usage: "PEM or DER certificate file"},
		&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Profile name; empty means every connection"},
	}
}

func trustTarget(cmd *cli.Command) commands.TrustTarget {
	return commands.TrustTarget{
		Thumbprint: cmd.String("thumbprint"),
		CertFile:   cmd.String("cert-file"),
	}
}

func getTrustCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "trust",
			Usage: "Inspect and edit the persistent certificate approvals",
			Commands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List approved certificates",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:    "format",
							Aliases: []string{"f"},
							Value:   "text",
							Usage:   "Output format: 'text' or 'json'",
						},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						container := app.NewContainer(config.Load())
						defer commands.CloseContainer(container, container.Logger())

						store, err := container.TrustStore()
						if err != nil {
							return err
						}
						return commands.RunTrustList(store, cmd.String("format"), commands.DefaultIO().Writer)
					},
				},
				{
					Name:  "approve",
					Usage: "Approve a certificate for a profile or globally",
					Flags: append(trustTargetFlags(),
						&cli.StringFlag{Name: "subject", Usage: "Subject to record (taken from --cert-file when omitted)"},
					),
					Action: func(ctx context.Context, cmd *cli.Command) error {
						container := app.NewContainer(config.Load())
						defer commands.CloseContainer(container, container.Logger())

						store, err := container.TrustStore()
						if err != nil {
							return err
						}
						return commands.RunTrustApprove(
							store,
							container.Logger(),
							trustTarget(cmd),
							cmd.String("subject"),
							cmd.String("scope"),
							commands.DefaultIO().Writer,
						)
					},
				},
				{
					Name:  "check",
					Usage: "Report whether a certificate is approved; exits non-zero when it is not",
					Flags: trustTargetFlags(),
					Action: func(ctx context.Context, cmd *cli.Command) error {
						container := app.NewContainer(config.Load())
						defer commands.CloseContainer(container, container.Logger())

						store, err := container.TrustStore()
						if err != nil {
							return err
						}
						return commands.RunTrustCheck(store, trustTarget(cmd), cmd.String("scope"), commands.DefaultIO().Writer)
					},
				},
			},
		},
	}
}
