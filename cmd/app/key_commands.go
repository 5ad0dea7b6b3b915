package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/glvault/cmd/app/commands"
	"github.com/allisson/glvault/internal/app"
	"github.com/allisson/glvault/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init-key",
			Usage: "Load the encryption key file, creating it when missing or unusable",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "wrap-uri",
					Value: "",
					Usage: "Seal the key file with a secrets keeper (base64key://, hashivault://, awskms://, gcpkms://, azurekeyvault://)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if uri := cmd.String("wrap-uri"); uri != "" {
					cfg.KeyWrapURI = uri
				}
				container := app.NewContainer(cfg)
				defer commands.CloseContainer(container, container.Logger())

				keyManager, err := container.KeyManager()
				if err != nil {
					return err
				}
				return commands.RunInitKey(ctx, keyManager, container.Logger(), commands.DefaultIO().Writer)
			},
		},
	}
}
