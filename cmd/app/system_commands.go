package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/allisson/glvault/cmd/app/commands"
	"github.com/allisson/glvault/internal/app"
	"github.com/allisson/glvault/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "connect",
			Usage: "Open FTPS sessions to a stored profile, prompting for untrusted certificates",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "profile",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Connection profile name",
				},
				&cli.IntFlag{
					Name:    "parallel",
					Aliases: []string{"n"},
					Value:   1,
					Usage:   "Number of concurrent control connections",
				},
				&cli.BoolFlag{
					Name:  "hold",
					Value: false,
					Usage: "Keep the sessions open and serve health and metrics until interrupted",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				logger.Info("starting connect", slog.String("version", version))
				defer commands.CloseContainer(container, logger)

				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				container.SetPrompter(commands.NewTerminalPrompter(commands.DefaultIO()))
				profiles, err := container.ProfileUseCase()
				if err != nil {
					return err
				}
				gate, err := container.TrustGate()
				if err != nil {
					return err
				}

				store, err := container.TrustStore()
				if err != nil {
					return err
				}

				var server commands.Server
				if cmd.Bool("hold") {
					gin.SetMode(cfg.GetGinMode())
					statusServer, err := container.StatusServer()
					if err != nil {
						return fmt.Errorf("failed to initialize status server: %w", err)
					}
					server = statusServer
				}

				return commands.RunConnect(
					ctx,
					profiles,
					gate,
					container.UILoop(),
					server,
					logger,
					commands.ConnectOptions{
						Profile:    cmd.String("profile"),
						Parallel:   cmd.Int("parallel"),
						Hold:       cmd.Bool("hold"),
						Timeout:    cfg.FTPTimeout,
						WatchStore: store.Watch,
					},
					commands.DefaultIO().Writer,
				)
			},
		},
	}
}
