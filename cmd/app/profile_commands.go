package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/glvault/cmd/app/commands"
	"github.com/allisson/glvault/internal/app"
	"github.com/allisson/glvault/internal/config"
	profileDomain "github.com/allisson/glvault/internal/profile/domain"
	profileUsecase "github.com/allisson/glvault/internal/profile/usecase"
)

// withProfiles runs fn with the profile use case of a fresh container.
func withProfiles(
	fn func(container *app.Container, cfg *config.Config, uc profileUsecase.ProfileUseCase) error,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer commands.CloseContainer(container, container.Logger())

	uc, err := container.ProfileUseCase()
	if err != nil {
		return err
	}
	return fn(container, cfg, uc)
}

func getProfileCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "profile",
			Usage: "Manage encrypted connection profiles",
			Commands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List stored profiles",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:    "format",
							Aliases: []string{"f"},
							Value:   "text",
							Usage:   "Output format: 'text' or 'json'",
						},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						return withProfiles(func(_ *app.Container, _ *config.Config, uc profileUsecase.ProfileUseCase) error {
							return commands.RunListProfiles(ctx, uc, cmd.String("format"), commands.DefaultIO().Writer)
						})
					},
				},
				{
					Name:  "save",
					Usage: "Add a profile or replace the profile with the same name",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Profile name"},
						&cli.StringFlag{Name: "host", Required: true, Usage: "Server host name or IP address"},
						&cli.IntFlag{Name: "port", Value: profileDomain.DefaultPort, Usage: "Server port"},
						&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true, Usage: "Login name"},
						&cli.StringFlag{Name: "password", Usage: "Login password (prefer the GLVAULT_PASSWORD variable)", Sources: cli.EnvVars("GLVAULT_PASSWORD")},
						&cli.StringFlag{Name: "ssl-mode", Value: string(profileDomain.SSLExplicit), Usage: "TLS mode: explicit, implicit or none"},
						&cli.BoolFlag{Name: "ask-password", Value: false, Usage: "Prompt for the password without echo"},
						&cli.BoolFlag{Name: "active", Value: false, Usage: "Use active instead of passive data connections"},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						return withProfiles(func(container *app.Container, _ *config.Config, uc profileUsecase.ProfileUseCase) error {
							profile := profileDomain.ConnectionProfile{
								Name:        cmd.String("name"),
								Host:        cmd.String("host"),
								Port:        cmd.Int("port"),
								Username:    cmd.String("username"),
								Password:    cmd.String("password"),
								SSLMode:     profileDomain.ParseSSLMode(cmd.String("ssl-mode")),
								PassiveMode: !cmd.Bool("active"),
							}
							if cmd.Bool("ask-password") {
								password, err := commands.ReadPassword(commands.IOTuple{Reader: os.Stdin, Writer: os.Stderr}, "Password: ")
								if err != nil {
									return err
								}
								profile.Password = password
							}
							return commands.RunSaveProfile(ctx, uc, container.Logger(), profile, commands.DefaultIO().Writer)
						})
					},
				},
				{
					Name:  "delete",
					Usage: "Delete a profile",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Profile name"},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						return withProfiles(func(container *app.Container, _ *config.Config, uc profileUsecase.ProfileUseCase) error {
							return commands.RunDeleteProfile(ctx, uc, container.Logger(), cmd.String("name"), commands.DefaultIO().Writer)
						})
					},
				},
				{
					Name:  "import-legacy",
					Usage: "Merge the plaintext legacy profile file into the encrypted store and delete it",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "path", Usage: "Legacy file (defaults to LEGACY_PROFILES_FILE)"},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						return withProfiles(func(container *app.Container, cfg *config.Config, uc profileUsecase.ProfileUseCase) error {
							path := cmd.String("path")
							if path == "" {
								path = cfg.LegacyProfilesFile
							}
							return commands.RunImportLegacy(ctx, uc, container.Logger(), path, commands.DefaultIO().Writer)
						})
					},
				},
			},
		},
	}
}
