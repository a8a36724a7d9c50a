// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("TUNEPIPE_CONFIG"),
	}
}

// serveCommand runs the HTTP broker.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server for the web client",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
			&cli.FloatFlag{
				Name:  "searches-per-second",
				Usage: "Spotify searches allowed per second across all builds",
				Value: 5,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the session database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// pipeCommand runs the whole pipeline from the terminal.
func pipeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "Log in to Telegram and Spotify, then add the songs found in a chat to a playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "chat",
				Usage:    "Telegram chat username or t.me link to read",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "phone",
				Usage: "Telegram phone number (prompted when missing and no session is stored)",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist name",
				Value: "New Playlist",
			},
			&cli.StringFlag{
				Name:  "redirect-uri",
				Usage: "Local Spotify redirect URI (overrides credentials.spotify.redirect_uri)",
			},
			&cli.FloatFlag{
				Name:  "searches-per-second",
				Usage: "Spotify searches allowed per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print progress lines instead of the interactive view",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Also print the build result as JSON (plain mode)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the interactive view is open",
				Value: "./tmp/tunepipe-pipe.log",
			},
		},
		Action: r.Pipe,
	}
}
