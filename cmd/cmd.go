// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run setup of the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles the SMS login flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the login session",
		Commands: []*cli.Command{
			{
				Name:      "send-code",
				Usage:     "Send a login code by SMS",
				ArgsUsage: "<mobile>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mobile"},
				},
				Action: r.AuthSendCode,
			},
			{
				Name:      "login",
				Usage:     "Log in with a mobile number and SMS code",
				ArgsUsage: "<mobile>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mobile"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "SMS code (prompted when omitted)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the saved session and check it against the API",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the saved session",
				Action: r.AuthLogout,
			},
		},
	}
}

// searchCommand searches the catalog
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search songs by keyword",
		ArgsUsage: "<keywords...>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page, starting at 1",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Results per page (default from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: "Output a Markdown table",
			},
		},
		Action: r.Search,
	}
}

// urlCommand resolves a playable URL
func urlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "url",
		Usage:     "Print the playable URL of a track",
		ArgsUsage: "<hash>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "hash"},
		},
		Before: r.RequireSession,
		Action: r.URL,
	}
}

// coverCommand resolves cover art
func coverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "cover",
		Usage:     "Print the cover art URL of a track",
		ArgsUsage: "<hash>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "hash"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the image in the default viewer",
			},
		},
		Action: r.Cover,
	}
}

// downloadCommand saves tracks to disk
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download and tag tracks",
		ArgsUsage: "<hash...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"o"},
				Usage:   "Output directory (default from config)",
			},
		},
		Before: r.RequireSession,
		Action: r.Download,
	}
}

// playCommand previews tracks through mpv
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play tracks in order until the queue ends or ctrl-c",
		ArgsUsage: "<hash...>",
		Before:    r.RequireSession,
		Action:    r.Play,
	}
}

// historyCommand lists completed downloads
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List completed downloads",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records (0 for all)",
				Value: 50,
			},
			&cli.StringFlag{
				Name:  "hash",
				Usage: "Only downloads of this track",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Delete the whole history",
			},
		},
		Action: r.History,
	}
}

// inspectCommand reads tags back from a file
func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the tags of an audio file",
		ArgsUsage: "<file>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.Inspect,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive search and player",
		Before:  r.RequireSession,
		Action:  r.TUI,
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls for debugging",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path on the catalog API and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "Print compact JSON",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}
