// Command song-swiper serves song cards from one music catalog for a swipe UI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "song-swiper",
		Usage:   "Serve swipeable song cards from Spotify, YouTube, Last.fm, Genius or Gemini",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with catalog credentials",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level from the config file",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			songsCommand(),
			configCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
