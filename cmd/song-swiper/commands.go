package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-song-swiper/internal/config"
	"github.com/justestif/go-song-swiper/internal/logging"
	"github.com/justestif/go-song-swiper/internal/recommend"
	"github.com/justestif/go-song-swiper/internal/songcache"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/sources"
	"github.com/justestif/go-song-swiper/internal/web"
)

// app is what every command needs after the global flags are applied.
type app struct {
	cfg     *config.Config
	secrets config.Secrets
	logger  *log.Logger
	source  songs.Source
}

func setup(cmd *cli.Command) (*app, error) {
	if err := config.LoadDotEnv(cmd.String("env-file")); err != nil {
		return nil, err
	}

	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !sources.Valid(cfg.Catalog.Source) {
		return nil, fmt.Errorf("catalog.source %q is not one of %v", cfg.Catalog.Source, sources.Names)
	}

	level := cfg.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	logger := logging.New(os.Stderr, level)

	secrets := config.EnvSecrets{}
	source, err := sources.Build(cfg, secrets, logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, secrets: secrets, logger: logger, source: source}, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if v := cmd.String("addr"); v != "" {
		addr = v
	}

	var cache *songcache.Cache
	if a.cfg.Cache.Enabled {
		cache = songcache.New(a.cfg.Cache.TTL.Duration, nil)
	}

	// Missing credentials are reported per request, not at startup.
	if err := a.source.CheckConfig(); err != nil {
		a.logger.Warn("catalog is not configured yet", "err", err)
	}

	recommender := recommend.NewRecommender(
		sources.Generator(a.cfg, a.secrets),
		a.source,
		recommend.WithLogger(a.logger),
		recommend.WithPlaceholderArt(a.cfg.Catalog.PlaceholderArt),
	)

	server, err := web.NewServer(web.ServerConfig{
		Addr:               addr,
		RedirectURI:        a.cfg.Server.RedirectURI,
		Source:             a.source,
		Cache:              cache,
		Recommender:        recommender,
		SpotifyCredentials: sources.SpotifyCredentials(a.secrets),
		DefaultLimit:       a.cfg.Catalog.Limit,
		Logger:             a.logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	a.logger.Info("serving catalog", "catalog", a.source.Name(), "cache", a.cfg.Cache.Enabled)
	return server.Run(ctx)
}

func songsCommand() *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Fetch one page of songs from the configured catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mood", Usage: "Mood to search for"},
			&cli.StringFlag{Name: "genre", Usage: "Genre to search for"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Free-text search"},
			&cli.IntFlag{Name: "limit", Usage: "Number of songs (1-50)"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: runSongs,
	}
}

func runSongs(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit == 0 {
		limit = a.cfg.Catalog.Limit
	}

	list, err := a.source.FetchSongs(ctx, songs.Query{
		Mood:     cmd.String("mood"),
		Genre:    cmd.String("genre"),
		Keywords: cmd.String("query"),
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	list = songs.Dedupe(list)

	if cmd.Bool("json") {
		return printJSON(os.Stdout, list)
	}
	if len(list) == 0 {
		fmt.Println("No songs found.")
		return nil
	}
	fmt.Print(songs.ExportLines(a.source.Name(), list))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example configuration file",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.String("config")
					if err := config.CreateConfigFile(path); err != nil {
						if errors.Is(err, config.ErrConfigExists) {
							fmt.Printf("%s already exists, leaving it unchanged\n", path)
							return nil
						}
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
