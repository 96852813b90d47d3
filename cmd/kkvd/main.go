package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"kkv/api"
	"kkv/config"
	"kkv/fridge"
	"kkv/logger"
)

func main() {
	app := &cli.App{
		Name:  "kkvd",
		Usage: "serve a kkv key/value store to local processes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of a YAML configuration file, flags take precedence over it",
				EnvVars: []string{"KKVD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   `network to serve the API on, allowed values: "unix", "tcp"`,
				Value:   config.NetworkUnix,
				EnvVars: []string{"KKVD_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "unix socket path or host:port to serve the API on",
				Value:   config.DefaultAddress,
				EnvVars: []string{"KKVD_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   `store backend, allowed values: "memory", "persisted", "badger"`,
				Value:   "memory",
				EnvVars: []string{"KKVD_BACKEND"},
			},
			&cli.IntFlag{
				Name:    "shards",
				Usage:   "number of independently locked shards",
				Value:   fridge.DefaultShards,
				EnvVars: []string{"KKVD_SHARDS"},
			},
			&cli.StringFlag{
				Name:    "max-bytes",
				Usage:   `limit on the total size of stored values, e.g. "64MiB", unlimited when empty`,
				EnvVars: []string{"KKVD_MAX_BYTES"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "directory of the persisted backend scratch files",
				Value:   os.TempDir(),
				EnvVars: []string{"KKVD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   `log level to use, allowed values: "debug", "info", "error"`,
				Value:   "info",
				EnvVars: []string{"KKVD_LOG_LEVEL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			logger.Setup(cfg.LogLevel, "kkvd")
			return run(ctx.Context, cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

// Settings of the config file, overridden by any flag given on the command
// line or through the environment
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := &config.Config{}
	if path := ctx.String("config"); path != "" {
		fileCfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}

	flags := &config.Config{}
	if ctx.IsSet("network") || cfg.Network == "" {
		flags.Network = ctx.String("network")
	}
	if ctx.IsSet("address") || cfg.Address == "" {
		flags.Address = ctx.String("address")
	}
	if ctx.IsSet("backend") || cfg.Backend == "" {
		flags.Backend = ctx.String("backend")
	}
	if ctx.IsSet("shards") || cfg.Shards == 0 {
		flags.Shards = ctx.Int("shards")
	}
	if ctx.IsSet("max-bytes") {
		flags.MaxBytes = ctx.String("max-bytes")
	}
	if ctx.IsSet("data-dir") || cfg.DataDir == "" {
		flags.DataDir = ctx.String("data-dir")
	}
	if ctx.IsSet("log-level") || cfg.LogLevel == "" {
		flags.LogLevel = ctx.String("log-level")
	}
	cfg.Merge(flags)

	return cfg.CheckAndSetDefaults()
}

func run(ctx context.Context, cfg config.Config) (err error) {
	fridgeCfg, err := cfg.Fridge()
	if err != nil {
		return err
	}
	f := fridge.New(fridgeCfg)

	// Whatever is left in the store goes away with the daemon
	defer func() {
		if f.Stats().State != fridge.Active.String() {
			return
		}
		removed, destroyErr := f.Destroy(int(fridge.NonBlock))
		if destroyErr != nil && !errors.Is(destroyErr, fridge.ErrPermissionDenied) {
			err = multierror.Append(err, destroyErr)
			return
		}
		log.Info().Int("removed", removed).Msg("store destroyed on shutdown")
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &api.Api{
		Network: cfg.Network,
		Address: cfg.Address,
		DataDir: cfg.DataDir,
		Fridge:  f,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Serve(gCtx)
	})
	g.Go(func() error {
		reportStats(gCtx, f)
		return nil
	})

	log.Info().
		Str("backend", cfg.Backend).
		Int("shards", cfg.Shards).
		Str("max-bytes", cfg.MaxBytes).
		Msg("kkvd started")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("kkvd stopped")
	return nil
}

const statsInterval = 30 * time.Second

// Log the store occupancy until ctx is done
func reportStats(ctx context.Context, f *fridge.Fridge) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := f.Stats()
			log.Debug().
				Str("state", s.State).
				Int("entries", s.Entries).
				Int64("bytes", s.Bytes).
				Int64("waiters", s.Waiters).
				Msg("store stats")
		}
	}
}
