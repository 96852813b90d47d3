package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"kkv/client"
	"kkv/config"
	"kkv/fridge"
)

func main() {
	app := &cli.App{
		Name:  "kkv",
		Usage: "query a kkvd store and submit commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   `network of the kkvd API, allowed values: "unix", "tcp"`,
				Value:   config.NetworkUnix,
				EnvVars: []string{"KKVD_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "unix socket path or host:port of the kkvd API",
				Value:   config.DefaultAddress,
				EnvVars: []string{"KKVD_ADDRESS"},
			},
			&cli.IntFlag{
				Name:    "flags",
				Aliases: []string{"f"},
				Usage:   "flags word sent with the command, 0 is non-blocking and 1 blocks gets",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create the store",
				Action: func(ctx *cli.Context) error {
					if err := newClient(ctx).Init(ctx.Context, ctx.Int("flags")); err != nil {
						return exit(err)
					}
					fmt.Println("[OK] store initialized")
					return nil
				},
			},
			{
				Name:  "destroy",
				Usage: "tear the store down, dropping every entry",
				Action: func(ctx *cli.Context) error {
					removed, err := newClient(ctx).Destroy(ctx.Context, ctx.Int("flags"))
					if err != nil {
						return exit(err)
					}
					fmt.Printf("[OK] store destroyed, %d entrie(s) removed\n", removed)
					return nil
				},
			},
			{
				Name:      "put",
				Usage:     "store a value under a key",
				ArgsUsage: "KEY VALUE",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() != 2 {
						return fmt.Errorf("wrong arguments count, expected=2, got=%d", ctx.Args().Len())
					}
					key, err := fridge.ParseKey(ctx.Args().Get(0))
					if err != nil {
						return exit(fmt.Errorf("%w: %v", fridge.ErrInvalidArgument, err))
					}
					if err := newClient(ctx).Put(ctx.Context, key, []byte(ctx.Args().Get(1)), ctx.Int("flags")); err != nil {
						return exit(err)
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "print the value of a key, waiting for it with --flags 1",
				ArgsUsage: "KEY",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "length",
						Aliases: []string{"l"},
						Usage:   "maximum number of bytes to read",
						Value:   4096,
					},
				},
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() != 1 {
						return fmt.Errorf("wrong arguments count, expected=1, got=%d", ctx.Args().Len())
					}
					key, err := fridge.ParseKey(ctx.Args().First())
					if err != nil {
						return exit(fmt.Errorf("%w: %v", fridge.ErrInvalidArgument, err))
					}

					// Ctrl-C abandons a get blocked on a missing key
					sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					value, err := newClient(ctx).Get(sigCtx, key, ctx.Int("length"), ctx.Int("flags"))
					if err != nil {
						return exit(err)
					}
					os.Stdout.Write(value)
					fmt.Println()
					return nil
				},
			},
			{
				Name:  "metrics",
				Usage: "print store and host metrics",
				Action: func(ctx *cli.Context) error {
					m, err := newClient(ctx).Metrics(ctx.Context)
					if err != nil {
						return exit(err)
					}
					out, err := json.MarshalIndent(m, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(out))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func newClient(ctx *cli.Context) *client.Client {
	return client.New(ctx.String("network"), ctx.String("address"))
}

// Exit with the errno of the failure, as the syscall interface would report it
func exit(err error) error {
	return cli.Exit(fmt.Sprintf("[ERROR] %v (%s)", err, fridge.KindOf(err)), client.Errno(err))
}
