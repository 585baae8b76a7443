package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Pair a mobile wallet through the relay and print its address",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long (defaults to CONNECT_TIMEOUT)",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "How often to ask the relay (defaults to CONNECT_POLL_INTERVAL)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.Close()

			if c.IsSet("timeout") {
				rt.cfg.ConnectTimeout = c.Duration("timeout")
			}
			if c.IsSet("poll-interval") {
				rt.cfg.ConnectPollInterval = c.Duration("poll-interval")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			wallet, err := pairWallet(ctx, rt, rt.relayClient())
			if err != nil {
				return err
			}
			if rt.json {
				return rt.outputJSON(map[string]string{"wallet": wallet.String()})
			}
			rt.printf("%s\n", wallet)
			return nil
		},
	}
}
