package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Borislavv/cmsketch/modules/sketchd"
	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a shared sketch over HTTP",
		Long:  "Restores the last dump, serves the HTTP API and dumps periodically and on shutdown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Sketch.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Sketch.Kind == config.KindInt {
				return sketchd.New(a.cfg, integerKeys.codec, integerKeys.parse).Run(ctx)
			}
			return sketchd.New(a.cfg, textKeys.codec, textKeys.parse).Run(ctx)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	return serveCmd
}
