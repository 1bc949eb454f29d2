package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oncobeam/rtflow/scp"
	"github.com/oncobeam/rtflow/server"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Accept inbound storage associations until interrupted, then export the collected trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc, err := sessionConfig()
		if err != nil {
			return err
		}
		session, err := scp.NewSession(sc, slog.Default())
		if err != nil {
			return err
		}

		address := fmt.Sprintf("%s:%d", cfg.Local.Host, cfg.Local.Port)
		err = server.ListenAndServe(ctx, address, cfg.Local.AETitle, session.Handler(),
			server.WithLogger(slog.Default()),
			server.WithReadTimeout(cfg.Remote.Timeout),
			server.WithWriteTimeout(cfg.Remote.Timeout))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		slog.Info("Session closed, exporting collected trees", "export_root", cfg.Export.Root)
		return session.Stop()
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)
}
