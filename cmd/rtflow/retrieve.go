package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oncobeam/rtflow/qr"
	"github.com/oncobeam/rtflow/scp"
	"github.com/oncobeam/rtflow/server"
)

var retrieveSeriesUID string

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <study-uid>",
	Short: "Move a study (or one series) from the remote node into the export layout",
	Long: "Starts a local storage session, asks the remote node to C-MOVE the " +
		"requested study to it, and exports the reconstructed trees when the " +
		"transfer finishes.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sessionConfig()
		if err != nil {
			return err
		}
		session, err := scp.NewSession(sc, slog.Default())
		if err != nil {
			return err
		}

		address := fmt.Sprintf("%s:%d", cfg.Local.Host, cfg.Local.Port)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return err
		}

		serveCtx, stopServing := context.WithCancel(cmd.Context())
		defer stopServing()

		g, _ := errgroup.WithContext(serveCtx)
		g.Go(func() error {
			srv := server.New(cfg.Local.AETitle, session.Handler(),
				server.WithLogger(slog.Default()))
			return srv.Serve(serveCtx, listener)
		})

		result, moveErr := func() (qr.RetrieveResult, error) {
			assoc, err := connectRemote()
			if err != nil {
				return qr.RetrieveResult{}, err
			}
			defer assoc.Close()

			qrClient := qr.NewClient(assoc, slog.Default())
			if retrieveSeriesUID != "" {
				return qrClient.MoveSeries(args[0], retrieveSeriesUID, cfg.Local.AETitle)
			}
			return qrClient.MoveStudy(args[0], cfg.Local.AETitle)
		}()

		stopServing()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Receive listener ended with error", "error", err)
		}

		if moveErr != nil {
			return moveErr
		}

		fmt.Printf("move finished: %d completed, %d failed, %d warnings\n",
			result.Completed, result.Failed, result.Warning)
		return session.Stop()
	},
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveSeriesUID, "series", "", "retrieve only this series of the study")
	rootCmd.AddCommand(retrieveCmd)
}
