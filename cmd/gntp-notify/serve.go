package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/server"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/bark-labs/gntp-notify/internal/storage/bolt"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := a.cfg, a.log

			store, err := bolt.New(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			transport := gntp.NewTCPTransport(cfg.GNTP.Timeout)
			authSvc := service.NewAuthService(cfg.Auth)
			hostSvc := service.NewHostService(store)
			notifySvc := service.NewNotifyService(cfg.GNTP, store, transport, log)
			logSvc := service.NewNotifyLogService(store, hostSvc)
			srv := server.New(cfg, store, hostSvc, notifySvc, logSvc, authSvc, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("shutdown error")
			}
			return nil
		},
	}
}
