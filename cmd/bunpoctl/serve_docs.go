package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/remote"
)

const (
	serveDocsAddrKey  = "serve_docs.addr"
	serveDocsStoreKey = "serve_docs.store"
	serveDocsDSNKey   = "serve_docs.dsn"
)

// serveDocsCmd runs the document store that REMOTE_DRIVER=http talks to.
var serveDocsCmd = &cobra.Command{
	Use:   "serve-docs",
	Short: "Serve a remote document store over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.Default().WithPrefix("serve-docs")

		var store remote.Store
		switch kind := viper.GetString(serveDocsStoreKey); kind {
		case "memory":
			store = remote.NewMemory()
		case "postgres":
			pg, err := remote.OpenPostgres(ctx, viper.GetString(serveDocsDSNKey))
			if err != nil {
				return err
			}
			defer pg.Close()
			store = pg
		default:
			return errors.Errorf("--store must be memory or postgres, got %q", kind)
		}

		addr := viper.GetString(serveDocsAddrKey)
		srv := &http.Server{
			Addr:              addr,
			Handler:           remote.NewHandler(store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("document store listening on %s", addr)
			errCh <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "document store stopped")
			}
			return nil
		case <-stop:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveDocsCmd)

	serveDocsCmd.Flags().String("addr", ":8090", "listen address")
	serveDocsCmd.Flags().String("store", "memory", "backing store: memory or postgres")
	serveDocsCmd.Flags().String("dsn", "", "postgres connection string")

	bindFlagToViper(serveDocsAddrKey, serveDocsCmd.Flags().Lookup("addr"))
	bindFlagToViper(serveDocsStoreKey, serveDocsCmd.Flags().Lookup("store"))
	bindFlagToViper(serveDocsDSNKey, serveDocsCmd.Flags().Lookup("dsn"))
}
