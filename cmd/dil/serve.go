package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/query"
	"github.com/renderinc/dil/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	composer := query.New(a.log, a.db, a.index, a.cfg.PageSize)
	server := web.NewServer(a.log, composer, a.db, web.Options{
		Prefix:      a.cfg.APIPrefix,
		CORSOrigins: a.cfg.CORSOrigins,
		Release:     a.cfg.Mode == "prod",
	})

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", srv.Addr, "prefix", a.cfg.APIPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
