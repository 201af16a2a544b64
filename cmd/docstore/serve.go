package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	"github.com/xdbsoft/docstore"
	"github.com/xdbsoft/docstore/internal/logger"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured collections over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(listenAddr) > 0 {
			cfg.Server.Addr = listenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := docstore.Server(ctx, cfg)
		if err != nil {
			return err
		}

		log := logger.GetLogger()

		h = handlers.RecoveryHandler(handlers.RecoveryLogger(log), handlers.PrintRecoveryStack(true))(h)
		h = handlers.CombinedLoggingHandler(log.Writer(), h)

		s := &http.Server{
			Addr:           cfg.Server.Addr,
			Handler:        h,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("shutdown failed")
			}
		}()

		log.WithField("addr", cfg.Server.Addr).WithField("backend", cfg.Store.Backend).Info("listening")

		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "address and port to listen on (overrides Server.Addr)")
}
