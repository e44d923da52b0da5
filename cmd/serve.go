package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/spf13/cobra"

	"prizedraw/internal/handlers"
	"prizedraw/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, lotteryService, err := openService()
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Errorf("Error closing store: %v", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gin.SetMode(cfg.GinMode)
		router := handlers.NewRouter(handlers.NewHTTPHandler(lotteryService), cfg.AllowedOrigins)
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Optional in-process poller; without it finalization is driven by
		// POST /api/sweep/finalize or `prizedraw sweep finalize` from cron.
		sweeperDone := make(chan struct{})
		if cfg.SweepInterval > 0 {
			sweeper := services.NewSweeper(lotteryService, cfg.SweepInterval)
			go func() {
				defer close(sweeperDone)
				sweeper.Run(ctx)
			}()
			logger.Infof("Sweeper started, interval %s", cfg.SweepInterval)
		} else {
			close(sweeperDone)
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Infof("Server starting on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			stop()
			<-sweeperDone
			return err
		case <-ctx.Done():
		}
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP server shutdown error: %v", err)
		}
		<-sweeperDone
		logger.Info("Shutdown complete")
		return nil
	},
}
