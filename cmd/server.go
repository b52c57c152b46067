package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/castellanodev/ragserve/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long:  `Starts the ragserve HTTP server with document ingestion, chat, query, web search and finalization endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := slog.Default()
		ctx := cmd.Context()

		opts, cleanup := buildServerOptions(ctx, cfg, logger)
		defer cleanup()

		handler := server.New(opts)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", serverPort),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-shutdownCtx.Done()
			logger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		logger.Info("ragserve starting",
			"version", Version,
			"port", serverPort,
			"provider", cfg.Provider,
			"model", cfg.Model,
			"vector_backend", cfg.VectorBackend,
		)

		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8000, "port to listen on")
	rootCmd.AddCommand(serverCmd)
}
