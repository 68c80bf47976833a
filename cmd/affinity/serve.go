// ABOUTME: HTTP server command exposing the JSON API.
// ABOUTME: Serves until interrupted, then shuts down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/affinity/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the entry and ranking API over HTTP.

Routes:
  GET    /health
  GET    /entries
  POST   /entries            {"who": "...", "loves": "..."} or {"text": "..."}
  GET    /entries/{id}
  DELETE /entries/{id}
  GET    /entries/{id}/rank  ?prepend=true&limit=N`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := globalConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	handler := api.NewHandler(globalEngine, globalLogger, globalConfig.Ranking.PrependQuery)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, globalLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		globalLogger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	globalLogger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
