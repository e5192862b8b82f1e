// Package serve implements the HTTP server command.
package serve

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	api "github.com/printprob/bookdb/internal/api/v2"
	"github.com/printprob/bookdb/internal/conf"
	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/logging"
	"github.com/printprob/bookdb/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Host, "host", settings.WebServer.Host, "Interface to bind")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port to listen on")

	return cmd
}

func runServer(settings *conf.Settings) error {
	logger := log.Default()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	store.SetMetrics(metrics.Datastore)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("Error closing datastore: %v", err)
		}
	}()

	go updateRowCounts(store, metrics)

	e := echo.New()
	e.HideBanner = true

	controller := api.InitializeAPI(e, store, settings, logger, metrics)
	defer controller.Shutdown()

	// Metrics endpoint lives outside the /api/v2 group and its middleware.
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	addr := settings.WebServer.Host + ":" + settings.WebServer.Port
	go func() {
		logging.Info("HTTP server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// updateRowCounts refreshes the per-table row count gauges once a minute.
func updateRowCounts(store datastore.Interface, metrics *observability.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		counts, err := store.TableCounts()
		if err != nil {
			logging.Warn("Failed to count table rows", "error", err)
		} else {
			for table, n := range counts {
				metrics.Datastore.UpdateTableRowCount(table, n)
			}
		}
		<-ticker.C
	}
}
