package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meepledex/harvester/api"
)

var serveDisableCORS bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve harvested data over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		server := api.NewServer(api.Config{
			Addr:        ":" + viper.GetString("port"),
			CORSEnabled: !serveDisableCORS,
		}, database)

		// Start server in a goroutine
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- err
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		// Graceful shutdown
		slog.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP listen port")
	serveCmd.Flags().BoolVar(&serveDisableCORS, "disable-cors", false, "disable CORS headers")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
