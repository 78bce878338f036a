package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/gallery"
	"github.com/kozaktomas/face-registry/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the face recognition server",
	Long: `Start the HTTP server exposing /register, /recognize, /list, /faces and /health.
The first detector/recognizer strategy the embedding server accepts is used for
the whole process lifetime; startup fails if none works.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5000, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Float64("threshold", gallery.DefaultThreshold, "Minimum similarity for a match (overrides MATCH_THRESHOLD)")
}

// applyServeFlags lets explicitly set flags win over environment variables.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Match.Threshold = mustGetFloat64(cmd, "threshold")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}

	registry := gallery.NewRegistry(store, cfg.Match.Threshold)
	server := web.NewServer(cfg, registry, provider, Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Starting Face Registry on http://%s:%d (threshold %.2f)\n", cfg.Web.Host, cfg.Web.Port, registry.Threshold())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSec*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("during shutdown: %w", err)
	}
	return nil
}
