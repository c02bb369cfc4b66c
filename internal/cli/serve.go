package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/config"
	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/limiter"
	"github.com/oslerlabs/osler/internal/recorder"
	"github.com/oslerlabs/osler/internal/server"
	"github.com/oslerlabs/osler/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		configFile string
		addr       string
		rate       int
		window     time.Duration
		backend    string
		recordFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the generation proxy",
		Long: `Starts the HTTP proxy that fronts the LLM provider.

Endpoints:
  GET  /              Service info
  GET  /health        Health check
  POST /api/generate  Rate-limited generation proxy
  WS   /ws            Live proxy events

The provider credential is read from ` + config.APIKeyEnv + `. Without it the
server starts but answers every generation request with a configuration
error.`,
		Example: `  osler serve
  osler serve --addr :9090 --rate 5 --window 1h
  osler serve --backend redis --config osler.json
  osler serve --record traffic.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				loaded, err := config.LoadFile(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("rate") {
				cfg.Limiter.Rate = rate
			}
			if cmd.Flags().Changed("window") {
				cfg.Limiter.Window = window
			}
			if cmd.Flags().Changed("backend") {
				cfg.Storage.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			clk := clock.NewRealClock()

			st, err := createStorage(cfg, clk)
			if err != nil {
				return err
			}

			lim, err := limiter.NewStorageLimiter(st, cfg.Limiter.Rate, cfg.Limiter.Window, clk)
			if err != nil {
				return err
			}
			defer lim.Close()

			var gw *gateway.Client
			if key := config.APIKey(); key != "" {
				gw = gateway.New(key, gateway.Options{
					BaseURL:        cfg.Gateway.BaseURL,
					AttemptTimeout: cfg.Gateway.AttemptTimeout,
					Clock:          clk,
				})
			} else {
				log.Printf("%s not set; generation requests will fail with a configuration error", config.APIKeyEnv)
			}

			opts := server.Options{
				Hub:    server.NewHub(),
				Model:  cfg.Gateway.Model,
				Window: cfg.Limiter.Window,
			}
			if recordFile != "" {
				opts.Recorder = recorder.New(nil)
			}

			srv := server.New(cfg.Server.Addr, lim, clk, gw, opts)

			log.Printf("Proxy:  http://localhost%s/api/generate", cfg.Server.Addr)
			log.Printf("Events: ws://localhost%s/ws", cfg.Server.Addr)

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Println("shutting down...")
				// Export recordings if enabled.
				if recordFile != "" && opts.Recorder != nil {
					log.Printf("exporting %d records to %s", opts.Recorder.Len(), recordFile)
					if err := opts.Recorder.ExportFile(recordFile); err != nil {
						log.Printf("error exporting records: %v", err)
					}
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to JSON config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().IntVar(&rate, "rate", 5, "generation requests allowed per window per client")
	cmd.Flags().DurationVar(&window, "window", time.Hour, "rate limit window duration")
	cmd.Flags().StringVar(&backend, "backend", "memory", "rate limit state backend (memory, redis)")
	cmd.Flags().StringVar(&recordFile, "record", "", "record proxy traffic to JSON file (exported on shutdown)")

	return cmd
}

func createStorage(cfg config.Config, clk clock.Clock) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStorage(clk), nil
	case "redis":
		return storage.NewRedisStorage(&cfg.Storage.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
