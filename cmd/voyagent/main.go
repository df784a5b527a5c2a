package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voyagent-dev/voyagent/internal/agent"
	"github.com/voyagent-dev/voyagent/internal/api"
	"github.com/voyagent-dev/voyagent/internal/llm"
	"github.com/voyagent-dev/voyagent/internal/observability"
	"github.com/voyagent-dev/voyagent/internal/tools/flights"
	"github.com/voyagent-dev/voyagent/pkg/config"
	pkgobs "github.com/voyagent-dev/voyagent/pkg/observability"
	"github.com/voyagent-dev/voyagent/pkg/session"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "voyagent",
		Short:   "Conversational travel assistant",
		Version: Version,
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; environment wins in deployed setups.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Printf("starting voyagent v%s on :%d (store=%s)", Version, cfg.Server.Port, cfg.Store.Backend)

	pkgobs.InitMetrics()

	if err := observability.InitFromEnv(); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	provider, err := llm.NewOpenAIProvider(cfg.OpenAIKey, llm.WithModel(cfg.Model))
	if err != nil {
		return err
	}

	ag, err := agent.New(provider,
		agent.WithStore(store),
		agent.WithFlightsClient(flights.NewClient(flights.WithBaseURL(cfg.FlightAPIBaseURL))),
	)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	health := pkgobs.NewHealthChecker()
	health.RegisterCheck("session_store", func(ctx context.Context) error {
		_, err := store.Load(ctx, "health-probe")
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return err
	})

	srv := api.NewServer(ag,
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithHealthChecker(health),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Print("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
		return store.Close()
	})

	return g.Wait()
}

func buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreFile:
		return session.NewFileStore(cfg.Store.FileDir)
	case config.StoreRedis:
		return session.NewRedisStore(session.RedisConfig{
			Addr:       cfg.Store.Redis.Addr,
			Password:   cfg.Store.Redis.Password,
			DB:         cfg.Store.Redis.DB,
			Prefix:     cfg.Store.Redis.Prefix,
			SessionTTL: cfg.Store.Redis.SessionTTL,
			PoolSize:   cfg.Store.Redis.PoolSize,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
