package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Cam1McH/RainienShare-sub001/api"
	"github.com/Cam1McH/RainienShare-sub001/auth"
	"github.com/Cam1McH/RainienShare-sub001/config"
	"github.com/Cam1McH/RainienShare-sub001/notify"
	"github.com/Cam1McH/RainienShare-sub001/ratelimit"
	"github.com/Cam1McH/RainienShare-sub001/storage"
	bboltstorage "github.com/Cam1McH/RainienShare-sub001/storage/bbolt"
	"github.com/Cam1McH/RainienShare-sub001/storage/postgres"
)

var (
	port    int
	tlsCert string
	tlsKey  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		store, closeStore, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		var limiterStore ratelimit.Store
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer client.Close()
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			limiterStore = ratelimit.NewRedisStore(client)
		} else {
			// Process-local counters: limits apply per replica, not
			// globally. Set RAINIEN_REDIS_ADDR to share them.
			limiterStore = ratelimit.NewMemoryStore()
		}

		sessions := auth.NewSessionManager(store)
		svc := auth.NewService(store, sessions,
			auth.WithIssuer(cfg.TOTPIssuer),
			auth.WithNotifier(notify.NewLogNotifier(logger)),
			auth.WithLogger(logger),
			auth.WithDebugCodes(!cfg.Production()))

		a := api.New(svc, sessions, ratelimit.New(limiterStore),
			api.WithLogger(logger),
			api.WithTrustedProxies(cfg.TrustedProxies),
			api.WithBaseURL(cfg.BaseURL),
			api.WithProduction(cfg.Production()))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(a.SecurityHeaders)

		if len(cfg.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := tlsCert != "" && tlsKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (env: %s)...\n", port, cfg.Env)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// openStore picks the storage backend: postgres when a DSN is configured,
// otherwise the embedded bbolt database under the data directory.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		store, err := postgres.NewStoreFromDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return store, store.Close, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := bboltstorage.NewStoreFromFile(cfg.DataDir+"/auth.db", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open auth storage: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
