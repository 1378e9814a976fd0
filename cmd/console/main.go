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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storeconsole/internal/config"
	"storeconsole/internal/httpapi"
	"storeconsole/internal/service"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
	"storeconsole/internal/store/memory"
	pgstore "storeconsole/internal/store/postgres"
	"storeconsole/internal/store/rest"
)

const (
	backendPostgres = "postgres"
	backendREST     = "rest"
	backendMemory   = "memory"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "console",
		Short:         "Store admin console service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSecurityConfig(cfg); err != nil {
				return fmt.Errorf("invalid security configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and print the selected backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSecurityConfig(cfg); err != nil {
				return fmt.Errorf("invalid security configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listen: %s\n", cfg.Address())
			fmt.Fprintf(out, "backend: %s\n", backendKind(cfg))
			fmt.Fprintf(out, "sessions: %s\n", sessionKind(cfg))
			fmt.Fprintf(out, "timezone: %s\n", cfg.Timezone)
			return nil
		},
	})

	return root
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	return zapConfig.Build()
}

func serve(ctx context.Context, cfg config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	backend, closers, err := openBackend(startCtx, cfg)
	if err != nil {
		return err
	}
	sessions, closeSessions := openSessions(startCtx, cfg)
	if closeSessions != nil {
		closers = append(closers, closeSessions)
	}

	svc := service.New(backend, sessions, service.Options{PageSize: cfg.CatalogPageSize, Location: loc})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.SessionTTL(), backend, sessions)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info("console listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zap.L().Warn("close error", zap.Error(err))
		}
	}

	zap.L().Info("console stopped")
	return nil
}

func backendKind(cfg config.Config) string {
	switch {
	case cfg.DatabaseURL != "":
		return backendPostgres
	case cfg.UpstreamURL != "":
		return backendREST
	default:
		return backendMemory
	}
}

func sessionKind(cfg config.Config) string {
	if cfg.RedisAddr != "" {
		return "redis"
	}
	return "memory"
}

// openBackend refuses to fall back to memory when a database was asked for.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, []func() error, error) {
	closers := make([]func() error, 0, 2)

	switch backendKind(cfg) {
	case backendPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		zap.L().Info("backend: postgres")
		return pg, closers, nil
	case backendREST:
		zap.L().Info("backend: rest", zap.String("upstream", cfg.UpstreamURL))
		return rest.New(cfg.UpstreamURL, cfg.UpstreamTimeout()), closers, nil
	default:
		zap.L().Info("backend: in-memory")
		return memory.NewSeeded(), closers, nil
	}
}

// openSessions uses Redis when it answers and memory otherwise.
func openSessions(ctx context.Context, cfg config.Config) (session.Store, func() error) {
	if cfg.RedisAddr == "" {
		zap.L().Info("sessions: memory")
		return session.NewMemoryStore(), nil
	}

	redisStore := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisStore.Ping(ctx); err != nil {
		zap.L().Warn("redis unavailable, using in-memory sessions", zap.Error(err))
		_ = redisStore.Close()
		return session.NewMemoryStore(), nil
	}
	zap.L().Info("sessions: redis", zap.String("addr", cfg.RedisAddr))
	return redisStore, redisStore.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}
