package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "bureau/internal/jwt_token"
	"bureau/internal/platform/config"
	"bureau/internal/platform/database"
	"bureau/internal/platform/httpserver"
	"bureau/internal/platform/logger"
)

const (
	programName     = "bureau"
	shutdownTimeout = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Member role-mandate service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE:  runServe,
		},
		migrateCommand(),
		tokenCommand(),
	)
	return root
}

func loadConfig() (config.Server, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error(err.Error(), "component", programName)
		return config.Server{}, nil, err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.UsingDevSigningKey() {
		log.Warn("using development JWT signing key; set BUREAU_JWT_SIGNING_KEY")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open backend", "error", err)
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error("failed to close backend", "error", err)
		}
	}()

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer))
	router := newRouter(cfg, b, validator, log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting "+programName, "addr", cfg.Addr, "storage", cfg.Storage.Driver, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	if b.sweeper != nil {
		g.Go(func() error {
			return b.sweeper.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error(err.Error())
		return err
	}
	return nil
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.DatabaseURL == "" {
				return errors.New("BUREAU_STORAGE_DATABASE_URL is required")
			}
			if err := database.Migrate(cfg.Storage.DatabaseURL); err != nil {
				log.Error("migration failed", "error", err)
				return err
			}
			version, dirty, err := database.Version(cfg.Storage.DatabaseURL)
			if err != nil {
				return err
			}
			log.Info("migrations applied", "version", version, "dirty", dirty)
			return nil
		},
	}
	return cmd
}

func tokenCommand() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer).GenerateAccessToken(userID, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev", "user id placed in the token")
	cmd.Flags().StringVar(&role, "role", "SECRETARY", "caller role placed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
