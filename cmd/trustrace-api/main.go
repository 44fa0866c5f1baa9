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

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/config"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/database"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/reports"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/server"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dotEnvPath      = ".env"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	configViper := config.NewViper()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "trustrace-api",
		Short:        "TrustTrace transaction-outcome reporting service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(dotEnvPath); err != nil {
				return err
			}
			return config.ReadFile(configViper, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configViper)
		},
	}

	setupFlags(rootCmd, configViper, &cfgFile)
	rootCmd.AddCommand(newIssueTokenCommand(configViper), newSeedCommand(configViper))
	return rootCmd
}

func setupFlags(cmd *cobra.Command, configViper *viper.Viper, cfgFile *string) {
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString(config.KeyHTTPAddress), "HTTP listen address")
	flags.String("database-path", defaults.GetString(config.KeyDatabasePath), "SQLite database path")
	flags.Int("token-ttl-minutes", defaults.GetInt(config.KeyTokenTTLMinutes), "Bearer token TTL in minutes")
	flags.String("log-level", defaults.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, configViper, config.KeyHTTPAddress, "http-address")
	bindFlag(cmd, configViper, config.KeyDatabasePath, "database-path")
	bindFlag(cmd, configViper, config.KeyTokenTTLMinutes, "token-ttl-minutes")
	bindFlag(cmd, configViper, config.KeyLogLevel, "log-level")
	bindFlag(cmd, configViper, config.KeySigningSecret, "signing-secret")
}

func bindFlag(cmd *cobra.Command, configViper *viper.Viper, key, flag string) {
	if err := configViper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// application holds everything a command needs after configuration is resolved.
type application struct {
	config  config.AppConfig
	logger  *zap.Logger
	db      *gorm.DB
	users   *users.Service
	reports *reports.Service
	metrics *metrics.Manager
}

func openApplication(configViper *viper.Viper) (*application, error) {
	appConfig, err := config.Load(configViper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	store, err := traces.NewStore(traces.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: traces.NewUUIDProvider(),
	})
	if err != nil {
		return nil, err
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return nil, err
	}
	metricsManager := metrics.NewManager(metrics.WithRuntimeCollectors())
	reportService, err := reports.NewService(reports.ServiceConfig{
		Store:            store,
		Users:            userService,
		Logger:           logger,
		Recorder:         metricsManager,
		Clock:            time.Now,
		FeedLimit:        appConfig.FeedLimit,
		LeaderboardLimit: appConfig.LeaderboardLimit,
		DashboardWindow:  appConfig.DashboardWindow,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		config:  appConfig,
		logger:  logger,
		db:      db,
		users:   userService,
		reports: reportService,
		metrics: metricsManager,
	}, nil
}

func (r *application) close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func newTokenIssuer(appConfig config.AppConfig) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.Issuer,
		Audience:      appConfig.Audience,
		TokenTTL:      appConfig.TokenTTL,
	})
}

func runServer(ctx context.Context, configViper *viper.Viper) error {
	rt, err := openApplication(configViper)
	if err != nil {
		return err
	}
	defer rt.close()

	tokenIssuer, err := newTokenIssuer(rt.config)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:         tokenIssuer,
		Users:          rt.users,
		Reports:        rt.reports,
		Metrics:        rt.metrics,
		AllowedOrigins: rt.config.AllowedOrigins,
		Logger:         rt.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rt.logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newIssueTokenCommand(configViper *viper.Viper) *cobra.Command {
	var userID, displayName string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configViper)
			if err != nil {
				return err
			}
			tokenIssuer, err := newTokenIssuer(appConfig)
			if err != nil {
				return err
			}
			token, expiresIn, err := tokenIssuer.IssueToken(cmd.Context(), auth.Identity{
				UserID:      userID,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires in %ds\n", token, expiresIn)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "User id placed in the token subject")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name carried in the token")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newSeedCommand(configViper *viper.Viper) *cobra.Command {
	var fixturesPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load traces from a YAML fixtures file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(fixturesPath)
			if err != nil {
				return err
			}
			defer file.Close()

			fixtures, err := reports.LoadFixtures(file)
			if err != nil {
				return err
			}

			rt, err := openApplication(configViper)
			if err != nil {
				return err
			}
			defer rt.close()

			stored, err := rt.reports.Seed(cmd.Context(), fixtures)
			rt.logger.Info("fixtures seeded", zap.String("file", fixturesPath), zap.Int("stored", stored), zap.Int("total", len(fixtures)))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d traces\n", stored)
			return err
		},
	}
	cmd.Flags().StringVar(&fixturesPath, "file", "", "Path to the YAML fixtures file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
