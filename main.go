package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/squadbooster/api"
	"github.com/chxlky/squadbooster/database"
	"github.com/chxlky/squadbooster/integrations"
	"github.com/chxlky/squadbooster/internal/config"
	"github.com/chxlky/squadbooster/internal/events"
	"github.com/chxlky/squadbooster/internal/retro"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "squadbooster",
		Short: "SquadBooster team rituals and retro boards",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default ./config.toml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			defer logger.Sync()
			zap.ReplaceGlobals(logger)
			return serve(cfg, logger)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			defer logger.Sync()
			zap.ReplaceGlobals(logger)

			db, err := database.Init(cfg.Database.Path)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(levelStr string) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Init(cfg.Database.Path)
	if err != nil {
		return err
	}
	sqlDB, _ := db.DB()
	repo := database.NewRepo(db)

	engine := retro.New(repo, retro.Policy{
		SameCategoryMerges: cfg.Retro.SameCategoryMerges,
		EnforceStepGuards:  cfg.Retro.EnforceStepGuards,
	})
	engine.Actions = []retro.ActionCreator{repo}

	apiHandler := &api.Handler{
		Repo:    repo,
		Workers: api.NewDispatcher(cfg.Workers.MaxConcurrent),
	}

	var broker *events.RedisBroker
	if cfg.RedisEnabled() {
		broker, err = events.NewRedisBroker(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Namespace)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = broker.Ping(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		engine.Publisher = broker
		apiHandler.Events = broker
		zap.L().Info("Board events enabled", zap.String("redis", cfg.Redis.Addr))
	}

	if cfg.TrelloEnabled() {
		trelloClient := integrations.NewTrelloClient(cfg.Trello.APIKey, cfg.Trello.APIToken, cfg.Trello.ListID)
		engine.Actions = append(engine.Actions, trelloClient)
		zap.L().Info("Trello action export enabled", zap.String("listID", cfg.Trello.ListID))
	}

	if cfg.Google.Calendar.Enabled {
		calClient, err := integrations.NewCalendarClient(context.Background(), cfg.Google.ServiceAccount, cfg.Google.Calendar.CalendarID)
		if err != nil {
			return fmt.Errorf("failed to initialise Google Calendar client: %w", err)
		}
		apiHandler.CalClient = calClient
		zap.L().Info("Successfully authenticated with Google Calendar API.")
	}

	apiHandler.Engine = engine

	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     api.NewRouter(apiHandler, logger),
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		cancelRequests()
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if err := apiHandler.Workers.Shutdown(ctx); err != nil {
			zap.L().Error("Timed out waiting for queued actions", zap.Error(err))
		}

		if broker != nil {
			if err := broker.Close(); err != nil {
				zap.L().Error("Error closing redis connection", zap.Error(err))
			}
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
	return nil
}
