package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	spycatagency "github.com/DmytroHlazyrin/Spy-cat-agency/internal"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/config"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/logging"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/metrics"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/services"
	"github.com/DmytroHlazyrin/Spy-cat-agency/pkg/catapi"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the breed refresher",
		Long: `Run the HTTP API.

The schema is applied on start, the breed list is refreshed in the
background and SIGINT/SIGTERM trigger a graceful shutdown.

Examples:
  spycat serve
  spycat serve --config spycat.yaml --addr :9090
  SPYCAT_DB_DRIVER=sqlite SPYCAT_DB_DSN=spycat.db spycat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func runServe(parent context.Context, cfg config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)
	if logging.ParseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repositories.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		return err
	}

	m := metrics.New()

	directory, closeStore, err := newDirectory(cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := directory.Refresh(ctx); err != nil {
		// cat creation retries lazily, so a cold start without TheCatAPI is not fatal
		logger.Warn("initial breed fetch failed", "error", err)
	}

	catRepo := repositories.NewSQLCatRepository(db)
	missionRepo := repositories.NewSQLMissionRepository(db)
	targetRepo := repositories.NewSQLTargetRepository(db)
	tx := repositories.NewSQLTransactor(db)

	catService := services.NewDefaultCatService(catRepo, missionRepo, tx, directory, logger)
	missionService := services.NewDefaultMissionService(missionRepo, targetRepo, catRepo, tx, m)

	server := spycatagency.NewServer(catService, missionService,
		spycatagency.WithAddr(cfg.HTTP.Addr),
		spycatagency.WithLogger(logger),
		spycatagency.WithMetrics(m),
		spycatagency.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		spycatagency.WithHealthChecks(db, directory),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		directory.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

func openDB(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	return repositories.Open(ctx, cfg.Driver, cfg.DSN, repositories.DBOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

// newDirectory builds the breed directory. The returned func releases the Redis client, if any.
func newDirectory(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*catapi.Directory, func(), error) {
	client := catapi.NewCatAPIClient(cfg.Breeds.URL, cfg.Breeds.MaxRetries, cfg.Breeds.RetryDelay, cfg.Breeds.Timeout, logger)
	opts := []catapi.DirectoryOption{
		catapi.WithLogger(logger),
		catapi.WithRefreshObserver(m),
		catapi.WithRefreshInterval(cfg.Breeds.RefreshInterval),
	}

	closeStore := func() {}
	if cfg.Redis.URL != "" {
		rdb, err := catapi.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		closeStore = func() { rdb.Close() }
		// two intervals so a replica that missed one tick still finds a snapshot
		opts = append(opts, catapi.WithSnapshotStore(catapi.NewRedisSnapshotStore(rdb, 2*cfg.Breeds.RefreshInterval)))
		logger.Info("sharing breed snapshots through redis")
	}
	return catapi.NewDirectory(client, opts...), closeStore, nil
}
