package entrypoint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/alerts"
	"github.com/rentfolio/rentfolio/internal/config"
	"github.com/rentfolio/rentfolio/internal/database"
	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/database/rawevents"
	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/database/vendors"
	"github.com/rentfolio/rentfolio/internal/dedup"
	http_controllers "github.com/rentfolio/rentfolio/internal/http"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/reclassify"
	"github.com/rentfolio/rentfolio/internal/scheduler"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
	"github.com/rentfolio/rentfolio/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then drains it
// within the configured shutdown timeout.
func Serve(router *gin.Engine, cfg *config.Config, log *logrus.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Infof("starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("shutting down, waiting up to %v for in-flight work", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background workers before the listener so queued work is
	// released cleanly.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown: %s", err)
	}

	log.Info("server exiting")
}

// Run wires up every component and starts the HTTP server.
func Run(cfg *config.Config, version string) {
	log := logrus.New()
	log.Infof("starting Rentfolio v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path, log)
	if err != nil {
		log.Fatalf("failed to initialize database: %s", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("error closing database")
		}
	}()

	runs := syncruns.NewRepository(db.DB)
	raw := rawevents.NewRepository(db.DB)
	portfolioRepo := portfolio.NewRepository(db.DB)
	vendorRepo := vendors.NewRepository(db.DB)
	store := settingsstore.New(settings.NewRepository(db.DB))

	if creds, err := store.GetAPICredentials(); err != nil || !creds.Valid() {
		log.Warn("provider API credentials are not configured; syncs will fail until they are set via PUT /api/v1/settings/credentials or PW_* environment variables")
	}

	alerter := alerts.NewService(db.DB, store, &alerts.LogNotifier{Log: log}, cfg.Alerts.FailureThreshold, log)

	clientOpts := propertyware.Options{
		BaseURL:           cfg.Client.BaseURL,
		Timeout:           cfg.Client.Timeout,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
		Burst:             cfg.Client.Burst,
		PageSize:          cfg.Client.PageSize,
	}

	engine := ingest.NewEngine(runs, raw, portfolioRepo, store, ingest.NewClientSource(clientOpts), alerter, log)
	dedupEngine := dedup.NewEngine(vendorRepo, store, log)
	reclassifyEngine := reclassify.NewEngine(db.DB, log)

	// Task queue; when disabled, background work runs in plain
	// goroutines instead.
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg, log)
		if err != nil {
			log.Fatalf("failed to initialize task queue: %s", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.WithError(err).Warn("error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewSyncRunQueue(engine),
			tasks.NewVendorAnalysisQueue(dedupEngine),
			tasks.NewReprocessQueue(reclassifyEngine, log),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	enqueueRun := func(ctx context.Context, runID uint) error {
		if taskClient == nil {
			go func() {
				if err := engine.Execute(context.Background(), runID); err != nil {
					log.WithError(err).WithField("run_id", runID).Error("background sync run failed")
				}
			}()
			return nil
		}
		_, err := taskClient.Add(tasks.SyncRunTask{RunID: runID}).Save()
		return err
	}

	enqueueAnalysis := func(ctx context.Context, analysisID uint) error {
		if taskClient == nil {
			go func() {
				if err := dedupEngine.RunAnalysis(context.Background(), analysisID); err != nil {
					log.WithError(err).WithField("analysis_id", analysisID).Error("background vendor analysis failed")
				}
			}()
			return nil
		}
		_, err := taskClient.Add(tasks.VendorAnalysisTask{AnalysisID: analysisID}).Save()
		return err
	}

	service := ingest.NewService(runs, enqueueRun, log)

	sched := scheduler.NewSyncScheduler(store, service, log)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	if err := sched.Start(schedCtx); err != nil {
		log.WithError(err).Warn("scheduled syncs are disabled")
	}

	routerCfg := http_controllers.RouterConfig{
		Health:    http_controllers.NewHealthController(db, version),
		Sync:      http_controllers.NewSyncController(service, runs, store, sched, alerter, log),
		Vendors:   http_controllers.NewVendorsController(dedupEngine, vendorRepo, enqueueAnalysis, log),
		Utilities: http_controllers.NewUtilitiesController(reclassifyEngine, db.DB, log),
		Settings:  http_controllers.NewSettingsController(store, sched, clientOpts, log),
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		sched.Stop()
		schedCancel()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, log, onShutdown)
}
