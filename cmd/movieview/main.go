package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"movieview/internal/database"
	"movieview/internal/diskcache"
	"movieview/internal/extractor"
	"movieview/internal/filesystem"
	"movieview/internal/handlers"
	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/memcache"
	"movieview/internal/memory"
	"movieview/internal/metrics"
	"movieview/internal/middleware"
	"movieview/internal/probestore"
	"movieview/internal/startup"
	"movieview/internal/thumbnail"
	"movieview/internal/thumbnails"
	"movieview/internal/watcher"
)

// components holds everything that needs an orderly shutdown.
type components struct {
	server         *http.Server
	cancelRequests context.CancelFunc
	metricsServer  *http.Server
	collector      *metrics.Collector
	monitor        *memory.Monitor
	sweeper        *diskcache.Sweeper
	watcher        *watcher.Watcher
	store          *diskcache.Store
	index          *database.Database
	probes         *probestore.Store
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	limit := memory.ApplyLimit(config.Memory.Limit, config.Memory.Ratio)
	startup.LogMemoryInit(limit, config.Memory.CountLimit, config.Memory.CostLimit)

	startup.LogToolsInit(config.FFmpegPath, config.FFprobePath)
	vipsErr := media.InitVips()
	startup.LogVipsInit(vipsErr)
	if !media.IsVipsAvailable() && config.Parameters.Format == thumbnail.FormatHEIC {
		logging.Warn("  Falling back to JPEG cache format")
		config.Parameters = thumbnail.NewParameters(config.Parameters.Density, config.Parameters.Quality, thumbnail.FormatJPEG)
	}

	ctx := context.Background()
	c := &components{}

	indexStart := time.Now()
	c.index, err = database.New(ctx, config.IndexPath)
	if err != nil {
		startup.LogFatal("Failed to open size index: %v", err)
	}
	startup.LogIndexInit(config.IndexPath, time.Since(indexStart))

	c.store, err = diskcache.Open(ctx, diskcache.Config{
		Root:           config.ThumbnailDir,
		MaxBytes:       config.Disk.MaxBytes,
		TargetFraction: config.Disk.TargetFraction,
	}, c.index)
	if err != nil {
		startup.LogFatal("Failed to open disk cache: %v", err)
	}

	c.probes, err = probestore.Open(config.ProbePath)
	if err != nil {
		logging.Warn("Probe cache unavailable, every video will be probed: %v", err)
		c.probes = nil
	}

	runner := extractor.NewCommandRunner()
	prober := probestore.NewCachingProber(c.probes, extractor.NewFFprobe(config.FFprobePath, runner))
	frames := extractor.NewFFmpeg(config.FFmpegPath, runner)
	memCache := memcache.New(config.Memory.CountLimit, config.Memory.CostLimit)

	orch := thumbnails.New(memCache, c.store, frames, prober, thumbnails.Config{
		MaxThumbnails: config.Thumbnails.MaxThumbnails,
	})

	monitorConfig := memory.DefaultConfig()
	monitorConfig.LimitBytes = limit.GoMemLimit
	monitorConfig.CheckInterval = config.Memory.CheckInterval
	c.monitor = memory.NewMonitor(monitorConfig)
	c.monitor.Subscribe(memCache.HandleMemoryPressure)
	c.monitor.Start()

	c.sweeper = diskcache.NewSweeper(c.store, config.Disk.SweepInterval)
	c.sweeper.Start()

	if c.probes != nil {
		c.watcher = watcher.New(config.MediaDir, c.probes, orch)
		if err := c.watcher.Start(); err != nil {
			logging.Warn("Media watcher disabled: %v", err)
			c.watcher = nil
		}
	}

	c.collector = metrics.NewCollector(orch, 30*time.Second)
	c.collector.Start()

	h := handlers.New(orch, c.store, c.monitor, handlers.Config{
		MediaDir:      config.MediaDir,
		Parameters:    config.Parameters,
		MaxThumbnails: config.Thumbnails.MaxThumbnails,
	})

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	requestCtx, cancelRequests := context.WithCancel(context.Background())
	c.cancelRequests = cancelRequests
	c.server = &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
		ReadHeaderTimeout: 10 * time.Second,
		// Generation sessions run for as long as the video needs.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		c.metricsServer = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(c, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := c.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func handleShutdown(c *components, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	c.cancelRequests()
	if err := c.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Stopping background workers")
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.sweeper.Stop()
	c.monitor.Stop()
	c.collector.Stop()
	startup.LogShutdownStepComplete("Background workers stopped")

	startup.LogShutdownStep("Closing caches")
	if err := c.store.Close(ctx); err != nil {
		logging.Warn("Disk cache close error: %v", err)
	}
	if err := c.index.Close(); err != nil {
		logging.Warn("Size index close error: %v", err)
	}
	if c.probes != nil {
		if err := c.probes.Close(); err != nil {
			logging.Warn("Probe cache close error: %v", err)
		}
	}
	media.ShutdownVips()
	startup.LogShutdownStepComplete("Caches closed")

	startup.LogShutdownComplete()
}
