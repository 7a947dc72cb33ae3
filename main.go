package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"localfiles/internal/catalog"
	"localfiles/internal/database"
	"localfiles/internal/discovery"
	"localfiles/internal/filesystem"
	"localfiles/internal/handlers"
	"localfiles/internal/identity"
	"localfiles/internal/index"
	"localfiles/internal/indexer"
	"localfiles/internal/ingest"
	"localfiles/internal/logging"
	"localfiles/internal/mediatypes"
	"localfiles/internal/memory"
	"localfiles/internal/metrics"
	"localfiles/internal/middleware"
	"localfiles/internal/query"
	"localfiles/internal/redisstore"
	"localfiles/internal/resolver"
	"localfiles/internal/startup"
	"localfiles/internal/torrent"
)

// backend is the opened index storage.
type backend struct {
	files, meta index.KV
	passes      indexer.PassStore
	close       func() error
	// dbPath is empty for backends without a local file
	dbPath string
}

// indexStatsAdapter feeds index.Store counts to the metrics collector.
type indexStatsAdapter struct {
	store   handlers.IndexStats
	timeout time.Duration
}

// GetStats implements metrics.StatsProvider
func (a *indexStatsAdapter) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	st, err := a.store.Stats(ctx)
	if err != nil {
		logging.Warn("Failed to collect index stats for metrics: %v", err)
	}
	return metrics.Stats{
		Records:      st.Records,
		Tombstones:   st.Tombstones,
		InvertedKeys: st.InvertedKeys,
		DistinctIDs:  st.DistinctIDs,
	}
}

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	storeStart := time.Now()
	store, err := openBackend(context.Background(), config)
	if err != nil {
		startup.LogFatal("Failed to initialize index store: %v", err)
	}
	startup.LogStoreInit(config.StoreBackend, time.Since(storeStart))
	metrics.InitializeMetrics(config.StoreBackend)
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	idx := index.NewStore(store.files, store.meta)
	fs := newFilesystem(config.FallbackRoots)
	filter := mediatypes.NewFilter(config.CacheDirName)

	ing := ingest.New(
		idx,
		identity.NewParser(),
		resolver.New(config.ResolverURL, nil),
		torrent.NewExpander(torrent.MetainfoDecoder{}, fs),
		fs,
		filter,
	)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	pipeline := ingest.NewPipeline(ing, config.IngestWorkers, ingest.DefaultQueueSize)
	pipeline.SetGate(monitor)
	pipelineCtx, cancelPipeline := context.WithCancel(context.Background())
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		_ = pipeline.Run(pipelineCtx)
	}()

	native := discovery.Native(config.BinDir)
	startup.LogSchedulerInit(config, native.Available())
	scheduler := indexer.NewScheduler(native, pipeline, store.passes, fs, filter, indexer.Config{
		Interval:        config.ScanInterval,
		StartupDelay:    config.ScanStartupDelay,
		FallbackTimeout: config.FallbackTimeout,
		FallbackRoots:   config.FallbackRoots,
		Walker:          indexer.DefaultParallelWalkerConfig(),
	})
	scheduler.Start()
	startup.LogSchedulerStarted()

	if config.WatchEnabled {
		watcher := discovery.NewWatcher(fs, config.FallbackRoots)
		go func() {
			err := watcher.Run(pipelineCtx, func(path string) {
				scheduler.Submit(pipelineCtx, "watch", path)
			})
			if err != nil && pipelineCtx.Err() == nil {
				logging.Error("Filesystem watcher stopped: %v", err)
			}
		}()
	}

	var metricsCollector *metrics.Collector
	if config.MetricsEnabled {
		metricsCollector = metrics.NewCollector(&indexStatsAdapter{store: idx, timeout: 30 * time.Second}, store.dbPath, time.Minute)
		metricsCollector.Start()
	}

	querier := query.New(idx, catalog.New(config.CatalogURL, nil))
	h := handlers.New(querier, idx, scheduler, pipeline)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.RequestID(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownDeps{
		srv:        srv,
		metricsSrv: metricsSrv,
		scheduler:  scheduler,
		stopIngest: func() {
			cancelPipeline()
			<-pipelineDone
		},
		monitor:   monitor,
		collector: metricsCollector,
		store:     store,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownComplete
}

func openBackend(ctx context.Context, config *startup.Config) (*backend, error) {
	if config.StoreBackend == startup.BackendRedis {
		rs, err := redisstore.New(ctx, config.RedisURL, redisstore.DefaultPrefix)
		if err != nil {
			return nil, err
		}
		return &backend{files: rs.Files(), meta: rs.Meta(), passes: rs, close: rs.Close}, nil
	}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &backend{files: db.Files(), meta: db.Meta(), passes: db, close: db.Close, dbPath: db.Path()}, nil
}

// newFilesystem labels filesystem retry metrics by fallback root.
func newFilesystem(roots []string) *filesystem.FS {
	volumes := make(map[string]string, len(roots))
	for _, root := range roots {
		volumes[filepath.Base(root)] = root
	}
	retry := filesystem.DefaultRetryConfig()
	retry.VolumeResolver = filesystem.NewVolumeResolver(volumes)
	return filesystem.New(afero.NewOsFs(), retry)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Addon protocol
	r.HandleFunc("/manifest.json", h.GetManifest).Methods("GET")
	r.HandleFunc("/stremio/v1", h.RPC).Methods("POST")
	r.HandleFunc("/stremio/v1/q.json", h.RPCGet).Methods("GET")
	r.HandleFunc("/stream/{type}/{id}.json", h.StreamREST).Methods("GET")

	// Operational API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/rescan", h.TriggerRescan).Methods("POST")

	return r
}

var shutdownComplete = make(chan struct{})

type shutdownDeps struct {
	srv        *http.Server
	metricsSrv *http.Server
	scheduler  *indexer.Scheduler
	stopIngest func()
	monitor    *memory.Monitor
	collector  *metrics.Collector
	store      *backend
}

func handleShutdown(d shutdownDeps) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := d.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping scan scheduler")
	d.scheduler.Stop()
	startup.LogShutdownStepComplete("Scan scheduler stopped")

	startup.LogShutdownStep("Draining ingest pipeline")
	d.monitor.Stop()
	d.stopIngest()
	startup.LogShutdownStepComplete("Ingest pipeline stopped")

	if d.collector != nil {
		d.collector.Stop()
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Closing index store")
	if err := d.store.close(); err != nil {
		logging.Warn("Store close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Index store closed")
	}

	startup.LogShutdownComplete()
}
