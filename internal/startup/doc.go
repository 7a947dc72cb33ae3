// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] layers three sources, later ones winning: a .env file in the
// working directory, the TOML file named by LOCALFILES_CONFIG, and the
// process environment. Supported settings:
//
//   - DATA_DIR: application data root (default: ~/.stremio, %APPDATA%/stremio
//     or ~/Library/Application Support/stremio)
//   - PORT: addon HTTP port (default: 3033)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable the metrics server (default: true)
//   - STORE_BACKEND: sqlite or redis (default: sqlite)
//   - REDIS_URL: redis connection URL (default: redis://localhost:6379/0)
//   - CACHE_DIR_NAME: directory name excluded from indexing (default: stremio-cache)
//   - SCAN_INTERVAL: time between scan passes (default: 1m)
//   - SCAN_STARTUP_DELAY: delay before the first pass (default: 5s)
//   - FALLBACK_TIMEOUT: fallback walk budget per pass (default: 3s)
//   - FALLBACK_ROOTS: list of walk roots, separated like PATH
//   - WATCH_ENABLED: watch fallback roots with fsnotify (default: false)
//   - INGEST_WORKERS: ingest worker count, 0 for auto (default: 0)
//   - CATALOG_URL, RESOLVER_URL: upstream catalog endpoints
//   - LOG_LEVEL, DEBUG, LOCAL_FILES_LOG: see package logging
//   - LOG_HEALTH_CHECKS: log health probe requests (default: false)
//
// The sqlite index lives at DATA_DIR/stremio-local-files/index.db.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogStoreInit], [LogSchedulerInit], [LogHTTPRoutes], [LogServerStarted] and
// the LogShutdown helpers print the sectioned startup and shutdown log.
package startup
