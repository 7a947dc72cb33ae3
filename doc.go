// Package main runs the local files addon server.
//
// The server indexes video files and torrent containers found on the local
// machine and answers addon protocol lookups for them: given an IMDb id and
// optional season and episode it returns stream descriptors pointing at the
// local file or at a file inside a local torrent.
//
// # Application Lifecycle
//
//  1. Memory configuration from MEMORY_LIMIT or GOMEMLIMIT
//  2. Configuration loading (see package startup)
//  3. Index store: sqlite under DATA_DIR, or redis when STORE_BACKEND=redis
//  4. Ingest pipeline, gated by the memory monitor
//  5. Scan scheduler: native discovery plus the fallback walk, optionally
//     with a filesystem watcher on the fallback roots
//  6. HTTP server with the addon endpoints and a separate metrics server
//  7. Graceful shutdown on SIGINT/SIGTERM
//
// # Endpoints
//
//	GET  /manifest.json
//	POST /stremio/v1
//	GET  /stremio/v1/q.json?b=<base64>
//	GET  /stream/{type}/{id}.json
//	GET  /api/stats
//	POST /api/rescan
//	GET  /health, /healthz, /livez, /readyz, /version
package main
