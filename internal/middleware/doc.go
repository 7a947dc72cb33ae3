// Package middleware provides the HTTP middleware chain for the addon
// server:
//   - RequestID tags every request with an X-Request-ID (uuid)
//   - Logger writes a W3C Extended Log Format line per request
//   - Compression gzips JSON responses above a size threshold
//   - Metrics records Prometheus request counters by route template
package middleware
