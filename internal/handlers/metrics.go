package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localfiles/internal/logging"
)

// MetricsHandler serves the ingest, scan, query and store metrics for the
// separate metrics listener. Gathering errors are logged and the metrics
// that could be collected are still served.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      logging.WithFields(map[string]interface{}{"component": "metrics"}),
			ErrorHandling: promhttp.ContinueOnError,
		}),
	)
}
