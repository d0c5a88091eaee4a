// Package metrics provides the Prometheus registry and metric catalogue of
// the mako client. All metrics are defined in their respective packages
// (client, engine, ratelimit) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Kind is the Prometheus metric type.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Metric describes one exported metric.
type Metric struct {
	Name    string
	Kind    Kind
	Labels  []string
	Package string
}

// Catalogue lists every metric the module exports.
var Catalogue = []Metric{
	{Name: "mako_requests_total", Kind: KindCounter, Labels: []string{"endpoint", "status"}, Package: "client"},
	{Name: "mako_request_duration_seconds", Kind: KindHistogram, Labels: []string{"endpoint"}, Package: "client"},
	{Name: "mako_errors_total", Kind: KindCounter, Labels: []string{"class"}, Package: "client"},
	{Name: "mako_retries_total", Kind: KindCounter, Labels: []string{"error_class"}, Package: "client"},
	{Name: "mako_retry_backoff_seconds", Kind: KindHistogram, Labels: []string{"error_class"}, Package: "client"},
	{Name: "mako_retry_exhausted_total", Kind: KindCounter, Labels: []string{"error_class"}, Package: "client"},
	{Name: "mako_pages_fetched_total", Kind: KindCounter, Labels: []string{"endpoint"}, Package: "engine"},
	{Name: "mako_page_fetch_duration_seconds", Kind: KindHistogram, Labels: []string{"endpoint"}, Package: "engine"},
	{Name: "mako_enumerations_total", Kind: KindCounter, Labels: []string{"endpoint", "outcome"}, Package: "engine"},
	{Name: "mako_enumeration_truncations_total", Kind: KindCounter, Labels: []string{"endpoint"}, Package: "engine"},
	{Name: "mako_throttle_consecutive_errors", Kind: KindGauge, Package: "ratelimit"},
	{Name: "mako_throttle_blocks_total", Kind: KindCounter, Package: "ratelimit"},
	{Name: "mako_throttle_throttles_total", Kind: KindCounter, Package: "ratelimit"},
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - mako_requests_total{endpoint, status} (Counter): Requests by path and HTTP status, "blocked" and "network_error" included
//   - mako_request_duration_seconds{endpoint} (Histogram): FetchJSON duration including retries
//   - mako_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - mako_retries_total{error_class} (Counter): Retry attempts by error class
//   - mako_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - mako_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Enumeration Metrics (pkg/engine):
//   - mako_pages_fetched_total{endpoint} (Counter): Pages fetched and translated
//   - mako_page_fetch_duration_seconds{endpoint} (Histogram): Page fetch duration
//   - mako_enumerations_total{endpoint, outcome} (Counter): Finished enumerations (exhausted, cancelled, truncated, error, closed)
//   - mako_enumeration_truncations_total{endpoint} (Counter): Enumerations ended by an empty continuation page
//
// Throttle Metrics (pkg/ratelimit):
//   - mako_throttle_consecutive_errors (Gauge): Consecutive 429/5xx responses
//   - mako_throttle_blocks_total (Counter): Requests refused during a 429 block
//   - mako_throttle_throttles_total (Counter): Requests delayed after consecutive server errors
//
// Example Prometheus Queries:
//
//   # Truncated enumerations share
//   sum(rate(mako_enumeration_truncations_total[1h])) /
//   sum(rate(mako_enumerations_total[1h]))
//
//   # Pages per enumeration by endpoint
//   sum by (endpoint) (rate(mako_pages_fetched_total[1h])) /
//   sum by (endpoint) (rate(mako_enumerations_total[1h]))
//
//   # Request Error Rate
//   rate(mako_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(mako_request_duration_seconds_bucket[5m]))
//
//   # Upstream blocks
//   increase(mako_throttle_blocks_total[15m]) > 0
