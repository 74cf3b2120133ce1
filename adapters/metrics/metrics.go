// Package metrics provides Prometheus metrics collection for querywire.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/artpar/querywire/core/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "querywire"

// Result label values.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultFault   = "fault"
)

// Collector holds all Prometheus metrics for querywire.
// It implements schema.Observer.
type Collector struct {
	// Extraction metrics
	Extractions     *prometheus.CounterVec
	ExtractErrors   *prometheus.CounterVec
	LeftoverKeys    *prometheus.CounterVec
	BundledRequests *prometheus.CounterVec
	BundledKeys     *prometheus.HistogramVec

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Schema registry metrics
	SchemasLoaded      prometheus.Gauge
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter
	SchemaLastReload   prometheus.Gauge
}

var _ schema.Observer = (*Collector)(nil)

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Total number of parameter extractions",
			},
			[]string{"schema", "result"},
		),
		ExtractErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_errors_total",
				Help:      "Total number of request errors by code",
			},
			[]string{"schema", "code"},
		),
		LeftoverKeys: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leftover_keys_total",
				Help:      "Total number of wire keys not matched by any template",
			},
			[]string{"schema"},
		),
		BundledRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundles_total",
				Help:      "Total number of bundle calls",
			},
			[]string{"schema", "result"},
		),
		BundledKeys: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bundle_keys",
				Help:      "Number of wire keys produced per bundle call",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"schema"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "action", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "action"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		SchemasLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schemas_loaded",
				Help:      "Number of action schemas currently registered",
			},
		),
		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Total number of successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reload_errors_total",
				Help:      "Total number of failed schema reloads",
			},
		),
		SchemaLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schema_last_reload_timestamp",
				Help:      "Unix timestamp of last successful schema reload",
			},
		),
	}
}

// ObserveExtract records the outcome of one Extract call.
func (c *Collector) ObserveExtract(name string, leftovers int, err error) {
	c.Extractions.WithLabelValues(name, result(err)).Inc()
	if leftovers > 0 {
		c.LeftoverKeys.WithLabelValues(name).Add(float64(leftovers))
	}
	for _, code := range Codes(err) {
		c.ExtractErrors.WithLabelValues(name, string(code)).Inc()
	}
}

// ObserveBundle records the outcome of one Bundle call.
func (c *Collector) ObserveBundle(name string, keys int, err error) {
	c.BundledRequests.WithLabelValues(name, result(err)).Inc()
	if err == nil {
		c.BundledKeys.WithLabelValues(name).Observe(float64(keys))
	}
}

// ObserveRequest records a finished HTTP request.
func (c *Collector) ObserveRequest(method, action string, status int, d time.Duration) {
	c.RequestsTotal.WithLabelValues(method, action, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, action).Observe(d.Seconds())
}

// ObserveReload records a schema reload attempt.
func (c *Collector) ObserveReload(loaded int, err error) {
	if err != nil {
		c.SchemaReloadErrors.Inc()
		return
	}
	c.SchemaReloads.Inc()
	c.SchemasLoaded.Set(float64(loaded))
	c.SchemaLastReload.SetToCurrentTime()
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, schema.ErrSchema):
		return ResultFault
	default:
		return ResultInvalid
	}
}

// Codes returns the request error codes in err, including every error of
// a joined error.
func Codes(err error) []schema.Code {
	var codes []schema.Code
	for _, e := range schema.Errors(err) {
		codes = append(codes, e.Code)
	}
	return codes
}
