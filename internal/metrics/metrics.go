// Package metrics exposes monitor telemetry over a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

const namespace = "loanmon"

// Collector holds monitor metrics.
type Collector struct {
	registry *prometheus.Registry

	resolutions    *prometheus.CounterVec
	lookupFailures *prometheus.CounterVec
	currentLTV     prometheus.Gauge
	riskTier       prometheus.Gauge
	runDuration    prometheus.Histogram
	runs           *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Currency price decisions by resolution tier",
		},
		[]string{"source"},
	)
	c.lookupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_lookup_failures_total",
			Help:      "Failed price lookups by stage",
		},
		[]string{"stage"},
	)
	c.currentLTV = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "loan_current_ltv_percent",
		Help:      "Current loan-to-value ratio in percent",
	})
	c.riskTier = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "loan_risk_tier",
		Help:      "Risk tier severity (0=SAFE, 1=CAUTION, 2=WARNING, 3=HIGH_RISK, 4=MARGIN_CALL)",
	})
	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "monitor_run_duration_seconds",
		Help:      "Duration of one monitor run",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})
	c.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_runs_total",
			Help:      "Monitor runs by result",
		},
		[]string{"result"},
	)

	c.registry.MustRegister(
		c.resolutions,
		c.lookupFailures,
		c.currentLTV,
		c.riskTier,
		c.runDuration,
		c.runs,
	)

	return c
}

func (c *Collector) ObserveResolution(source domain.PriceSource) {
	c.resolutions.WithLabelValues(string(source)).Inc()
}

func (c *Collector) ObserveLookupFailure(stage string) {
	c.lookupFailures.WithLabelValues(stage).Inc()
}

// ObserveLoan records the latest LTV and risk tier.
func (c *Collector) ObserveLoan(currentLTV decimal.Decimal, tier domain.RiskTier) {
	c.currentLTV.Set(currentLTV.InexactFloat64())
	c.riskTier.Set(float64(tier.Severity()))
}

// ObserveRun records a finished run; result is "ok" or "error".
func (c *Collector) ObserveRun(d time.Duration, err error) {
	c.runDuration.Observe(d.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.runs.WithLabelValues(result).Inc()
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
