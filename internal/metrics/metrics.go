// Package metrics exposes Prometheus instrumentation for the store and
// dispatcher, grounded on the teacher's HealthLogger
// (system_health_logging.go): a registry of gauges/counters, a
// periodic-snapshot collector, and a promhttp endpoint, reworked from
// blockchain health fields to linkspace store/dispatch fields.
package metrics

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Source supplies the raw numbers a Collector samples on each tick. A
// store.Store and dispatch.Dispatcher both implement narrow views of this
// via small adapter functions at the call site, avoiding an import cycle
// between metrics and store/dispatch.
type Source struct {
	LogHead       func() uint64
	ActiveWatches func() int
	EnvID         func() [8]byte
}

// Collector samples a Source on an interval and publishes Prometheus
// gauges plus write/query counters callers increment directly.
type Collector struct {
	log      *logrus.Logger
	registry *prometheus.Registry
	src      Source

	logHeadGauge  prometheus.Gauge
	watchesGauge  prometheus.Gauge
	writesTotal   prometheus.Counter
	rejectsTotal  prometheus.Counter
	queriesTotal  *prometheus.CounterVec
	deliveredTotal prometheus.Counter
	envInfo       *prometheus.GaugeVec
	envLabelSet   bool
}

// New builds a Collector and registers its metrics on a fresh registry.
func New(src Source, log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.New()
	}
	reg := prometheus.NewRegistry()
	c := &Collector{log: log, registry: reg, src: src}

	c.logHeadGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkspace_log_head_recv",
		Help: "Highest recv committed to the Log",
	})
	c.watchesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkspace_active_watches",
		Help: "Number of currently active dispatcher watches",
	})
	c.writesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkspace_writes_total",
		Help: "Total points successfully written to the store",
	})
	c.rejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkspace_write_rejects_total",
		Help: "Total points rejected by write validation",
	})
	c.queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkspace_queries_total",
		Help: "Total queries executed, by mode",
	}, []string{"mode"})
	c.deliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkspace_points_delivered_total",
		Help: "Total points delivered to watch handlers",
	})
	c.envInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkspace_environment_info",
		Help: "Constant 1, labeled with the environment's id",
	}, []string{"env_id"})

	reg.MustRegister(
		c.logHeadGauge,
		c.watchesGauge,
		c.writesTotal,
		c.rejectsTotal,
		c.queriesTotal,
		c.deliveredTotal,
		c.envInfo,
	)
	return c
}

// ObserveWrite increments the write counters for one Write call's results.
func (c *Collector) ObserveWrite(newCount, rejectCount int) {
	c.writesTotal.Add(float64(newCount))
	c.rejectsTotal.Add(float64(rejectCount))
}

// ObserveQuery records one query execution under its mode label.
func (c *Collector) ObserveQuery(mode string, delivered int) {
	c.queriesTotal.WithLabelValues(mode).Inc()
	c.deliveredTotal.Add(float64(delivered))
}

// sample pulls the current gauges from Source.
func (c *Collector) sample() {
	if c.src.LogHead != nil {
		c.logHeadGauge.Set(float64(c.src.LogHead()))
	}
	if c.src.ActiveWatches != nil {
		c.watchesGauge.Set(float64(c.src.ActiveWatches()))
	}
	if c.src.EnvID != nil && !c.envLabelSet {
		id := c.src.EnvID()
		c.envInfo.WithLabelValues(hex.EncodeToString(id[:])).Set(1)
		c.envLabelSet = true
	}
}

// Run samples on interval until ctx is done.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.sample()
	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-ctx.Done():
			return
		}
	}
}

// Serve exposes /metrics on addr and returns the server for the caller to
// shut down.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

// Shutdown gracefully stops a server returned by Serve.
func (c *Collector) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
