// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

const namespace = "twpipeline"

// Collector records collection and run metrics on an injected registry
type Collector struct {
	pagesFetched   *prometheus.CounterVec
	itemsCollected *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	cooldowns      *prometheus.CounterVec
	cooldownTime   *prometheus.CounterVec
	gateDecisions  *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastSuccess    prometheus.Gauge
	documentItems  *prometheus.GaugeVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully, by resource",
		}, []string{"resource"}),
		itemsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_collected_total",
			Help:      "New items persisted, by resource",
		}, []string{"resource"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed fetch attempts, by resource and error kind",
		}, []string{"resource", "kind"}),
		cooldowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldowns_total",
			Help:      "Cooldowns taken before retrying a cursor",
		}, []string{"resource", "kind"}),
		cooldownTime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldown_seconds_total",
			Help:      "Time spent cooling down",
		}, []string{"resource"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Schedule gate decisions, by reason",
		}, []string{"reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs, by success",
		}, []string{"success"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a pipeline run",
			Buckets:   []float64{30, 60, 300, 900, 1800, 3600, 7200},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		documentItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_items",
			Help:      "Items held in each persisted document after the last run",
		}, []string{"document"}),
	}

	reg.MustRegister(
		c.pagesFetched,
		c.itemsCollected,
		c.fetchFailures,
		c.cooldowns,
		c.cooldownTime,
		c.gateDecisions,
		c.runs,
		c.runDuration,
		c.lastSuccess,
		c.documentItems,
	)
	return c
}

func (c *Collector) PageFetched(resource string) {
	c.pagesFetched.WithLabelValues(resource).Inc()
}

func (c *Collector) ItemsCollected(resource string, n int) {
	c.itemsCollected.WithLabelValues(resource).Add(float64(n))
}

func (c *Collector) FetchFailed(resource string, kind errs.Kind) {
	c.fetchFailures.WithLabelValues(resource, string(kind)).Inc()
}

func (c *Collector) Cooldown(resource string, kind errs.Kind, d time.Duration) {
	c.cooldowns.WithLabelValues(resource, string(kind)).Inc()
	c.cooldownTime.WithLabelValues(resource).Add(d.Seconds())
}

// RecordGate counts one schedule gate decision
func (c *Collector) RecordGate(reason string) {
	c.gateDecisions.WithLabelValues(reason).Inc()
}

// RecordRun records a finished run from its summary
func (c *Collector) RecordRun(s session.Summary) {
	c.runs.WithLabelValues(strconv.FormatBool(s.Success)).Inc()
	c.runDuration.Observe(s.Duration.Seconds())
	c.documentItems.WithLabelValues("following").Set(float64(s.FollowingTotal))
	c.documentItems.WithLabelValues("tweets").Set(float64(s.TweetsTotal))
	if s.Success {
		c.lastSuccess.Set(float64(s.StartTime.Add(s.Duration).Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node-exporter textfile collector
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
