/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the dataset subsystem's health as Prometheus
// collectors on a private registry, grounded on
// ptp/sptp/stats.PrometheusExporter: a dedicated prometheus.Registry
// plus promhttp.Handler rather than the global DefaultRegisterer, so a
// meshcopd running embedded in a larger process never collides with
// that process's own metric names.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics is the dataset subsystem's metric surface: MGMT outcome
// counts by URI and result (spec.md §4.4.3's State TLV Accept/Reject
// outcome), the MGMT_SET retry counter (manager.kSendSetDelay's retry
// loop), and a gauge for the Pending Dataset's remaining delay.
type Metrics struct {
	registry *prometheus.Registry

	mgmtResults  *prometheus.CounterVec
	syncRetries  prometheus.Counter
	delayGauge   prometheus.Gauge
	updaterConfl prometheus.Counter
}

// New constructs a Metrics bound to a fresh, private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mgmtResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshcop",
			Name:      "mgmt_requests_total",
			Help:      "MGMT dataset requests handled, by CoAP URI and outcome.",
		}, []string{"uri", "result"}),
		syncRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcop",
			Name:      "sync_retries_total",
			Help:      "MGMT_SET-to-leader retries scheduled after a stale local save.",
		}),
		delayGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshcop",
			Name:      "pending_delay_remaining_ms",
			Help:      "Milliseconds remaining on the Pending Dataset's delay timer, or 0 if none is armed.",
		}),
		updaterConfl: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcop",
			Name:      "updater_conflicts_total",
			Help:      "DatasetUpdater requests that finished with ErrAlready due to a competing update.",
		}),
	}
	m.registry.MustRegister(m.mgmtResults, m.syncRetries, m.delayGauge, m.updaterConfl)
	return m
}

// ObserveMGMT records one handled MGMT request's outcome. result is
// typically "accept", "reject", or "pending".
func (m *Metrics) ObserveMGMT(uri, result string) {
	m.mgmtResults.WithLabelValues(uri, result).Inc()
}

// IncSyncRetry records one scheduled MGMT_SET retry.
func (m *Metrics) IncSyncRetry() {
	m.syncRetries.Inc()
}

// SetPendingDelayRemaining reports the Pending Dataset's current
// remaining delay, or 0 once none is armed.
func (m *Metrics) SetPendingDelayRemaining(ms float64) {
	m.delayGauge.Set(ms)
}

// IncUpdaterConflict records one DatasetUpdater request finishing with
// ErrAlready.
func (m *Metrics) IncUpdaterConflict() {
	m.updaterConfl.Inc()
}

// Handler returns the http.Handler that serves this Metrics' registry
// in Prometheus exposition format, for mounting at "/metrics".
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ListenAndServe serves the metrics handler on addr, blocking until
// the listener fails. cmd/meshcopd runs this in its own errgroup
// goroutine alongside the signal-wait goroutine, the same concurrent-startup
// shape cmd/ptp4u/main.go gets from `go st.Start(c.MonitoringPort)`,
// upgraded to propagate the error instead of leaking the goroutine.
func (m *Metrics) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Infof("meshcop: serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
