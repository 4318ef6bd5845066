// internal/infra/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatches counts send attempts through the dispatch service.
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_dispatch_total",
			Help: "Total number of dispatch attempts by trigger, channel and outcome",
		},
		[]string{"trigger", "channel", "outcome"},
	)
	// GatewayLatency tracks outbound messaging API calls.
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_gateway_request_seconds",
			Help:    "Latency of messaging gateway requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "status"},
	)
	// AuthDecisions counts AuthGate results.
	AuthDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_auth_decisions_total",
			Help: "Total number of authentication decisions by mode and status",
		},
		[]string{"mode", "status"},
	)
	// SchedulerEvaluations counts scheduler ticks by their terminal state.
	SchedulerEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scheduler_evaluations_total",
			Help: "Total number of scheduler evaluations by outcome",
		},
		[]string{"trigger", "outcome"},
	)
	// ActiveSessions is the number of running scheduler sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_scheduler_active_sessions",
			Help: "Current number of active scheduler sessions",
		},
	)
	// SettingsSyncPushes counts preference sync attempts.
	SettingsSyncPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_settings_sync_pushes_total",
			Help: "Total number of preference sync pushes by outcome",
		},
		[]string{"outcome"},
	)
)

// Registry holds every collector of the service.
var Registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Dispatches,
		GatewayLatency,
		AuthDecisions,
		SchedulerEvaluations,
		ActiveSessions,
		SettingsSyncPushes,
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
