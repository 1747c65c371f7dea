// metrics.go — chatd 的 Prometheus 计量, 全部挂默认注册表, /metrics 直接用 promhttp。
package aguiserver

import "github.com/prometheus/client_golang/prometheus"

var (
	metricRunsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_runs_started_total",
		Help: "Number of runs accepted and started.",
	})

	metricRunsFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_runs_finished_total",
		Help: "Number of runs that reached RUN_FINISHED.",
	})

	metricRunsErrored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_runs_errored_total",
		Help: "Number of runs that ended with RUN_ERROR.",
	})

	metricRunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_runs_in_flight",
		Help: "Runs currently streaming to a client.",
	})

	metricEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatd_events_emitted_total",
		Help: "Protocol events written to clients, by event type.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(
		metricRunsStarted,
		metricRunsFinished,
		metricRunsErrored,
		metricRunsInFlight,
		metricEventsEmitted,
	)
}
