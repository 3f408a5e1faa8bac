package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total polling loop ticks",
		},
	)

	tickPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "loop",
			Name:      "tick_panics_total",
			Help:      "Ticks aborted by a recovered panic",
		},
	)

	contentionEpisodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "contention_episodes_total",
			Help:      "Distinct contention episodes observed",
		},
	)

	serviceStopsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "service_stops_total",
			Help:      "Successful service stops issued by the coordinator",
		},
	)

	serviceStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "service_starts_total",
			Help:      "Successful service starts issued by the coordinator",
		},
	)

	actionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "action_failures_total",
			Help:      "Failed service stop/start commands",
		},
		[]string{"op"},
	)

	scanFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "scan_failures_total",
			Help:      "Process table snapshots that failed outright",
		},
	)

	suspendedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gpucoordd",
			Subsystem: "arbitration",
			Name:      "service_suspended",
			Help:      "1 while the service is suspended by this coordinator",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ticksTotal,
		tickPanicsTotal,
		contentionEpisodesTotal,
		serviceStopsTotal,
		serviceStartsTotal,
		actionFailuresTotal,
		scanFailuresTotal,
		suspendedGauge,
	)
}
