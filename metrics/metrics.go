package metrics

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicketsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_tickets_enqueued_total",
			Help: "Total matchmaking tickets created",
		},
	)

	TicketsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_tickets_cancelled_total",
			Help: "Total matchmaking tickets cancelled by players",
		},
	)

	MatchesStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_matches_started_total",
			Help: "Total matches resolved with a server and start token",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchmaker_queue_depth",
			Help: "Tickets currently waiting in the FIFO queue",
		},
	)

	AllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_allocations_total",
			Help: "Dedicated-server allocation attempts at match start",
		},
		[]string{"result"}, // success|retry
	)

	FormationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchmaker_formation_duration_seconds",
			Help:    "Time from group formation to match start",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_token_verifications_total",
			Help: "Start-token verification outcomes",
		},
		[]string{"result"}, // success or a failure reason code
	)
)

func init() {
	prometheus.MustRegister(TicketsEnqueuedTotal)
	prometheus.MustRegister(TicketsCancelledTotal)
	prometheus.MustRegister(MatchesStartedTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(AllocationsTotal)
	prometheus.MustRegister(FormationDuration)
	prometheus.MustRegister(TokenVerificationsTotal)
}

func Register(r *mux.Router) {
	r.Handle("/metrics", promhttp.Handler())
}
