package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Raft role/membership metrics
	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_peers_total",
			Help: "Total number of known nodes in the membership map",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_applied_index",
			Help: "Last log index applied to the local KV engine",
		},
	)

	// KV service metrics
	KVRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftkv_kv_requests_total",
			Help: "Total number of Get/Put/Delete requests by operation and result state",
		},
		[]string{"op", "state"},
	)

	KVRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raftkv_kv_request_duration_seconds",
			Help:    "KV request duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Proposal/apply metrics
	ProposalCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftkv_proposal_commit_duration_seconds",
			Help:    "Time from Propose to the proposal's callback firing",
			Buckets: prometheus.DefBuckets,
		},
	)

	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftkv_apply_duration_seconds",
			Help:    "Time the apply worker takes to mutate the KV engine per committed entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	ApplyErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftkv_apply_errors_total",
			Help: "Total number of committed operations that failed to apply to the KV engine",
		},
	)

	// Client-side metrics
	ClientRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftkv_client_retries_total",
			Help: "Total number of client retry attempts by operation",
		},
		[]string{"op"},
	)

	ClientRedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftkv_client_redirects_total",
			Help: "Total number of WRONG_LEADER redirects followed by the client",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RaftIsLeader,
		RaftPeersTotal,
		RaftAppliedIndex,
		KVRequestsTotal,
		KVRequestDuration,
		ProposalCommitDuration,
		ApplyDuration,
		ApplyErrorsTotal,
		ClientRetriesTotal,
		ClientRedirectsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
