/*
Package metrics provides Prometheus metrics collection and exposition for
raftkv nodes.

All metrics are registered at package init via prometheus.MustRegister and
exposed over HTTP for scraping.

	┌──────────────── METRICS SYSTEM ────────────────┐
	│  Prometheus Registry (MustRegister at init)    │
	│        │                                        │
	│        ▼                                        │
	│  Raft: is_leader, peers_total, applied_index   │
	│  KV service: requests_total, request_duration  │
	│  Apply worker: apply_duration, apply_errors    │
	│  Client: retries_total, redirects_total        │
	│        │                                        │
	│        ▼                                        │
	│  GET /metrics  (promhttp.Handler)              │
	└──────────────────────────────────────────────────┘

# Metrics Catalog

raftkv_raft_is_leader (gauge): 1 if this node is the Raft leader.

raftkv_raft_peers_total (gauge): size of the current membership map.

raftkv_raft_applied_index (gauge): last log index applied to the local
KV engine.

raftkv_kv_requests_total{op,state} (counter): Get/Put/Delete requests by
result state (OK, NOT_FOUND, WRONG_LEADER, IO_ERROR).

raftkv_kv_request_duration_seconds{op} (histogram): KV request latency.

raftkv_proposal_commit_duration_seconds (histogram): time from Propose to
the proposal's callback firing.

raftkv_apply_duration_seconds (histogram): time the apply worker spends
mutating the KV engine per committed entry.

raftkv_apply_errors_total (counter): committed entries that failed to
apply to the KV engine.

raftkv_client_retries_total{op} (counter): client-side retry attempts.

raftkv_client_redirects_total (counter): WRONG_LEADER redirects the client
followed.

# Health and readiness

RegisterComponent/UpdateComponent track component health ("raft",
"kvstore", "kvservice") for the /health, /ready, and /live HTTP handlers.
*/
package metrics
