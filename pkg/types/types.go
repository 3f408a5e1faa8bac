// Package types holds the wire-facing payloads served by the ops HTTP
// endpoints.
package types

// StatusResponse is the JSON body served by GET /status.
type StatusResponse struct {
	// Arbitration state: idle, contention_pending, or contention_handled.
	State string `json:"state"`
	// Managed systemd unit.
	ServiceName string `json:"service_name"`
	// True when this coordinator stopped the service and still owes a start.
	ServiceSuspendedByUs bool `json:"service_suspended_by_us"`
	// Unix seconds when the current contention episode began; 0 when none.
	ContentionSince int64 `json:"contention_since,omitempty"`
	// Display names of the processes matched on the last tick.
	MatchedProcesses []string `json:"matched_processes,omitempty"`
	// Unix seconds of the last completed tick; 0 before the first tick.
	LastTick int64 `json:"last_tick,omitempty"`
}

// HealthResponse is the JSON body served by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
