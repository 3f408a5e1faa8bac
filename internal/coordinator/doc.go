// Package coordinator implements the arbitration loop that suspends and
// resumes the managed inference service around exclusive-access GPU jobs.
// It is structured into small files by concern:
//
//   - coordinator.go: Coordinator type, constructor, run loop, cleanup.
//   - tick.go: the per-tick state machine (idle / pending / handled).
//   - events.go: Event type, EventPublisher, zerolog-backed publisher.
//   - metrics.go: prometheus collectors for ticks, transitions, failures.
//   - status.go: read-only status projection for the ops endpoints.
//
// The loop is strictly sequential: ticks never overlap, and all arbitration
// state is owned by the loop goroutine. The ops endpoints read a separately
// locked snapshot, never the live state.
package coordinator
