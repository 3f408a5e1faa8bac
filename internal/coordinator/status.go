package coordinator

import "gpucoordd/pkg/types"

// publishSnapshot copies the loop-owned state into the locked projection
// read by the ops endpoints. matched may be nil.
func (c *Coordinator) publishSnapshot(matched []string) {
	c.mu.Lock()
	c.snapshot = snapshot{
		state:           c.state(),
		contentionStart: c.contentionStart,
		suspendedByUs:   c.suspendedByUs,
		matched:         matched,
		lastTick:        c.now(),
	}
	c.mu.Unlock()
	if c.suspendedByUs {
		suspendedGauge.Set(1)
	} else {
		suspendedGauge.Set(0)
	}
}

// Status returns the last published view of the arbitration state.
func (c *Coordinator) Status() types.StatusResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp := types.StatusResponse{
		State:                string(c.snapshot.state),
		ServiceName:          c.svc.Name(),
		ServiceSuspendedByUs: c.snapshot.suspendedByUs,
		MatchedProcesses:     c.snapshot.matched,
	}
	if !c.snapshot.contentionStart.IsZero() {
		resp.ContentionSince = c.snapshot.contentionStart.Unix()
	}
	if !c.snapshot.lastTick.IsZero() {
		resp.LastTick = c.snapshot.lastTick.Unix()
	}
	return resp
}
