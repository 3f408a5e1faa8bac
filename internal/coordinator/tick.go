package coordinator

import (
	"context"
	"time"

	"gpucoordd/internal/procscan"
)

// tick runs one observe/decide/act cycle. Strictly sequential with other
// ticks; ctx bounds the external calls made within it.
func (c *Coordinator) tick(ctx context.Context) {
	ticksTotal.Inc()
	matched := c.observe(ctx)
	if len(matched) > 0 {
		c.onContention(ctx, matched)
	} else {
		c.onClear(ctx)
	}
	c.publishSnapshot(procscan.Names(matched))
}

// observe snapshots the process table and classifies it. A failed snapshot
// degrades to "no contention observed" rather than failing the tick.
func (c *Coordinator) observe(ctx context.Context) []procscan.Process {
	snap, err := c.scanner.Snapshot(ctx)
	if err != nil {
		scanFailuresTotal.Inc()
		c.pub.Publish(Event{Name: EventScanFailed, Fields: map[string]any{"error": err.Error()}})
		return nil
	}
	return c.classifier.Classify(snap)
}

// onContention handles a tick with at least one exclusive-access process.
func (c *Coordinator) onContention(ctx context.Context, matched []procscan.Process) {
	if c.contentionStart.IsZero() {
		c.contentionStart = c.now()
		contentionEpisodesTotal.Inc()
		c.pub.Publish(Event{Name: EventContentionDetected, Fields: map[string]any{
			"processes": procscan.Names(matched),
		}})
	}
	if c.suspendedByUs {
		// Steady state while the batch job runs; never stop twice.
		return
	}
	if c.now().Sub(c.contentionStart) < c.cfg.GracePeriod.Std() {
		return
	}
	if !c.svc.IsActive(ctx) {
		// Nothing to suspend; stay pending without acting.
		return
	}
	if err := c.svc.Stop(ctx); err != nil {
		actionFailuresTotal.WithLabelValues("stop").Inc()
		c.pub.Publish(Event{Name: EventStopFailed, Fields: map[string]any{
			"service": c.svc.Name(),
			"error":   err.Error(),
		}})
		return // retried next tick while contention persists
	}
	c.suspendedByUs = true
	serviceStopsTotal.Inc()
	c.pub.Publish(Event{Name: EventServiceStopped, Fields: map[string]any{"service": c.svc.Name()}})
	// Give the driver time to release device memory before the batch job
	// claims it.
	c.sleep(ctx, c.cfg.SettleDelayAfterStop.Std())
}

// onClear handles a tick with no exclusive-access process observed.
func (c *Coordinator) onClear(ctx context.Context) {
	clearedNow := false
	if !c.contentionStart.IsZero() {
		c.contentionStart = time.Time{}
		clearedNow = true
		c.pub.Publish(Event{Name: EventContentionCleared, Fields: nil})
	}
	if !c.suspendedByUs {
		return
	}
	if clearedNow {
		// Let the departing process finish releasing resources.
		c.sleep(ctx, c.cfg.SettleDelayAfterClear.Std())
	}
	// A failed start keeps suspendedByUs set; retried on later empty ticks
	// and guaranteed retried at cleanup.
	c.resume(ctx)
}
