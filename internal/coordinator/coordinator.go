package coordinator

import (
	"context"
	"sync"
	"time"

	"gpucoordd/internal/config"
	"gpucoordd/internal/procscan"
	"gpucoordd/internal/service"
)

// State is the arbitration state derived from the durable flags.
type State string

const (
	// StateIdle: no exclusive-access process observed.
	StateIdle State = "idle"
	// StateContentionPending: contention observed, service not yet stopped.
	StateContentionPending State = "contention_pending"
	// StateContentionHandled: the service was stopped by this coordinator
	// and a start is owed.
	StateContentionHandled State = "contention_handled"
)

// cleanupTimeout bounds the final resume attempt at process exit.
const cleanupTimeout = 30 * time.Second

// Options carries the coordinator's collaborators. Nil fields get concrete
// defaults wired from the configuration.
type Options struct {
	Scanner    procscan.Scanner
	Classifier *procscan.Classifier
	Service    service.Controller
	Publisher  EventPublisher
}

// Coordinator runs the polling loop and owns the arbitration state.
type Coordinator struct {
	cfg        config.Config
	scanner    procscan.Scanner
	classifier *procscan.Classifier
	svc        service.Controller
	pub        EventPublisher

	// Injectable time sources so tests can drive the clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	// Arbitration state, owned by the loop goroutine. contentionStart is
	// non-zero iff contention is currently observed. suspendedByUs is true
	// iff this coordinator issued the last successful stop and has not yet
	// issued a matching successful start.
	contentionStart time.Time
	suspendedByUs   bool

	// Snapshot projection read by the ops endpoints.
	mu       sync.RWMutex
	snapshot snapshot
}

type snapshot struct {
	state           State
	contentionStart time.Time
	suspendedByUs   bool
	matched         []string
	lastTick        time.Time
}

// New builds a Coordinator from a validated configuration, wiring default
// collaborators for any Options field left nil.
func New(cfg config.Config, opts Options) *Coordinator {
	c := &Coordinator{
		cfg:        cfg,
		scanner:    opts.Scanner,
		classifier: opts.Classifier,
		svc:        opts.Service,
		pub:        opts.Publisher,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	if c.scanner == nil {
		c.scanner = procscan.NewScanner()
	}
	if c.classifier == nil {
		c.classifier = procscan.NewClassifier(cfg.LiteralPatterns, cfg.KeywordStems)
	}
	if c.svc == nil {
		c.svc = service.NewSystemd(cfg.ServiceName)
	}
	if c.pub == nil {
		c.pub = noopPublisher{}
	}
	c.snapshot.state = StateIdle
	return c
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Run executes the polling loop until ctx is canceled, then performs
// cleanup. A resume owed at exit is always attempted, whatever ended the
// loop. Run returns nil on cancellation; it is the only sanctioned exit.
func (c *Coordinator) Run(ctx context.Context) error {
	c.pub.Publish(Event{Name: EventLoopStarted, Fields: map[string]any{
		"service":  c.svc.Name(),
		"patterns": c.cfg.LiteralPatterns,
		"stems":    c.cfg.KeywordStems,
	}})
	defer c.cleanup()

	for {
		select {
		case <-ctx.Done():
			c.pub.Publish(Event{Name: EventLoopStopped, Fields: nil})
			return nil
		default:
		}
		c.safeTick(ctx)
		c.sleep(ctx, c.cfg.PollInterval.Std())
	}
}

// safeTick runs one tick, absorbing a panic escaping the tick body. A
// panicked tick is logged and treated as if it produced no contention
// change; the loop continues.
func (c *Coordinator) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			tickPanicsTotal.Inc()
			c.pub.Publish(Event{Name: EventTickPanic, Fields: map[string]any{"panic": r}})
		}
	}()
	c.tick(ctx)
}

// cleanup is the crash-safety net: if a stop was issued without a matching
// successful start, attempt the start now, regardless of why the loop ended.
func (c *Coordinator) cleanup() {
	if !c.suspendedByUs {
		return
	}
	c.pub.Publish(Event{Name: EventCleanupResume, Fields: map[string]any{"service": c.svc.Name()}})
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	c.resume(ctx)
	c.publishSnapshot(nil)
}

// resume attempts the owed start and clears suspendedByUs on success.
func (c *Coordinator) resume(ctx context.Context) bool {
	if err := c.svc.Start(ctx); err != nil {
		actionFailuresTotal.WithLabelValues("start").Inc()
		c.pub.Publish(Event{Name: EventStartFailed, Fields: map[string]any{
			"service": c.svc.Name(),
			"error":   err.Error(),
		}})
		return false
	}
	c.suspendedByUs = false
	serviceStartsTotal.Inc()
	c.pub.Publish(Event{Name: EventServiceStarted, Fields: map[string]any{"service": c.svc.Name()}})
	return true
}

// state derives the arbitration state from the durable flags.
func (c *Coordinator) state() State {
	switch {
	case c.suspendedByUs:
		return StateContentionHandled
	case !c.contentionStart.IsZero():
		return StateContentionPending
	default:
		return StateIdle
	}
}
