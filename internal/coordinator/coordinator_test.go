package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"gpucoordd/internal/config"
	"gpucoordd/internal/procscan"
)

type fakeScanner struct {
	procs []procscan.Process
	err   error
}

func (f *fakeScanner) Snapshot(ctx context.Context) ([]procscan.Process, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.procs, nil
}

type panicScanner struct{}

func (panicScanner) Snapshot(ctx context.Context) ([]procscan.Process, error) {
	panic("process table exploded")
}

type fakeService struct {
	name     string
	active   bool
	stopErr  error
	startErr error
	stops    int
	starts   int
	queries  int
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) IsActive(ctx context.Context) bool {
	f.queries++
	return f.active
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.stops++
	if f.stopErr != nil {
		return f.stopErr
	}
	f.active = false
	return nil
}

func (f *fakeService) Start(ctx context.Context) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

type recordingPublisher struct {
	events []Event
}

func (r *recordingPublisher) Publish(ev Event) { r.events = append(r.events, ev) }

func (r *recordingPublisher) names() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

func (r *recordingPublisher) has(name string) bool {
	for _, ev := range r.events {
		if ev.Name == name {
			return true
		}
	}
	return false
}

// harness drives the state machine tick by tick with a fake clock. Sleeps
// advance the clock instead of blocking.
type harness struct {
	c      *Coordinator
	scan   *fakeScanner
	svc    *fakeService
	pub    *recordingPublisher
	clock  time.Time
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		scan:  &fakeScanner{},
		svc:   &fakeService{name: "vllm.service", active: true},
		pub:   &recordingPublisher{},
		clock: time.Unix(1_700_000_000, 0),
	}
	cfg := config.Default()
	h.c = New(cfg, Options{Scanner: h.scan, Service: h.svc, Publisher: h.pub})
	h.c.now = func() time.Time { return h.clock }
	h.c.sleep = func(ctx context.Context, d time.Duration) {
		h.sleeps = append(h.sleeps, d)
		h.clock = h.clock.Add(d)
	}
	return h
}

func (h *harness) tick() { h.c.tick(context.Background()) }

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) setContending(contending bool) {
	if contending {
		h.scan.procs = []procscan.Process{{PID: 42, Name: "python", Cmdline: "python -m rdb --build"}}
	} else {
		h.scan.procs = nil
	}
}

// suspend walks the harness through detection, grace expiry, and stop.
func (h *harness) suspend(t *testing.T) {
	t.Helper()
	h.setContending(true)
	h.tick()
	h.advance(9 * time.Second)
	h.tick()
	if !h.c.suspendedByUs || h.svc.stops != 1 {
		t.Fatalf("harness failed to reach suspended state: stops=%d suspended=%v", h.svc.stops, h.c.suspendedByUs)
	}
}

func TestIdleTickDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.tick()
	if h.c.state() != StateIdle {
		t.Fatalf("expected idle, got %s", h.c.state())
	}
	if h.svc.stops != 0 || h.svc.starts != 0 || h.svc.queries != 0 {
		t.Fatalf("idle tick touched the service: %+v", h.svc)
	}
}

func TestContentionDetectionRecordsStart(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick()
	if h.c.state() != StateContentionPending {
		t.Fatalf("expected pending, got %s", h.c.state())
	}
	if h.c.contentionStart != h.clock {
		t.Fatalf("contention start not recorded at detection time")
	}
	if !h.pub.has(EventContentionDetected) {
		t.Fatalf("missing detection event, got %v", h.pub.names())
	}
	if h.svc.stops != 0 {
		t.Fatalf("stop issued before grace period")
	}
}

func TestHysteresisShortContentionNeverStops(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick()
	h.advance(5 * time.Second) // still inside 8s grace
	h.tick()
	h.setContending(false)
	h.tick()
	if h.svc.stops != 0 {
		t.Fatalf("transient contention must not stop the service")
	}
	if h.c.state() != StateIdle {
		t.Fatalf("expected idle after clear, got %s", h.c.state())
	}
	if !h.c.contentionStart.IsZero() {
		t.Fatalf("contention start not cleared")
	}
}

func TestGracePeriodTriggerStopsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick() // t=0: detected
	h.advance(5 * time.Second)
	h.tick() // t=5: inside grace
	if h.svc.stops != 0 {
		t.Fatalf("stop before grace elapsed")
	}
	h.advance(4 * time.Second)
	h.tick() // t=9: grace elapsed, service active
	if h.svc.stops != 1 {
		t.Fatalf("expected exactly one stop, got %d", h.svc.stops)
	}
	if h.c.state() != StateContentionHandled || !h.c.suspendedByUs {
		t.Fatalf("expected handled state, got %s", h.c.state())
	}
	if len(h.sleeps) == 0 || h.sleeps[len(h.sleeps)-1] != 3*time.Second {
		t.Fatalf("expected settle delay after stop, sleeps=%v", h.sleeps)
	}
	// Steady state: further contending ticks never stop again.
	for i := 0; i < 5; i++ {
		h.advance(3 * time.Second)
		h.tick()
	}
	if h.svc.stops != 1 {
		t.Fatalf("double stop: %d", h.svc.stops)
	}
}

func TestNoStopWhileServiceInactive(t *testing.T) {
	h := newHarness(t)
	h.svc.active = false
	h.setContending(true)
	h.tick()
	h.advance(10 * time.Second)
	h.tick()
	if h.svc.stops != 0 {
		t.Fatalf("stop issued for inactive service")
	}
	if h.c.state() != StateContentionPending {
		t.Fatalf("expected pending, got %s", h.c.state())
	}
	// Contention ends without us ever acting: no resume owed.
	h.setContending(false)
	h.tick()
	if h.svc.starts != 0 {
		t.Fatalf("unowed start issued")
	}
}

func TestStopFailureRetriedNextTick(t *testing.T) {
	h := newHarness(t)
	h.svc.stopErr = errors.New("systemctl stop failed")
	h.setContending(true)
	h.tick()
	h.advance(9 * time.Second)
	h.tick()
	if h.svc.stops != 1 || h.c.suspendedByUs {
		t.Fatalf("failed stop must not mark suspended: stops=%d", h.svc.stops)
	}
	if h.c.state() != StateContentionPending {
		t.Fatalf("expected pending after failed stop, got %s", h.c.state())
	}
	if !h.pub.has(EventStopFailed) {
		t.Fatalf("missing stop failure event: %v", h.pub.names())
	}
	h.advance(3 * time.Second)
	h.tick()
	if h.svc.stops != 2 {
		t.Fatalf("stop not retried: %d", h.svc.stops)
	}
	h.svc.stopErr = nil
	h.advance(3 * time.Second)
	h.tick()
	if h.svc.stops != 3 || !h.c.suspendedByUs {
		t.Fatalf("recovered stop not applied: stops=%d suspended=%v", h.svc.stops, h.c.suspendedByUs)
	}
}

func TestResumeAfterClearWithSettleDelay(t *testing.T) {
	h := newHarness(t)
	h.suspend(t)
	h.sleeps = nil
	h.setContending(false)
	h.advance(3 * time.Second)
	h.tick()
	if len(h.sleeps) != 1 || h.sleeps[0] != 2*time.Second {
		t.Fatalf("expected 2s settle before start, sleeps=%v", h.sleeps)
	}
	if h.svc.starts != 1 {
		t.Fatalf("expected exactly one start, got %d", h.svc.starts)
	}
	if h.c.suspendedByUs || h.c.state() != StateIdle {
		t.Fatalf("expected idle with flag cleared, got %s", h.c.state())
	}
	if !h.pub.has(EventContentionCleared) || !h.pub.has(EventServiceStarted) {
		t.Fatalf("missing events: %v", h.pub.names())
	}
	// Later empty ticks do not start again.
	h.tick()
	if h.svc.starts != 1 {
		t.Fatalf("redundant start issued: %d", h.svc.starts)
	}
}

func TestStartFailureKeepsResumeOwed(t *testing.T) {
	h := newHarness(t)
	h.suspend(t)
	h.svc.startErr = errors.New("systemctl start failed")
	h.setContending(false)
	h.tick()
	if h.svc.starts != 1 || !h.c.suspendedByUs {
		t.Fatalf("failed start must keep flag: starts=%d suspended=%v", h.svc.starts, h.c.suspendedByUs)
	}
	if h.c.state() != StateContentionHandled {
		t.Fatalf("expected handled while resume owed, got %s", h.c.state())
	}
	// Retried on a subsequent empty tick.
	h.tick()
	if h.svc.starts != 2 {
		t.Fatalf("start not retried: %d", h.svc.starts)
	}
	h.svc.startErr = nil
	h.tick()
	if h.svc.starts != 3 || h.c.suspendedByUs {
		t.Fatalf("recovered start not applied: starts=%d", h.svc.starts)
	}
}

func TestContentionReappearingWhileSuspendedDoesNotRestop(t *testing.T) {
	h := newHarness(t)
	h.suspend(t)
	h.svc.startErr = errors.New("still failing")
	h.setContending(false)
	h.tick() // clear, failed resume
	h.setContending(true)
	h.advance(20 * time.Second)
	h.tick() // new episode while resume still owed
	if h.svc.stops != 1 {
		t.Fatalf("stop reissued while suspended: %d", h.svc.stops)
	}
	if h.c.state() != StateContentionHandled {
		t.Fatalf("expected handled, got %s", h.c.state())
	}
}

func TestScanFailureTreatedAsNoContention(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick()
	h.scan.err = errors.New("process table unavailable")
	h.tick()
	if h.c.state() != StateIdle {
		t.Fatalf("scan failure should degrade to absent, got %s", h.c.state())
	}
	if !h.pub.has(EventScanFailed) {
		t.Fatalf("missing scan failure event: %v", h.pub.names())
	}
}

func TestTickPanicRecovered(t *testing.T) {
	h := newHarness(t)
	h.c.scanner = panicScanner{}
	h.c.safeTick(context.Background())
	if !h.pub.has(EventTickPanic) {
		t.Fatalf("panic not surfaced as event: %v", h.pub.names())
	}
}

func TestCleanupResumesOwedStart(t *testing.T) {
	h := newHarness(t)
	h.suspend(t)
	h.c.cleanup()
	if h.svc.starts != 1 {
		t.Fatalf("cleanup must attempt the owed start, got %d", h.svc.starts)
	}
	if h.c.suspendedByUs {
		t.Fatalf("flag not cleared after successful cleanup start")
	}
}

func TestCleanupNoopWithoutOwedResume(t *testing.T) {
	h := newHarness(t)
	h.c.cleanup()
	if h.svc.starts != 0 {
		t.Fatalf("cleanup started a service it never stopped")
	}
}

func TestRunExitsCleanlyOnCancelAndRunsCleanup(t *testing.T) {
	h := newHarness(t)
	h.suspend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.c.Run(ctx); err != nil {
		t.Fatalf("cancellation must be a clean exit: %v", err)
	}
	if !h.pub.has(EventLoopStopped) || !h.pub.has(EventCleanupResume) {
		t.Fatalf("missing shutdown events: %v", h.pub.names())
	}
	if h.svc.starts != 1 {
		t.Fatalf("owed resume not attempted at exit")
	}
}

func TestRunPublishesStartupEvent(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = h.c.Run(ctx)
	if len(h.pub.events) == 0 || h.pub.events[0].Name != EventLoopStarted {
		t.Fatalf("expected loop_started first, got %v", h.pub.names())
	}
	if _, ok := h.pub.events[0].Fields["service"]; !ok {
		t.Fatalf("startup event missing service field: %+v", h.pub.events[0])
	}
}

func TestStatusProjection(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick()
	st := h.c.Status()
	if st.State != string(StateContentionPending) {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.ServiceName != "vllm.service" {
		t.Fatalf("unexpected service name: %+v", st)
	}
	if st.ContentionSince == 0 || st.LastTick == 0 {
		t.Fatalf("timestamps missing: %+v", st)
	}
	if len(st.MatchedProcesses) != 1 || st.MatchedProcesses[0] != "python" {
		t.Fatalf("unexpected matched processes: %+v", st)
	}
}

func TestDetectionEventCarriesProcessNames(t *testing.T) {
	h := newHarness(t)
	h.setContending(true)
	h.tick()
	for _, ev := range h.pub.events {
		if ev.Name == EventContentionDetected {
			names, ok := ev.Fields["processes"].([]string)
			if !ok || len(names) != 1 || names[0] != "python" {
				t.Fatalf("unexpected detection payload: %+v", ev)
			}
			return
		}
	}
	t.Fatalf("detection event not found: %v", h.pub.names())
}
