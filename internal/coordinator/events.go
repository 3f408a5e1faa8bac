package coordinator

import "github.com/rs/zerolog"

// Event is one discrete coordinator occurrence. Rendering belongs to the
// publisher; the coordinator only names the event and attaches fields.
type Event struct {
	Name   string
	Fields map[string]any
}

// Event names emitted by the coordinator.
const (
	EventLoopStarted        = "loop_started"
	EventLoopStopped        = "loop_stopped"
	EventContentionDetected = "contention_detected"
	EventContentionCleared  = "contention_cleared"
	EventServiceStopped     = "service_stopped"
	EventServiceStarted     = "service_started"
	EventStopFailed         = "service_stop_failed"
	EventStartFailed        = "service_start_failed"
	EventScanFailed         = "process_scan_failed"
	EventTickPanic          = "tick_panic"
	EventCleanupResume      = "cleanup_resume"
)

// EventPublisher receives coordinator events. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// ZerologPublisher renders events as structured zerolog records.
type ZerologPublisher struct {
	log zerolog.Logger
}

func NewZerologPublisher(l zerolog.Logger) *ZerologPublisher {
	return &ZerologPublisher{log: l}
}

func (p *ZerologPublisher) Publish(ev Event) {
	var e *zerolog.Event
	switch ev.Name {
	case EventStopFailed, EventStartFailed, EventTickPanic:
		e = p.log.Error()
	case EventScanFailed:
		e = p.log.Debug()
	default:
		e = p.log.Info()
	}
	if ev.Fields != nil {
		e = e.Fields(ev.Fields)
	}
	e.Str("event", ev.Name).Msg(ev.Name)
}
