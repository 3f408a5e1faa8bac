package service

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// defaultCommandTimeout bounds every systemctl invocation so a wedged
// service manager cannot stall the polling loop indefinitely.
const defaultCommandTimeout = 15 * time.Second

// Controller manages one long-running service unit.
type Controller interface {
	// Name returns the managed unit name.
	Name() string
	// IsActive reports whether the unit is currently active. Any query
	// failure degrades to false.
	IsActive(ctx context.Context) bool
	// Stop stops the unit. Already-inactive is a successful no-op.
	Stop(ctx context.Context) error
	// Start starts the unit unconditionally. No internal retry.
	Start(ctx context.Context) error
}

// runnerFunc executes an external command and returns its combined output.
type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SystemdController drives one systemd unit through systemctl. Stop and
// start are issued through sudo, matching a deployment where the
// coordinator runs unprivileged with a narrow sudoers entry.
type SystemdController struct {
	unit    string
	timeout time.Duration
	run     runnerFunc

	mu         sync.Mutex
	lastActive bool // best-effort cache, may be stale between polls
}

// NewSystemd returns a controller for the given unit name.
func NewSystemd(unit string) *SystemdController {
	return &SystemdController{unit: unit, timeout: defaultCommandTimeout, run: runCombined}
}

func (s *SystemdController) Name() string { return s.unit }

// LastKnownActive returns the cached result of the most recent status
// observation or action. Best-effort only.
func (s *SystemdController) LastKnownActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *SystemdController) setLastActive(v bool) {
	s.mu.Lock()
	s.lastActive = v
	s.mu.Unlock()
}

func (s *SystemdController) IsActive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.run(ctx, "systemctl", "is-active", s.unit)
	active := err == nil
	s.setLastActive(active)
	return active
}

func (s *SystemdController) Stop(ctx context.Context) error {
	if !s.IsActive(ctx) {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.run(cctx, "sudo", "systemctl", "stop", s.unit)
	if err != nil {
		return &ServiceError{Unit: s.unit, Op: "stop", Detail: strings.TrimSpace(string(out)), Err: err}
	}
	s.setLastActive(false)
	return nil
}

func (s *SystemdController) Start(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.run(cctx, "sudo", "systemctl", "start", s.unit)
	if err != nil {
		return &ServiceError{Unit: s.unit, Op: "start", Detail: strings.TrimSpace(string(out)), Err: err}
	}
	s.setLastActive(true)
	return nil
}
