package procscan

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is one observed host process at snapshot time.
type Process struct {
	PID     int32
	Name    string
	Cmdline string
}

// Scanner produces point-in-time snapshots of the host process table.
type Scanner interface {
	Snapshot(ctx context.Context) ([]Process, error)
}

type hostScanner struct{}

// NewScanner returns a Scanner backed by the live process table.
func NewScanner() Scanner { return hostScanner{} }

// Snapshot enumerates live processes. Processes that vanish or deny access
// mid-scan are skipped; only failing to list the table at all is an error.
// Kernel threads report an empty command line and are skipped too, since
// nothing can match them.
func (hostScanner) Snapshot(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			name = firstField(cmdline)
		}
		out = append(out, Process{PID: p.Pid, Name: name, Cmdline: cmdline})
	}
	return out, nil
}

func firstField(cmdline string) string {
	if i := strings.IndexByte(cmdline, ' '); i > 0 {
		return cmdline[:i]
	}
	return cmdline
}
