package wpsprobe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lcalzada-xor/airwarden/internal/adapters/capture"
	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

const probeTool = "wash"

// Stats counts what the probe has seen since it was created.
type Stats struct {
	Rows    int64
	Merged  int64
	Unknown int64
}

// Engine runs wash on a monitor interface and feeds WPS findings into the
// scan model.
type Engine struct {
	iface    string
	launcher *process.Launcher
	merger   ports.WPSMerger

	mu       sync.Mutex
	proc     *process.Process
	done     chan struct{}
	stopping atomic.Bool

	rows    atomic.Int64
	merged  atomic.Int64
	unknown atomic.Int64
}

// New creates an idle WPS probe.
func New(iface string, launcher *process.Launcher, merger ports.WPSMerger) *Engine {
	if launcher == nil {
		launcher = process.NewLauncher()
	}
	return &Engine{iface: iface, launcher: launcher, merger: merger}
}

// Start launches wash. A crash later on only ends this probe.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		return fmt.Errorf("wps probe already running on %s", e.iface)
	}
	if err := e.launcher.Require(probeTool); err != nil {
		return err
	}

	proc, err := e.launcher.Start(context.WithoutCancel(ctx), true, probeTool, "-i", e.iface, "--ignore-fcs")
	if err != nil {
		return err
	}
	e.proc = proc
	e.done = make(chan struct{})
	e.stopping.Store(false)

	slog.Info("WPS probe started", "interface", e.iface, "pid", proc.Pid())
	go e.read(proc, e.done)
	return nil
}

func (e *Engine) read(proc *process.Process, done chan struct{}) {
	defer close(done)

	scanner := process.NewLineScanner(proc.Output())
	for scanner.Scan() {
		info, ok := capture.ParseWashLine(scanner.Text())
		if !ok {
			continue
		}
		e.rows.Add(1)
		if e.merger.MergeWPS(info) {
			e.merged.Add(1)
		} else {
			e.unknown.Add(1)
			slog.Debug("WPS row for unknown BSSID", "bssid", info.BSSID)
		}
	}

	<-proc.Done()
	if !e.stopping.Load() {
		slog.Warn("WPS probe exited", "interface", e.iface, "error", proc.Err())
	}
}

// Stop terminates wash and waits for the reader to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	proc, done := e.proc, e.done
	e.proc = nil
	e.mu.Unlock()
	if proc == nil {
		return
	}

	e.stopping.Store(true)
	proc.Stop()
	<-done
	slog.Info("WPS probe stopped", "interface", e.iface)
}

// Done is closed once the current wash process has exited and its output
// has been consumed. It is nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Stats returns the row counters.
func (e *Engine) Stats() Stats {
	return Stats{Rows: e.rows.Load(), Merged: e.merged.Load(), Unknown: e.unknown.Load()}
}
