package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lcalzada-xor/airwarden/internal/adapters/capture"
	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/core/services/persistence"
	"github.com/lcalzada-xor/airwarden/internal/core/services/scoring"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

const (
	captureTool       = "airodump-ng"
	eventBuffer       = 256
	startupPollPeriod = 200 * time.Millisecond
)

// Config tunes one ingest engine.
type Config struct {
	Interface          string
	ScanDir            string
	PollInterval       time.Duration
	MinScanTime        time.Duration
	SaturationWindow   time.Duration
	FingerprintWorkers int
	ExtendedInterval   time.Duration
	StartupTimeout     time.Duration
}

// DefaultConfig returns the stock timings for an interface.
func DefaultConfig(iface, scanDir string) Config {
	return Config{
		Interface:          iface,
		ScanDir:            scanDir,
		PollInterval:       time.Second,
		MinScanTime:        60 * time.Second,
		SaturationWindow:   30 * time.Second,
		FingerprintWorkers: 4,
		ExtendedInterval:   10 * time.Second,
		StartupTimeout:     15 * time.Second,
	}
}

// SyncQueue is the write-behind path to storage.
type SyncQueue interface {
	Enqueue(task persistence.Task, cb persistence.Callback) bool
}

// Deps are the collaborators of an engine. Location and SessionID are optional.
type Deps struct {
	Launcher  *process.Launcher
	Vendors   ports.VendorLookup
	Sync      SyncQueue
	Location  ports.LocationProvider
	SessionID func() uint
}

// Engine supervises airodump-ng on one interface and keeps the live model
// of access points and clients built from its CSV output.
type Engine struct {
	cfg      Config
	deps     Deps
	scorer   *scoring.Calculator
	now      func() time.Time
	interval time.Duration

	mu            sync.RWMutex
	aps           map[string]*domain.AccessPoint
	clients       map[string]*domain.Client
	startTime     time.Time
	lastNewAP     time.Time
	lastNewClient time.Time

	// owned by the run goroutine
	inFlight map[string]bool
	lastSize int64

	malformed  atomic.Int64
	unknownWPS atomic.Int64
	pending    atomic.Int64

	jobs    chan fingerprintJob
	results chan fingerprintResult
	events  chan domain.ScanEvent

	lifeMu  sync.Mutex
	current *scanRun
}

type scanRun struct {
	proc   *process.Process
	prefix string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.FingerprintWorkers <= 0 {
		cfg.FingerprintWorkers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if deps.Launcher == nil {
		deps.Launcher = process.NewLauncher()
	}
	queue := cfg.FingerprintWorkers * 2
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		scorer:  scoring.NewCalculator(),
		now:     time.Now,
		aps:     make(map[string]*domain.AccessPoint),
		clients: make(map[string]*domain.Client),
		jobs:    make(chan fingerprintJob, queue),
		results: make(chan fingerprintResult, queue+cfg.FingerprintWorkers),
		events:  make(chan domain.ScanEvent, eventBuffer),
	}
}

// Interface returns the capture interface.
func (e *Engine) Interface() string {
	return e.cfg.Interface
}

// Events delivers scan update notifications.
func (e *Engine) Events() <-chan domain.ScanEvent {
	return e.events
}

// Running reports whether a capture is active.
func (e *Engine) Running() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.current != nil
}

// Start launches airodump-ng and begins ingesting its CSV. It returns once
// the first capture file exists. The model survives Stop/Start cycles.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.current != nil {
		return fmt.Errorf("scan already running on %s", e.cfg.Interface)
	}

	if err := e.deps.Launcher.Require(captureTool); err != nil {
		return err
	}
	if err := os.MkdirAll(e.cfg.ScanDir, 0o755); err != nil {
		return fmt.Errorf("create scan dir: %w", err)
	}

	prefix := filepath.Join(e.cfg.ScanDir, fmt.Sprintf("scan_%s_%s", e.cfg.Interface, e.now().Format("20060102_150405")))
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	proc, err := e.deps.Launcher.Start(runCtx, false, captureTool,
		"-w", prefix,
		"--output-format", "csv",
		"--write-interval", "1",
		e.cfg.Interface,
	)
	if err != nil {
		cancel()
		return err
	}

	csvPath := prefix + "-01.csv"
	if err := e.waitForFile(ctx, proc, csvPath); err != nil {
		proc.Stop()
		cancel()
		return err
	}

	run := &scanRun{proc: proc, prefix: prefix, cancel: cancel, done: make(chan struct{})}
	e.current = run
	e.markStarted()

	slog.Info("Scan started", "interface", e.cfg.Interface, "file", csvPath, "pid", proc.Pid())
	go func() {
		defer close(run.done)
		e.watch(runCtx, csvPath, prefix)
	}()
	return nil
}

func (e *Engine) waitForFile(ctx context.Context, proc *process.Process, path string) error {
	timeout := e.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(startupPollPeriod)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-proc.Done():
			return fmt.Errorf("%s exited before writing %s: %v", captureTool, filepath.Base(path), proc.Err())
		case <-deadline.C:
			return &domain.ProcessTimeoutError{Command: captureTool, Timeout: timeout}
		case <-ticker.C:
		}
	}
}

// Stop terminates the capture process, waits for the ingest loop and writes
// the final extended CSV. Calling Stop on an idle engine is a no-op.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	run := e.current
	e.current = nil
	e.lifeMu.Unlock()
	if run == nil {
		return
	}

	run.proc.Stop()
	run.cancel()
	<-run.done

	e.saveExtended(run.prefix)
	slog.Info("Scan stopped", "interface", e.cfg.Interface)
}

func (e *Engine) markStarted() {
	e.mu.Lock()
	e.startTime = e.now()
	e.mu.Unlock()
}

// watch is the owner loop: it polls the capture file, merges fingerprint
// results and periodically exports the extended CSV.
func (e *Engine) watch(ctx context.Context, csvPath, prefix string) {
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	for i := 0; i < e.cfg.FingerprintWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			e.fingerprintWorker(workerCtx)
		}()
	}
	defer func() {
		stopWorkers()
		workers.Wait()
		// results still buffered refer to jobs that will be resubmitted on the next sighting
		for {
			select {
			case <-e.results:
			default:
				return
			}
		}
	}()

	e.inFlight = make(map[string]bool)
	e.pending.Store(0)
	e.lastSize = -1

	var fsEvents <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("File watcher unavailable, polling only", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(csvPath)); err != nil {
			slog.Warn("Cannot watch scan directory, polling only", "dir", filepath.Dir(csvPath), "error", err)
		} else {
			fsEvents = watcher.Events
		}
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	var export <-chan time.Time
	if e.cfg.ExtendedInterval > 0 && prefix != "" {
		t := time.NewTicker(e.cfg.ExtendedInterval)
		defer t.Stop()
		export = t.C
	}

	e.poll(csvPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(csvPath)
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if ev.Name == csvPath && ev.Has(fsnotify.Write) {
				e.poll(csvPath)
			}
		case res := <-e.results:
			e.mergeFingerprint(res)
		case <-export:
			e.saveExtended(prefix)
		}
	}
}

func (e *Engine) poll(path string) {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("Capture file unreadable", "path", path, "error", err)
		}
		return
	}
	if info.Size() == e.lastSize {
		return
	}
	e.lastSize = info.Size()

	snap, err := capture.ParseFile(path)
	if err != nil {
		slog.Warn("Capture file parse failed", "path", path, "error", err)
		return
	}
	for _, m := range snap.Malformed {
		telemetry.RowsMalformed.WithLabelValues(m.Section).Inc()
		slog.Debug("Skipping malformed row", "interface", e.cfg.Interface, "error", m)
	}
	e.malformed.Add(int64(len(snap.Malformed)))
	telemetry.RowsParsed.WithLabelValues(capture.SectionAP).Add(float64(len(snap.APs)))
	telemetry.RowsParsed.WithLabelValues(capture.SectionClient).Add(float64(len(snap.Clients)))

	e.apply(snap)
}

func (e *Engine) saveExtended(prefix string) {
	if prefix == "" {
		return
	}
	path := capture.ExtendedPath(prefix)
	if err := capture.SaveExtended(path, e.AccessPoints(), e.Clients()); err != nil {
		slog.Warn("Extended CSV export failed", "path", path, "error", err)
	}
}

func (e *Engine) emit(ev domain.ScanEvent) {
	ev.Interface = e.cfg.Interface
	ev.At = e.now()
	select {
	case e.events <- ev:
	default:
		slog.Warn("Scan event dropped, consumer too slow", "interface", e.cfg.Interface, "type", ev.Type)
	}
}

func (e *Engine) enqueue(task persistence.Task) {
	if e.deps.Sync == nil {
		return
	}
	e.deps.Sync.Enqueue(task, nil)
}
