package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	hscapture "github.com/lcalzada-xor/airwarden/internal/adapters/attack/handshake"
	"github.com/lcalzada-xor/airwarden/internal/adapters/attack/wps"
	"github.com/lcalzada-xor/airwarden/internal/adapters/fingerprint"
	"github.com/lcalzada-xor/airwarden/internal/adapters/health"
	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/adapters/sniffer/driver"
	"github.com/lcalzada-xor/airwarden/internal/adapters/sniffer/handshake"
	"github.com/lcalzada-xor/airwarden/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/airwarden/internal/adapters/web/server"
	"github.com/lcalzada-xor/airwarden/internal/config"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/core/services/cards"
	"github.com/lcalzada-xor/airwarden/internal/core/services/persistence"
	"github.com/lcalzada-xor/airwarden/internal/core/services/queue"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
	"github.com/lcalzada-xor/airwarden/internal/geo"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

const (
	vendorCacheSize = 20000
	// statsInterval is how often session counts and health are refreshed.
	statsInterval   = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config    *config.Config
	Store     *storage.SQLiteAdapter
	Vendors   *fingerprint.Service
	Launcher  *process.Launcher
	Cards     *cards.Manager
	Sync      *persistence.SyncService
	Queue     *queue.Service
	Location  ports.LocationProvider
	WebServer *webserver.Server
	Health    *health.Server

	driver   ports.RadioDriver
	wps      ports.WPSCracker
	capturer ports.HandshakeCapturer
	analyzer ports.CompletenessAnalyzer
	now      func() time.Time

	mu        sync.Mutex
	scanners  map[string]*scanner
	attack    *attackRun
	sessionID uint
	startedAt time.Time
	runCtx    context.Context
}

// Option overrides a collaborator built by New.
type Option func(*Application)

// WithDriver replaces the OS radio driver.
func WithDriver(d ports.RadioDriver) Option {
	return func(app *Application) { app.driver = d }
}

// WithLauncher replaces the process launcher used by every external tool.
func WithLauncher(l *process.Launcher) Option {
	return func(app *Application) { app.Launcher = l }
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	app := &Application{
		Config:   cfg,
		now:      time.Now,
		scanners: make(map[string]*scanner),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	cfg := app.Config

	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	app.Vendors = fingerprint.NewDefaultService(cfg.OUIDBPath, cfg.OUIFile, vendorCacheSize)

	if cfg.HasLocation {
		app.Location = geo.NewStaticProvider(cfg.Latitude, cfg.Longitude)
	} else {
		app.Location = geo.NoProvider{}
	}

	// 2. Radio layer
	if app.Launcher == nil {
		app.Launcher = process.NewLauncher()
	}
	if cfg.Timeouts.ProcessGrace > 0 {
		app.Launcher.Grace = cfg.Timeouts.ProcessGrace
	}
	if app.driver == nil {
		app.driver = driver.New(app.Launcher, cfg.Timeouts.MonitorCommand)
	}
	app.Cards = cards.NewManager(app.driver)

	// 3. Domain services
	app.Sync = persistence.NewSyncService(store, cfg.Sync.QueueSize)
	app.Queue = queue.NewService(store, serial.NewGenerator(), queue.Config{
		Cooldown:        cfg.Attack.Cooldown,
		CandidateWindow: cfg.Attack.CandidateWindow,
		MaxRetries:      cfg.Attack.MaxRetries,
	})

	// 4. Attack adapters
	app.wps = wps.NewCracker(app.Launcher)
	app.capturer = hscapture.NewCapturer(app.Launcher, hscapture.Config{
		Dir:            cfg.HandshakeDir,
		StartupDelay:   cfg.Timeouts.HandshakeStartup,
		DeauthCount:    cfg.Attack.DeauthCount,
		DeauthTimeout:  cfg.Timeouts.Deauth,
		PollInterval:   2 * time.Second,
		MinCaptureSize: hscapture.DefaultConfig(cfg.HandshakeDir).MinCaptureSize,
		VerifyTimeout:  cfg.Timeouts.Verify,
		DefaultTimeout: cfg.Timeouts.Handshake,
	})
	app.analyzer = handshake.NewAnalyzer()

	// 5. Servers
	if cfg.Addr != "" {
		app.WebServer = webserver.NewServer(cfg.Addr, statusView{app})
	}
	if cfg.GRPCPort > 0 {
		app.Health = health.NewServer(fmt.Sprintf(":%d", cfg.GRPCPort))
	}

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath, serial.NewGenerator())
	if err != nil {
		return nil, fmt.Errorf("failed to init system storage: %w", err)
	}
	return store, nil
}

// Run starts the application components and manages their execution lifecycle.
// It blocks until ctx is cancelled or a server fails, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting airwarden components...")
	app.startedAt = app.now()

	// 1. Sessions left live by a previous crash
	if n, err := app.Store.ArchiveLiveSessions(ctx, app.now(), app.location()); err != nil {
		slog.Warn("Failed to archive stale sessions", "error", err)
	} else if n > 0 {
		slog.Info("Archived stale sessions", "count", n)
	}

	// the sync worker outlives ctx so shutdown can flush it
	syncCtx, stopSync := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSync()
	app.Sync.Start(syncCtx)

	g, gctx := errgroup.WithContext(ctx)
	app.mu.Lock()
	app.runCtx = gctx
	app.mu.Unlock()

	// 2. Cards
	if _, err := app.Cards.DetectCards(gctx); err != nil {
		slog.Error("Card detection failed", "error", err)
	}
	if app.Config.AutoAssign {
		app.Cards.AutoAssignRoles()
	}
	app.Cards.StartHotplugWatch(gctx)

	// 3. Event consumers
	g.Go(func() error {
		app.consumeCardEvents(gctx)
		return nil
	})
	g.Go(func() error {
		app.statsLoop(gctx)
		return nil
	})

	// 4. Servers
	if app.WebServer != nil {
		g.Go(func() error {
			if err := app.WebServer.Run(gctx); err != nil {
				return fmt.Errorf("web server error: %w", err)
			}
			return nil
		})
	}
	if app.Health != nil {
		app.Health.SetServing(health.ServiceOverall, true)
		app.Health.SetServing(health.ServiceSync, true)
		g.Go(func() error {
			if err := app.Health.Run(gctx); err != nil {
				return fmt.Errorf("grpc health server error: %w", err)
			}
			return nil
		})
	}

	slog.Info("airwarden ready. Press Ctrl+C to terminate.")
	runErr := g.Wait()
	if runErr != nil {
		slog.Error("Component failed", "error", runErr)
	} else {
		slog.Info("Termination signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, app.shutdown(shutdownCtx))
}

// shutdown stops engines, restores radios, flushes pending writes, archives
// the session and closes storage, in that order.
func (app *Application) shutdown(ctx context.Context) error {
	slog.Info("Cleaning up resources...")

	// 1. Engines
	app.stopAttack()
	app.mu.Lock()
	scanners := make([]*scanner, 0, len(app.scanners))
	for iface, sc := range app.scanners {
		scanners = append(scanners, sc)
		delete(app.scanners, iface)
	}
	app.mu.Unlock()
	for _, sc := range scanners {
		sc.stop()
	}

	// 2. Radios
	app.RestoreNetwork(ctx)

	// 3. Pending writes
	var errs []error
	if err := app.Sync.Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	// 4. Session
	app.updateSessionCounts(ctx)
	if n, err := app.Store.CountCompleteHandshakes(ctx); err == nil {
		if err := app.Store.SetLiveHandshakeCount(ctx, n); err != nil {
			slog.Warn("Failed to record handshake count", "error", err)
		}
	}
	if n, err := app.Store.ArchiveLiveSessions(ctx, app.now(), app.location()); err != nil {
		errs = append(errs, fmt.Errorf("archive session: %w", err))
	} else if n > 0 {
		slog.Info("Session archived")
	}

	// 5. Storage
	if err := app.Vendors.Close(); err != nil {
		slog.Warn("Failed to close vendor database", "error", err)
	}
	if err := app.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

// RestoreNetwork returns every card this process switched to monitor mode
// back to managed mode.
func (app *Application) RestoreNetwork(ctx context.Context) {
	for _, card := range app.Cards.Cards() {
		if !card.MonitorEnabledByUs {
			continue
		}
		if err := app.Cards.DisableMonitorMode(ctx, card.Interface); err != nil {
			slog.Warn("Failed to restore card", "interface", card.Interface, "error", err)
		}
	}
}

func (app *Application) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.updateSessionCounts(ctx)
			app.queueWPSTargets(ctx)
		}
	}
}

func (app *Application) updateSessionCounts(ctx context.Context) {
	id := app.currentSession()
	if id == 0 {
		return
	}
	var networks, clients int
	for _, st := range app.scannerStats() {
		networks += st.TotalAPs
		clients += st.TotalClients
	}
	if err := app.Store.UpdateSessionCounts(ctx, id, networks, clients); err != nil {
		slog.Warn("Failed to update session counts", "session", id, "error", err)
	}
}

// queueWPSTargets adds the WPS plan for new WPS networks while an attack
// engine is running in automatic mode.
func (app *Application) queueWPSTargets(ctx context.Context) {
	if !app.Config.AutoAttack || app.attackInterface() == "" {
		return
	}
	n, err := app.Queue.QueueWPSTargets(ctx)
	if err != nil {
		slog.Warn("Failed to queue WPS targets", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Queued WPS attacks", "count", n)
	}
}

func (app *Application) location() *domain.Location {
	if app.Location == nil {
		return nil
	}
	loc, ok := app.Location.GetLocation()
	if !ok {
		return nil
	}
	return &loc
}

func (app *Application) currentSession() uint {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.sessionID
}
