package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/lcalzada-xor/airwarden/internal/adapters/health"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/attack"
	"github.com/lcalzada-xor/airwarden/internal/core/services/ingest"
	"github.com/lcalzada-xor/airwarden/internal/core/services/wpsprobe"
)

// scanner is the ingest engine and WPS probe bound to one card.
type scanner struct {
	card    string
	monitor string
	ingest  *ingest.Engine
	probe   *wpsprobe.Engine

	mu      sync.Mutex
	paused  bool
	stopped bool

	stopEvents context.CancelFunc
	eventsDone chan struct{}
}

// attackRun is the single attack loop and the card it drives.
type attackRun struct {
	card    string
	monitor string
	engine  *attack.Engine
	cancel  context.CancelFunc
	done    chan struct{}
}

func (app *Application) consumeCardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-app.Cards.Events():
			if app.WebServer != nil {
				app.WebServer.WSManager.BroadcastCardEvent(ev)
			}
			app.handleCardEvent(ctx, ev)
		}
	}
}

func (app *Application) handleCardEvent(ctx context.Context, ev domain.CardEvent) {
	iface := ev.Card.Interface
	switch ev.Type {
	case domain.CardAdded:
		if app.Config.AutoAssign {
			app.Cards.AutoAssignRoles()
		}

	case domain.CardRemoved:
		app.stopScanner(iface)
		if app.attackCard() == iface {
			app.stopAttack()
		}
		if app.Config.AutoAssign {
			app.Cards.AutoAssignRoles()
		}
		// another card may already hold an attacker role
		app.ensureAttack(ctx)

	case domain.CardRoleChanged:
		if !app.managed(iface) {
			slog.Info("Ignoring card outside the configured interfaces", "interface", iface)
			return
		}
		app.applyRole(ctx, ev.Card)
	}
}

// managed reports whether the card is in the configured interface list. An
// empty list manages every card.
func (app *Application) managed(iface string) bool {
	return len(app.Config.Interfaces) == 0 || slices.Contains(app.Config.Interfaces, iface)
}

func (app *Application) applyRole(ctx context.Context, card domain.WirelessCard) {
	role := card.Role

	if !role.CanAttack() && app.attackCard() == card.Interface {
		app.stopAttack()
	}
	if !role.CanScan() {
		app.stopScanner(card.Interface)
	}

	if role.CanScan() {
		app.startScanner(ctx, card.Interface)
	}
	if role.CanAttack() || app.attackCard() == "" {
		app.ensureAttack(ctx)
	}
	if role == domain.RoleUnassigned {
		app.Cards.SetState(card.Interface, domain.CardReady)
	}
}

func (app *Application) startScanner(ctx context.Context, iface string) {
	app.mu.Lock()
	_, running := app.scanners[iface]
	app.mu.Unlock()
	if running {
		return
	}

	monitor, err := app.Cards.EnableMonitorMode(ctx, iface)
	if err != nil {
		slog.Error("Cannot scan without monitor mode", "interface", iface, "error", err)
		return
	}

	app.ensureSession(ctx, monitor)

	cfg := ingest.DefaultConfig(monitor, app.Config.ScanDir)
	cfg.PollInterval = app.Config.Scan.PollInterval
	cfg.MinScanTime = app.Config.Scan.MinScanTime
	cfg.SaturationWindow = app.Config.Scan.SaturationWindow
	cfg.FingerprintWorkers = app.Config.Scan.FingerprintWorkers
	cfg.ExtendedInterval = app.Config.Scan.ExtendedCSVInterval
	cfg.StartupTimeout = app.Config.Timeouts.CaptureStartup

	engine := ingest.New(cfg, ingest.Deps{
		Launcher:  app.Launcher,
		Vendors:   app.Vendors,
		Sync:      app.Sync,
		Location:  app.Location,
		SessionID: app.currentSession,
	})
	if err := engine.Start(ctx); err != nil {
		slog.Error("Scan failed to start", "interface", monitor, "error", err)
		app.Cards.SetState(iface, domain.CardError)
		return
	}

	probe := wpsprobe.New(monitor, app.Launcher, engine)
	if err := probe.Start(ctx); err != nil {
		// scanning still works without WPS details
		slog.Warn("WPS probe unavailable", "interface", monitor, "error", err)
	}

	eventsCtx, stopEvents := context.WithCancel(context.WithoutCancel(ctx))
	sc := &scanner{
		card:       iface,
		monitor:    monitor,
		ingest:     engine,
		probe:      probe,
		stopEvents: stopEvents,
		eventsDone: make(chan struct{}),
	}
	go app.forwardScanEvents(eventsCtx, sc)

	app.mu.Lock()
	app.scanners[iface] = sc
	app.mu.Unlock()

	app.Cards.SetState(iface, domain.CardInUse)
	app.setHealth(health.ServiceScan, true)
}

func (app *Application) forwardScanEvents(ctx context.Context, sc *scanner) {
	defer close(sc.eventsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sc.ingest.Events():
			if ev.AccessPoint != nil {
				slog.Debug("Access point "+string(ev.Type), "bssid", ev.AccessPoint.BSSID, "ssid", ev.AccessPoint.SSID, "vendor", ev.AccessPoint.Vendor)
			}
			if app.WebServer != nil {
				app.WebServer.WSManager.BroadcastScanEvent(ev)
			}
		}
	}
}

func (sc *scanner) stop() {
	sc.mu.Lock()
	sc.stopped = true
	sc.mu.Unlock()

	sc.probe.Stop()
	sc.ingest.Stop()
	sc.stopEvents()
	<-sc.eventsDone
}

func (app *Application) stopScanner(iface string) {
	app.mu.Lock()
	sc, ok := app.scanners[iface]
	delete(app.scanners, iface)
	remaining := len(app.scanners)
	app.mu.Unlock()
	if !ok {
		return
	}

	sc.stop()
	if card, ok := app.Cards.Card(iface); ok && card.State == domain.CardInUse {
		app.Cards.SetState(iface, domain.CardMonitor)
	}
	if remaining == 0 {
		app.setHealth(health.ServiceScan, false)
	}
	slog.Info("Scanner stopped", "interface", iface)
}

// ensureSession creates the live session when the first scanner starts.
func (app *Application) ensureSession(ctx context.Context, iface string) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.sessionID != 0 {
		return
	}
	session := &domain.ScanSession{
		Interface:     iface,
		StartTime:     app.now(),
		StartLocation: app.location(),
	}
	if err := app.Store.CreateSession(ctx, session); err != nil {
		slog.Error("Failed to create scan session", "error", err)
		return
	}
	app.sessionID = session.ID
	slog.Info("Scan session started", "session", session.Serial, "interface", iface)
}

// ensureAttack starts the attack loop on the first attack-capable card when
// none is running.
func (app *Application) ensureAttack(ctx context.Context) {
	if app.attackCard() != "" {
		return
	}
	candidates := app.Cards.CardsWithRole(domain.CardRole.CanAttack)
	for _, card := range candidates {
		if !app.managed(card.Interface) {
			continue
		}
		if app.startAttack(ctx, card.Interface) {
			return
		}
	}
}

func (app *Application) startAttack(ctx context.Context, iface string) bool {
	monitor, err := app.Cards.EnableMonitorMode(ctx, iface)
	if err != nil {
		slog.Error("Cannot attack without monitor mode", "interface", iface, "error", err)
		return false
	}

	cfg := attack.Config{
		Interface:            monitor,
		BatchSize:            app.Config.Attack.BatchSize,
		JobPause:             app.Config.Attack.JobPause,
		RoundPause:           app.Config.Attack.RoundPause,
		AutoAttack:           app.Config.AutoAttack,
		HandshakeTimeout:     app.Config.Timeouts.Handshake,
		AutoHandshakeTimeout: app.Config.Timeouts.AutoHandshake,
		WPSTimeout:           app.Config.Timeouts.WPS,
		WPSBruteforceTimeout: app.Config.Timeouts.WPSBruteforce,
	}
	engine := attack.New(cfg, attack.Deps{
		Queue:    app.Queue,
		Store:    app.Store,
		WPS:      app.wps,
		Capturer: app.capturer,
		Analyzer: app.analyzer,
		Gate:     app,
	})

	runCtx, cancel := context.WithCancel(ctx)
	run := &attackRun{
		card:    iface,
		monitor: monitor,
		engine:  engine,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	app.mu.Lock()
	app.attack = run
	app.mu.Unlock()

	go func() {
		defer close(run.done)
		if err := engine.Run(runCtx); err != nil {
			slog.Error("Attack engine stopped", "interface", monitor, "error", err)
		}
	}()
	go app.forwardAttackEvents(runCtx, engine)

	app.Cards.SetState(iface, domain.CardInUse)
	app.setHealth(health.ServiceAttack, true)
	slog.Info("Attack engine assigned", "card", iface, "interface", monitor)
	return true
}

func (app *Application) forwardAttackEvents(ctx context.Context, engine *attack.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-engine.Events():
			slog.Info("Attack finished", "bssid", ev.Item.BSSID, "type", ev.Item.Type, "status", ev.Item.Status, "result", ev.Item.Result, "elapsed", ev.Elapsed)
			if app.WebServer != nil {
				app.WebServer.WSManager.BroadcastAttackEvent(ev)
			}
		}
	}
}

func (app *Application) stopAttack() {
	app.mu.Lock()
	run := app.attack
	app.attack = nil
	app.mu.Unlock()
	if run == nil {
		return
	}

	run.cancel()
	<-run.done
	app.setHealth(health.ServiceAttack, false)
	slog.Info("Attack engine stopped", "interface", run.monitor)
}

func (app *Application) attackCard() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.attack == nil {
		return ""
	}
	return app.attack.card
}

func (app *Application) attackInterface() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.attack == nil {
		return ""
	}
	return app.attack.monitor
}

// scannerOn finds the scanner whose card or monitor interface is iface.
func (app *Application) scannerOn(iface string) *scanner {
	app.mu.Lock()
	defer app.mu.Unlock()
	for _, sc := range app.scanners {
		if sc.card == iface || sc.monitor == iface {
			return sc
		}
	}
	return nil
}

// BeginAttack pauses scanning on a card that also attacks, so the attack
// tools get the radio to themselves.
func (app *Application) BeginAttack(ctx context.Context, iface string) error {
	sc := app.scannerOn(iface)
	if sc == nil {
		return nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.paused || sc.stopped {
		return nil
	}
	slog.Info("Pausing scan for attack", "interface", iface)
	sc.probe.Stop()
	sc.ingest.Stop()
	sc.paused = true
	return nil
}

// EndAttack resumes a scan paused by BeginAttack.
func (app *Application) EndAttack(ctx context.Context, iface string) {
	sc := app.scannerOn(iface)
	if sc == nil {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.paused || sc.stopped {
		return
	}
	sc.paused = false

	runCtx := app.runContext(ctx)
	if err := sc.ingest.Start(runCtx); err != nil {
		slog.Error("Failed to resume scan after attack", "interface", iface, "error", err)
		return
	}
	if err := sc.probe.Start(runCtx); err != nil {
		slog.Warn("WPS probe unavailable", "interface", iface, "error", err)
	}
	slog.Info("Scan resumed", "interface", iface)
}

// runContext returns the run context, falling back to ctx outside Run.
func (app *Application) runContext(ctx context.Context) context.Context {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.runCtx != nil {
		return app.runCtx
	}
	return ctx
}

func (app *Application) setHealth(service string, serving bool) {
	if app.Health != nil {
		app.Health.SetServing(service, serving)
	}
}
