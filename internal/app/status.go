package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// Status returns a snapshot of cards, engines, the sync worker and the live session.
func (app *Application) Status(ctx context.Context) domain.SystemStatus {
	now := app.now()
	st := domain.SystemStatus{
		StartedAt: app.startedAt,
		Cards:     app.Cards.Cards(),
		Scanners:  app.scannerStats(),
		UpdatedAt: now,
	}
	if !app.startedAt.IsZero() {
		st.Uptime = now.Sub(app.startedAt).Round(time.Second).String()
	}

	app.mu.Lock()
	run := app.attack
	app.mu.Unlock()
	if run != nil {
		st.AttackInterface = run.monitor
		st.AttackRunning = run.engine.Running()
		st.AttacksDone = run.engine.Processed()
	}

	sync := app.Sync.Stats()
	st.SyncInserted = sync.Inserted
	st.SyncUpdated = sync.Updated
	st.SyncErrored = sync.Errored
	st.SyncDropped = sync.Dropped

	if session, err := app.Store.LiveSession(ctx); err == nil {
		st.Session = session
	}
	return st
}

func (app *Application) scannerStats() []domain.ScanStatistics {
	app.mu.Lock()
	scanners := make([]*scanner, 0, len(app.scanners))
	for _, sc := range app.scanners {
		scanners = append(scanners, sc)
	}
	app.mu.Unlock()

	out := make([]domain.ScanStatistics, 0, len(scanners))
	for _, sc := range scanners {
		out = append(out, sc.ingest.Statistics())
	}
	slices.SortFunc(out, func(a, b domain.ScanStatistics) int {
		return strings.Compare(a.Interface, b.Interface)
	})
	return out
}

// statusView adapts the Application to ports.StatusService.
type statusView struct {
	app *Application
}

func (v statusView) Status(ctx context.Context) domain.SystemStatus {
	return v.app.Status(ctx)
}

func (v statusView) Cards() []domain.WirelessCard {
	return v.app.Cards.Cards()
}

func (v statusView) Networks(ctx context.Context, limit int) ([]domain.AccessPoint, error) {
	return v.app.Store.ListNetworks(ctx, limit)
}

func (v statusView) Network(ctx context.Context, bssid string) (*domain.AccessPoint, error) {
	return v.app.Store.GetNetwork(ctx, bssid)
}

func (v statusView) Queue(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error) {
	return v.app.Queue.List(ctx, status, limit)
}

func (v statusView) Sessions(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	return v.app.Store.ListSessions(ctx, limit)
}
