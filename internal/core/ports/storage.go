package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// NetworkStore persists the scan model.
type NetworkStore interface {
	// UpsertNetwork inserts the AP if absent, otherwise updates changed
	// fields and bumps last-seen. Returns true when a row was inserted.
	UpsertNetwork(ctx context.Context, ap domain.AccessPoint) (bool, error)
	UpsertClient(ctx context.Context, client domain.Client) (bool, error)
	UpsertObservation(ctx context.Context, obs domain.Observation) (bool, error)

	GetNetwork(ctx context.Context, bssid string) (*domain.AccessPoint, error)
	// ListAttackCandidates returns WPA/WEP networks seen since the given time,
	// ordered by attack score descending.
	ListAttackCandidates(ctx context.Context, seenSince time.Time, limit int) ([]domain.AccessPoint, error)
	ListNetworks(ctx context.Context, limit int) ([]domain.AccessPoint, error)
}

// QueueStore persists attack queue rows.
type QueueStore interface {
	CreateItem(ctx context.Context, item *domain.AttackQueueItem) error
	// PendingItems returns pending rows by priority desc, then insertion order.
	PendingItems(ctx context.Context, limit int) ([]domain.AttackQueueItem, error)
	UpdateItem(ctx context.Context, item domain.AttackQueueItem) error
	GetItem(ctx context.Context, id uint) (*domain.AttackQueueItem, error)
	ListItems(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error)
	HasPending(ctx context.Context, bssid string, attackType domain.AttackType) (bool, error)
}

// HandshakeStore persists captured handshakes and recovered credentials.
type HandshakeStore interface {
	SaveHandshake(ctx context.Context, rec domain.HandshakeRecord) error
	GetHandshake(ctx context.Context, bssid string) (*domain.HandshakeRecord, error)
	// CompleteUncrackedBSSIDs lists targets that already have a usable capture.
	CompleteUncrackedBSSIDs(ctx context.Context) (map[string]bool, error)
	CountCompleteHandshakes(ctx context.Context) (int, error)
}

// SessionStore persists scan sessions.
type SessionStore interface {
	// ArchiveLiveSessions closes every live session and returns how many were archived.
	ArchiveLiveSessions(ctx context.Context, end time.Time, loc *domain.Location) (int, error)
	CreateSession(ctx context.Context, s *domain.ScanSession) error
	UpdateSessionCounts(ctx context.Context, id uint, networks, clients int) error
	SetLiveHandshakeCount(ctx context.Context, count int) error
	LiveSession(ctx context.Context) (*domain.ScanSession, error)
	ListSessions(ctx context.Context, limit int) ([]domain.ScanSession, error)
}

// Storage is the full persistence surface.
type Storage interface {
	NetworkStore
	QueueStore
	HandshakeStore
	SessionStore

	// Close closes the storage connection.
	Close() error
}
