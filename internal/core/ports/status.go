package ports

import (
	"context"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// StatusService is the read-only view the status surface serves.
type StatusService interface {
	Status(ctx context.Context) domain.SystemStatus
	Cards() []domain.WirelessCard
	Networks(ctx context.Context, limit int) ([]domain.AccessPoint, error)
	Network(ctx context.Context, bssid string) (*domain.AccessPoint, error)
	Queue(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error)
	Sessions(ctx context.Context, limit int) ([]domain.ScanSession, error)
}
