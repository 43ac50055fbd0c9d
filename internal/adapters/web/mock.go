package web

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// MockStatusService is a mock of ports.StatusService
type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) Status(ctx context.Context) domain.SystemStatus {
	args := m.Called(ctx)
	return args.Get(0).(domain.SystemStatus)
}

func (m *MockStatusService) Cards() []domain.WirelessCard {
	args := m.Called()
	return args.Get(0).([]domain.WirelessCard)
}

func (m *MockStatusService) Networks(ctx context.Context, limit int) ([]domain.AccessPoint, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.AccessPoint), args.Error(1)
}

func (m *MockStatusService) Network(ctx context.Context, bssid string) (*domain.AccessPoint, error) {
	args := m.Called(ctx, bssid)
	ap, _ := args.Get(0).(*domain.AccessPoint)
	return ap, args.Error(1)
}

func (m *MockStatusService) Queue(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error) {
	args := m.Called(ctx, status, limit)
	return args.Get(0).([]domain.AttackQueueItem), args.Error(1)
}

func (m *MockStatusService) Sessions(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.ScanSession), args.Error(1)
}
