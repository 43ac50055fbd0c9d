package storage

import (
	"context"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
)

// ArchiveLiveSessions closes every live session, typically left behind by a crash.
func (a *SQLiteAdapter) ArchiveLiveSessions(ctx context.Context, end time.Time, loc *domain.Location) (int, error) {
	updates := map[string]any{
		"status":   string(domain.SessionArchived),
		"end_time": end,
	}
	if lat, lng := locationToPoint(loc); lat != nil {
		updates["end_latitude"] = *lat
		updates["end_longitude"] = *lng
	}
	res := a.db.WithContext(ctx).Model(&ScanSessionModel{}).
		Where("status = ?", string(domain.SessionLive)).
		Updates(updates)
	return int(res.RowsAffected), wrap("archive sessions", res.Error)
}

// CreateSession inserts a live session and writes back its ID and serial.
func (a *SQLiteAdapter) CreateSession(ctx context.Context, s *domain.ScanSession) error {
	if s.Serial == "" {
		s.Serial = a.ids.NewID(serial.PrefixSession, 20)
	}
	if s.Status == "" {
		s.Status = domain.SessionLive
	}
	if s.StartTime.IsZero() {
		s.StartTime = a.now()
	}
	lat, lng := locationToPoint(s.StartLocation)
	model := ScanSessionModel{
		Serial:         s.Serial,
		Status:         string(s.Status),
		Interface:      s.Interface,
		StartTime:      s.StartTime,
		StartLatitude:  lat,
		StartLongitude: lng,
	}
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrap("create session", err)
	}
	s.ID = model.ID
	return nil
}

func (a *SQLiteAdapter) UpdateSessionCounts(ctx context.Context, id uint, networks, clients int) error {
	err := a.db.WithContext(ctx).Model(&ScanSessionModel{ID: id}).Updates(map[string]any{
		"networks_found": networks,
		"clients_found":  clients,
	}).Error
	return wrap("update session counts", err)
}

// SetLiveHandshakeCount overwrites the handshake count of the live session(s).
func (a *SQLiteAdapter) SetLiveHandshakeCount(ctx context.Context, count int) error {
	err := a.db.WithContext(ctx).Model(&ScanSessionModel{}).
		Where("status = ?", string(domain.SessionLive)).
		Update("handshakes_captured", count).Error
	return wrap("set handshake count", err)
}

// LiveSession returns the newest live session.
func (a *SQLiteAdapter) LiveSession(ctx context.Context) (*domain.ScanSession, error) {
	var model ScanSessionModel
	err := a.db.WithContext(ctx).
		Where("status = ?", string(domain.SessionLive)).
		Order("id DESC").
		Take(&model).Error
	if err != nil {
		return nil, wrap("live session", err)
	}
	s := sessionToDomain(model)
	return &s, nil
}

func (a *SQLiteAdapter) ListSessions(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	var rows []ScanSessionModel
	if err := a.db.WithContext(ctx).Order("id DESC").Limit(limitOrAll(limit)).Find(&rows).Error; err != nil {
		return nil, wrap("list sessions", err)
	}
	out := make([]domain.ScanSession, len(rows))
	for i, m := range rows {
		out[i] = sessionToDomain(m)
	}
	return out, nil
}
