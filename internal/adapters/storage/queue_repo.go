package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
)

// CreateItem inserts a queue row and writes back its ID and serial.
func (a *SQLiteAdapter) CreateItem(ctx context.Context, item *domain.AttackQueueItem) error {
	if item.Serial == "" {
		item.Serial = a.ids.NewID(serial.PrefixQueue, 20)
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = a.now()
	}
	model := queueToModel(*item)
	model.ID = 0
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrap("create queue item", err)
	}
	item.ID = model.ID
	return nil
}

// PendingItems returns pending rows by priority, highest first, breaking ties
// by insertion order.
func (a *SQLiteAdapter) PendingItems(ctx context.Context, limit int) ([]domain.AttackQueueItem, error) {
	var rows []AttackQueueModel
	err := a.db.WithContext(ctx).
		Where("status = ?", string(domain.StatusPending)).
		Order("priority DESC").Order("id ASC").
		Limit(limitOrAll(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("pending items", err)
	}
	return mapQueue(rows), nil
}

// UpdateItem saves every column of an existing row.
func (a *SQLiteAdapter) UpdateItem(ctx context.Context, item domain.AttackQueueItem) error {
	if item.ID == 0 {
		return wrap("update queue item", gorm.ErrRecordNotFound)
	}
	model := queueToModel(item)
	res := a.db.WithContext(ctx).Model(&AttackQueueModel{ID: item.ID}).
		Select("*").Omit("id", "added_at").
		Updates(&model)
	if res.Error != nil {
		return wrap("update queue item", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("update queue item", gorm.ErrRecordNotFound)
	}
	return nil
}

func (a *SQLiteAdapter) GetItem(ctx context.Context, id uint) (*domain.AttackQueueItem, error) {
	var model AttackQueueModel
	if err := a.db.WithContext(ctx).Take(&model, id).Error; err != nil {
		return nil, wrap("get queue item", err)
	}
	item := queueToDomain(model)
	return &item, nil
}

// ListItems lists rows newest first. An empty status lists every row.
func (a *SQLiteAdapter) ListItems(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error) {
	q := a.db.WithContext(ctx).Order("id DESC").Limit(limitOrAll(limit))
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []AttackQueueModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap("list queue items", err)
	}
	return mapQueue(rows), nil
}

// HasPending reports whether a pending row exists for the target and type.
func (a *SQLiteAdapter) HasPending(ctx context.Context, bssid string, attackType domain.AttackType) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&AttackQueueModel{}).
		Where("bssid = ? AND type = ? AND status = ?", bssid, string(attackType), string(domain.StatusPending)).
		Count(&count).Error
	return count > 0, wrap("has pending", err)
}

func mapQueue(rows []AttackQueueModel) []domain.AttackQueueItem {
	out := make([]domain.AttackQueueItem, len(rows))
	for i, m := range rows {
		out[i] = queueToDomain(m)
	}
	return out
}

// SaveHandshake keeps one record per BSSID. A newer capture replaces the old
// one unless it would downgrade a complete capture; cracked results stick.
func (a *SQLiteAdapter) SaveHandshake(ctx context.Context, rec domain.HandshakeRecord) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing HandshakeModel
		err := tx.Take(&existing, "bssid = ?", rec.BSSID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if rec.Serial == "" {
				rec.Serial = a.ids.NewID(serial.PrefixHandshake, 20)
			}
			if rec.CapturedAt.IsZero() {
				rec.CapturedAt = a.now()
			}
			return tx.Create(&HandshakeModel{
				Serial:            rec.Serial,
				BSSID:             rec.BSSID,
				SSID:              rec.SSID,
				FilePath:          rec.FilePath,
				Complete:          rec.Complete,
				CompletenessScore: rec.CompletenessScore,
				MessagesSeen:      encodeJSON(rec.MessagesSeen),
				CapturedAt:        rec.CapturedAt,
				Cracked:           rec.Cracked,
				Secret:            rec.Secret,
				WPSPin:            rec.WPSPin,
			}).Error
		}
		if err != nil {
			return err
		}

		if rec.FilePath != "" && (rec.Complete || !existing.Complete) {
			existing.FilePath = rec.FilePath
			existing.Complete = rec.Complete
			existing.CompletenessScore = rec.CompletenessScore
			existing.MessagesSeen = encodeJSON(rec.MessagesSeen)
			existing.CapturedAt = rec.CapturedAt
			if existing.CapturedAt.IsZero() {
				existing.CapturedAt = a.now()
			}
		}
		if rec.SSID != "" {
			existing.SSID = rec.SSID
		}
		if rec.Cracked {
			existing.Cracked = true
			existing.Secret = firstNonEmpty(rec.Secret, existing.Secret)
			existing.WPSPin = firstNonEmpty(rec.WPSPin, existing.WPSPin)
		}
		return tx.Save(&existing).Error
	})
	return wrap("save handshake", err)
}

func (a *SQLiteAdapter) GetHandshake(ctx context.Context, bssid string) (*domain.HandshakeRecord, error) {
	var model HandshakeModel
	if err := a.db.WithContext(ctx).Take(&model, "bssid = ?", bssid).Error; err != nil {
		return nil, wrap("get handshake", err)
	}
	rec := handshakeToDomain(model)
	return &rec, nil
}

// CompleteUncrackedBSSIDs lists targets that already have a usable capture.
func (a *SQLiteAdapter) CompleteUncrackedBSSIDs(ctx context.Context) (map[string]bool, error) {
	var bssids []string
	err := a.db.WithContext(ctx).Model(&HandshakeModel{}).
		Where("complete = ? AND cracked = ?", true, false).
		Pluck("bssid", &bssids).Error
	if err != nil {
		return nil, wrap("complete handshakes", err)
	}
	out := make(map[string]bool, len(bssids))
	for _, b := range bssids {
		out[b] = true
	}
	return out, nil
}

func (a *SQLiteAdapter) CountCompleteHandshakes(ctx context.Context) (int, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&HandshakeModel{}).Where("complete = ?", true).Count(&count).Error
	return int(count), wrap("count handshakes", err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
