package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
)

// UpsertNetwork inserts a new AP or updates the non-zero fields of an
// existing one and bumps its last-seen time.
func (a *SQLiteAdapter) UpsertNetwork(ctx context.Context, ap domain.AccessPoint) (bool, error) {
	model := networkToModel(ap)
	if model.LastSeen.IsZero() {
		model.LastSeen = a.now()
	}

	inserted := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing NetworkModel
		err := tx.Select("bssid").Take(&existing, "bssid = ?", model.BSSID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if model.FirstSeen.IsZero() {
				model.FirstSeen = model.LastSeen
			}
			model.Serial = a.ids.NewID(serial.PrefixAccessPoint, 18)
			inserted = true
			return tx.Create(&model).Error
		}
		if err != nil {
			return err
		}

		// Updates with a struct skips zero values; first_seen and serial are
		// never rewritten.
		model.FirstSeen = time.Time{}
		if err := tx.Model(&NetworkModel{BSSID: model.BSSID}).Updates(model).Error; err != nil {
			return err
		}
		if ap.WPSEnabled {
			// locked may legitimately flip back to false
			return tx.Model(&NetworkModel{BSSID: model.BSSID}).Update("wps_locked", ap.WPSLocked).Error
		}
		return nil
	})
	return inserted, wrap("upsert network", err)
}

// UpsertClient follows the same rules as UpsertNetwork. A client that left
// its AP is stored with an empty BSSID.
func (a *SQLiteAdapter) UpsertClient(ctx context.Context, c domain.Client) (bool, error) {
	model := clientToModel(c)
	if model.LastSeen.IsZero() {
		model.LastSeen = a.now()
	}

	inserted := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ClientModel
		err := tx.Select("mac").Take(&existing, "mac = ?", model.MAC).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if model.FirstSeen.IsZero() {
				model.FirstSeen = model.LastSeen
			}
			model.Serial = a.ids.NewID(serial.PrefixClient, 18)
			inserted = true
			return tx.Create(&model).Error
		}
		if err != nil {
			return err
		}

		model.FirstSeen = time.Time{}
		if err := tx.Model(&ClientModel{MAC: model.MAC}).Updates(model).Error; err != nil {
			return err
		}
		return tx.Model(&ClientModel{MAC: model.MAC}).Update("bssid", c.BSSID).Error
	})
	return inserted, wrap("upsert client", err)
}

// UpsertObservation keeps one row per (session, mac), counting sightings and
// remembering the strongest signal.
func (a *SQLiteAdapter) UpsertObservation(ctx context.Context, obs domain.Observation) (bool, error) {
	seen := obs.LastSeen
	if seen.IsZero() {
		seen = a.now()
	}
	lat, lng := locationToPoint(obs.Location)

	inserted := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ObservationModel
		err := tx.Take(&existing, "session_id = ? AND mac = ?", obs.SessionID, obs.MAC).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			inserted = true
			return tx.Create(&ObservationModel{
				Serial:    a.ids.NewID(serial.PrefixObservation, 20),
				SessionID: obs.SessionID,
				MAC:       obs.MAC,
				Kind:      string(obs.Kind),
				Power:     obs.Power,
				Latitude:  lat,
				Longitude: lng,
				Sightings: 1,
				FirstSeen: seen,
				LastSeen:  seen,
			}).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"sightings": gorm.Expr("sightings + 1"),
			"last_seen": seen,
		}
		// dBm: closer to zero is stronger, 0 means no reading
		if obs.Power != 0 && (existing.Power == 0 || obs.Power > existing.Power) {
			updates["power"] = obs.Power
			if lat != nil {
				updates["latitude"] = *lat
				updates["longitude"] = *lng
			}
		}
		return tx.Model(&existing).Updates(updates).Error
	})
	return inserted, wrap("upsert observation", err)
}

func (a *SQLiteAdapter) GetNetwork(ctx context.Context, bssid string) (*domain.AccessPoint, error) {
	var model NetworkModel
	if err := a.db.WithContext(ctx).Take(&model, "bssid = ?", bssid).Error; err != nil {
		return nil, wrap("get network", err)
	}
	ap := networkToDomain(model)
	return &ap, nil
}

// ListAttackCandidates returns password protected networks seen since the
// given time, best score first. Open networks never use up the limit.
func (a *SQLiteAdapter) ListAttackCandidates(ctx context.Context, seenSince time.Time, limit int) ([]domain.AccessPoint, error) {
	var rows []NetworkModel
	err := a.db.WithContext(ctx).
		Where("last_seen >= ?", seenSince).
		Where("encryption LIKE ? OR encryption LIKE ?", "%WPA%", "%WEP%").
		Order("attack_score DESC").Order("bssid ASC").
		Limit(limitOrAll(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, wrap("list candidates", err)
	}
	return mapNetworks(rows), nil
}

// ListNetworks returns the most recently seen networks.
func (a *SQLiteAdapter) ListNetworks(ctx context.Context, limit int) ([]domain.AccessPoint, error) {
	var rows []NetworkModel
	if err := a.db.WithContext(ctx).Order("last_seen DESC").Limit(limitOrAll(limit)).Find(&rows).Error; err != nil {
		return nil, wrap("list networks", err)
	}
	return mapNetworks(rows), nil
}

func mapNetworks(rows []NetworkModel) []domain.AccessPoint {
	out := make([]domain.AccessPoint, len(rows))
	for i, m := range rows {
		out[i] = networkToDomain(m)
	}
	return out
}

// limitOrAll maps non-positive limits to "no limit".
func limitOrAll(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
