package storage

import (
	"encoding/json"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

func networkToModel(ap domain.AccessPoint) NetworkModel {
	return NetworkModel{
		BSSID:            ap.BSSID,
		SSID:             ap.SSID,
		Channel:          ap.Channel,
		Speed:            ap.Speed,
		Encryption:       ap.Encryption,
		Cipher:           ap.Cipher,
		Authentication:   ap.Authentication,
		Power:            ap.Power,
		Beacons:          ap.Beacons,
		IVs:              ap.IVs,
		LANIP:            ap.LANIP,
		IDLength:         ap.IDLength,
		WPSEnabled:       ap.WPSEnabled,
		WPSLocked:        ap.WPSLocked,
		WPSVersion:       ap.WPSVersion,
		AttackScore:      ap.AttackScore,
		RiskLevel:        string(ap.RiskLevel),
		Vendor:           ap.Vendor,
		DeviceType:       ap.DeviceType,
		DeviceConfidence: ap.DeviceConfidence,
		ClientCount:      len(ap.Clients),
		FirstSeen:        ap.FirstSeen,
		LastSeen:         ap.LastSeen,
	}
}

func networkToDomain(m NetworkModel) domain.AccessPoint {
	return domain.AccessPoint{
		BSSID:            m.BSSID,
		SSID:             m.SSID,
		Channel:          m.Channel,
		Speed:            m.Speed,
		Encryption:       m.Encryption,
		Cipher:           m.Cipher,
		Authentication:   m.Authentication,
		Power:            m.Power,
		Beacons:          m.Beacons,
		IVs:              m.IVs,
		LANIP:            m.LANIP,
		IDLength:         m.IDLength,
		WPSEnabled:       m.WPSEnabled,
		WPSLocked:        m.WPSLocked,
		WPSVersion:       m.WPSVersion,
		AttackScore:      m.AttackScore,
		RiskLevel:        domain.RiskLevel(m.RiskLevel),
		Vendor:           m.Vendor,
		DeviceType:       m.DeviceType,
		DeviceConfidence: m.DeviceConfidence,
		Fingerprinted:    m.DeviceType != "",
		FirstSeen:        m.FirstSeen,
		LastSeen:         m.LastSeen,
		Clients:          make(map[string]struct{}),
	}
}

func clientToModel(c domain.Client) ClientModel {
	return ClientModel{
		MAC:              c.MAC,
		BSSID:            c.BSSID,
		Power:            c.Power,
		Packets:          c.Packets,
		ProbedSSIDs:      encodeJSON(c.ProbedSSIDs),
		Vendor:           c.Vendor,
		DeviceType:       c.DeviceType,
		DeviceConfidence: c.DeviceConfidence,
		FirstSeen:        c.FirstSeen,
		LastSeen:         c.LastSeen,
	}
}

func clientToDomain(m ClientModel) domain.Client {
	var probes []string
	decodeJSON(m.ProbedSSIDs, &probes)
	return domain.Client{
		MAC:              m.MAC,
		BSSID:            m.BSSID,
		Power:            m.Power,
		Packets:          m.Packets,
		ProbedSSIDs:      probes,
		Vendor:           m.Vendor,
		DeviceType:       m.DeviceType,
		DeviceConfidence: m.DeviceConfidence,
		Fingerprinted:    m.DeviceType != "",
		FirstSeen:        m.FirstSeen,
		LastSeen:         m.LastSeen,
	}
}

func queueToModel(i domain.AttackQueueItem) AttackQueueModel {
	return AttackQueueModel{
		ID:          i.ID,
		Serial:      i.Serial,
		BSSID:       i.BSSID,
		SSID:        i.SSID,
		Channel:     i.Channel,
		Type:        string(i.Type),
		Priority:    i.Priority,
		Status:      string(i.Status),
		Source:      string(i.Source),
		RetryCount:  i.RetryCount,
		MaxRetries:  i.MaxRetries,
		Result:      i.Result,
		Success:     i.Success,
		AddedAt:     i.AddedAt,
		StartedAt:   i.StartedAt,
		CompletedAt: i.CompletedAt,
	}
}

func queueToDomain(m AttackQueueModel) domain.AttackQueueItem {
	return domain.AttackQueueItem{
		ID:          m.ID,
		Serial:      m.Serial,
		BSSID:       m.BSSID,
		SSID:        m.SSID,
		Channel:     m.Channel,
		Type:        domain.AttackType(m.Type),
		Priority:    m.Priority,
		Status:      domain.AttackStatus(m.Status),
		Source:      domain.JobSource(m.Source),
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		Result:      m.Result,
		Success:     m.Success,
		AddedAt:     m.AddedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

func handshakeToDomain(m HandshakeModel) domain.HandshakeRecord {
	var msgs []int
	decodeJSON(m.MessagesSeen, &msgs)
	return domain.HandshakeRecord{
		Serial:            m.Serial,
		BSSID:             m.BSSID,
		SSID:              m.SSID,
		FilePath:          m.FilePath,
		Complete:          m.Complete,
		CompletenessScore: m.CompletenessScore,
		MessagesSeen:      msgs,
		CapturedAt:        m.CapturedAt,
		Cracked:           m.Cracked,
		Secret:            m.Secret,
		WPSPin:            m.WPSPin,
	}
}

func sessionToDomain(m ScanSessionModel) domain.ScanSession {
	return domain.ScanSession{
		ID:                 m.ID,
		Serial:             m.Serial,
		Status:             domain.SessionStatus(m.Status),
		Interface:          m.Interface,
		StartTime:          m.StartTime,
		EndTime:            m.EndTime,
		StartLocation:      pointToLocation(m.StartLatitude, m.StartLongitude),
		EndLocation:        pointToLocation(m.EndLatitude, m.EndLongitude),
		NetworksFound:      m.NetworksFound,
		ClientsFound:       m.ClientsFound,
		HandshakesCaptured: m.HandshakesCaptured,
	}
}

func locationToPoint(loc *domain.Location) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lng := loc.Latitude, loc.Longitude
	return &lat, &lng
}

func pointToLocation(lat, lng *float64) *domain.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Location{Latitude: *lat, Longitude: *lng}
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}
