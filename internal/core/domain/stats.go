package domain

import (
	"time"
)

// SystemStatus is an aggregated snapshot of the running orchestrator.
type SystemStatus struct {
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`

	Cards    []WirelessCard   `json:"cards"`
	Scanners []ScanStatistics `json:"scanners"`

	// Attack engine
	AttackInterface string `json:"attack_interface,omitempty"`
	AttackRunning   bool   `json:"attack_running"`
	AttacksDone     int64  `json:"attacks_done"`

	// Sync worker
	SyncInserted int64 `json:"sync_inserted"`
	SyncUpdated  int64 `json:"sync_updated"`
	SyncErrored  int64 `json:"sync_errored"`
	SyncDropped  int64 `json:"sync_dropped"`

	Session *ScanSession `json:"session,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// IsStale returns true if the status hasn't been refreshed within the given TTL.
func (s *SystemStatus) IsStale(ttl time.Duration) bool {
	return time.Since(s.UpdatedAt) > ttl
}
