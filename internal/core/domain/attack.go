package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttackType is the kind of job held in the attack queue.
type AttackType string

const (
	AttackHandshake     AttackType = "handshake_capture"
	AttackWPSPixie      AttackType = "wps_pixie"
	AttackWPSBruteforce AttackType = "wps_pin_bruteforce"
	AttackWPSNullPin    AttackType = "wps_null_pin"
)

// IsWPS reports whether the attack goes through the WPS path.
func (t AttackType) IsWPS() bool {
	return strings.HasPrefix(string(t), "wps_")
}

// IsValid checks the type against the known set.
func (t AttackType) IsValid() bool {
	switch t {
	case AttackHandshake, AttackWPSPixie, AttackWPSBruteforce, AttackWPSNullPin:
		return true
	}
	return false
}

// AttackStatus is the queue item state machine.
type AttackStatus string

const (
	StatusPending    AttackStatus = "pending"
	StatusInProgress AttackStatus = "in_progress"
	StatusCompleted  AttackStatus = "completed"
	StatusFailed     AttackStatus = "failed"
)

// IsFinal reports whether no further transition is possible.
func (s AttackStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces pending -> in_progress -> {completed, failed}.
func (s AttackStatus) CanTransition(to AttackStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// JobSource tells where a queue item came from.
type JobSource string

const (
	SourceQueued JobSource = "queued"
	SourceAuto   JobSource = "auto"
)

// Defaults for new queue items.
const (
	DefaultPriority   = 50
	DefaultMaxRetries = 3
)

// AttackQueueItem is one job in the durable attack queue.
type AttackQueueItem struct {
	ID          uint         `json:"id"`
	Serial      string       `json:"serial"`
	BSSID       string       `json:"bssid"`
	SSID        string       `json:"ssid,omitempty"`
	Channel     int          `json:"channel"`
	Type        AttackType   `json:"type"`
	Priority    int          `json:"priority"`
	Status      AttackStatus `json:"status"`
	Source      JobSource    `json:"source"`
	RetryCount  int          `json:"retry_count"`
	MaxRetries  int          `json:"max_retries"`
	Result      string       `json:"result,omitempty"`
	Success     bool         `json:"success"`
	AddedAt     time.Time    `json:"added_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Transition moves the item to a new status, stamping timestamps.
func (i *AttackQueueItem) Transition(to AttackStatus, at time.Time) error {
	if !i.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, to)
	}
	i.Status = to
	switch to {
	case StatusInProgress:
		i.StartedAt = &at
	case StatusCompleted, StatusFailed:
		i.CompletedAt = &at
	}
	return nil
}

// CanRetry reports whether a failed item may be followed by another attempt.
func (i *AttackQueueItem) CanRetry() bool {
	return i.Status == StatusFailed && i.RetryCount < i.MaxRetries
}

// HandshakeRecord is a captured key exchange for a network.
type HandshakeRecord struct {
	Serial            string    `json:"serial"`
	BSSID             string    `json:"bssid"`
	SSID              string    `json:"ssid,omitempty"`
	FilePath          string    `json:"file_path"`
	Complete          bool      `json:"complete"`
	CompletenessScore int       `json:"completeness_score"`
	MessagesSeen      []int     `json:"messages_seen,omitempty"`
	CapturedAt        time.Time `json:"captured_at"`
	Cracked           bool      `json:"cracked"`
	Secret            string    `json:"-"`
	WPSPin            string    `json:"-"`
}

// SessionStatus is the lifecycle of a scan session.
type SessionStatus string

const (
	SessionLive     SessionStatus = "live"
	SessionArchived SessionStatus = "archived"
)

// ScanSession summarises one scanning run.
type ScanSession struct {
	ID                 uint          `json:"id"`
	Serial             string        `json:"serial"`
	Status             SessionStatus `json:"status"`
	Interface          string        `json:"interface"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	StartLocation      *Location     `json:"start_location,omitempty"`
	EndLocation        *Location     `json:"end_location,omitempty"`
	NetworksFound      int           `json:"networks_found"`
	ClientsFound       int           `json:"clients_found"`
	HandshakesCaptured int           `json:"handshakes_captured"`
}
