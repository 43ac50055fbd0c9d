package domain

import "time"

// ScanEventType labels a ScanEvent.
type ScanEventType string

const (
	// ScanUpdated follows a fingerprint merge or a change to an already
	// fingerprinted entity.
	ScanUpdated ScanEventType = "updated"
)

// ScanEvent is emitted by the ingest engine once entities are fingerprinted.
// New entities stay silent until their first fingerprint lands.
// Exactly one of AccessPoint or Client is set.
type ScanEvent struct {
	Type        ScanEventType `json:"type"`
	Interface   string        `json:"interface"`
	AccessPoint *AccessPoint  `json:"access_point,omitempty"`
	Client      *Client       `json:"client,omitempty"`
	At          time.Time     `json:"at"`
}

// AttackEvent reports the outcome of a queue item.
type AttackEvent struct {
	Item    AttackQueueItem  `json:"item"`
	Record  *HandshakeRecord `json:"record,omitempty"`
	Elapsed time.Duration    `json:"elapsed"`
}

// ScanStatistics is a point-in-time summary of the ingest model.
type ScanStatistics struct {
	Interface           string         `json:"interface"`
	TotalAPs            int            `json:"total_aps"`
	TotalClients        int            `json:"total_clients"`
	WPSNetworks         int            `json:"wps_networks"`
	WPSUnlocked         int            `json:"wps_unlocked"`
	ScanDuration        time.Duration  `json:"scan_duration"`
	SinceLastAP         *time.Duration `json:"since_last_ap,omitempty"`
	SinceLastClient     *time.Duration `json:"since_last_client,omitempty"`
	MalformedRows       int64          `json:"malformed_rows"`
	Saturated           bool           `json:"saturated"`
	SaturationReason    string         `json:"saturation_reason"`
	UnknownWPSBSSIDs    int64          `json:"unknown_wps_bssids"`
	FingerprintsPending int            `json:"fingerprints_pending"`
}
