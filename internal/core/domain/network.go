package domain

import (
	"slices"
	"strings"
	"time"
)

// RiskLevel buckets an attack score.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "UNKNOWN"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AccessPoint is a discovered access point radio.
type AccessPoint struct {
	BSSID          string `json:"bssid"`
	SSID           string `json:"ssid"`
	Channel        int    `json:"channel"`
	Speed          int    `json:"speed"`
	Encryption     string `json:"encryption"`
	Cipher         string `json:"cipher"`
	Authentication string `json:"authentication"`
	Power          int    `json:"power"`
	Beacons        int    `json:"beacons"`
	IVs            int    `json:"ivs"`
	LANIP          string `json:"lan_ip,omitempty"`
	IDLength       int    `json:"id_length"`

	WPSEnabled bool   `json:"wps_enabled"`
	WPSLocked  bool   `json:"wps_locked"`
	WPSVersion string `json:"wps_version,omitempty"`

	AttackScore float64   `json:"attack_score"`
	RiskLevel   RiskLevel `json:"risk_level"`

	Vendor           string `json:"vendor"`
	DeviceType       string `json:"device_type"`
	DeviceConfidence int    `json:"device_confidence"`
	Fingerprinted    bool   `json:"fingerprinted"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Clients holds the MACs of associated stations.
	Clients map[string]struct{} `json:"-"`
}

// NewAccessPoint creates an AP keyed by a validated BSSID.
func NewAccessPoint(bssid string) (*AccessPoint, error) {
	key, err := NormalizeMAC(bssid)
	if err != nil {
		return nil, err
	}
	return &AccessPoint{
		BSSID:     key,
		RiskLevel: RiskUnknown,
		Vendor:    "Unknown",
		Clients:   make(map[string]struct{}),
	}, nil
}

// Hidden reports whether the network does not broadcast its SSID.
func (a *AccessPoint) Hidden() bool {
	return a.SSID == ""
}

// ClientMACs returns the associated client keys in sorted order.
func (a *AccessPoint) ClientMACs() []string {
	out := make([]string, 0, len(a.Clients))
	for mac := range a.Clients {
		out = append(out, mac)
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy safe to hand to other goroutines.
func (a *AccessPoint) Clone() AccessPoint {
	cp := *a
	cp.Clients = make(map[string]struct{}, len(a.Clients))
	for k := range a.Clients {
		cp.Clients[k] = struct{}{}
	}
	return cp
}

// UsesPassword reports whether the privacy field is a password based scheme.
func (a *AccessPoint) UsesPassword() bool {
	enc := strings.ToUpper(a.Encryption)
	return strings.Contains(enc, "WPA") || strings.Contains(enc, "WEP")
}

// Client is a station observed by the capture tool.
type Client struct {
	MAC              string    `json:"mac"`
	BSSID            string    `json:"bssid,omitempty"`
	Power            int       `json:"power"`
	Packets          int       `json:"packets"`
	ProbedSSIDs      []string  `json:"probed_ssids"`
	Vendor           string    `json:"vendor"`
	DeviceType       string    `json:"device_type"`
	DeviceConfidence int       `json:"device_confidence"`
	Fingerprinted    bool      `json:"fingerprinted"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// NewClient creates a client keyed by a validated MAC.
func NewClient(mac string) (*Client, error) {
	key, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	return &Client{MAC: key, Vendor: "Unknown"}, nil
}

// Associated reports whether the station is bound to an AP.
func (c *Client) Associated() bool {
	return c.BSSID != ""
}

// AddProbe records a probed SSID, keeping order and uniqueness.
// Returns true when the SSID was new.
func (c *Client) AddProbe(ssid string) bool {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" || slices.Contains(c.ProbedSSIDs, ssid) {
		return false
	}
	c.ProbedSSIDs = append(c.ProbedSSIDs, ssid)
	return true
}

// Clone returns a deep copy.
func (c *Client) Clone() Client {
	cp := *c
	cp.ProbedSSIDs = slices.Clone(c.ProbedSSIDs)
	return cp
}

// WPSInfo is one row reported by the WPS probe tool.
type WPSInfo struct {
	BSSID   string `json:"bssid"`
	Channel int    `json:"channel"`
	Power   int    `json:"power"`
	Version string `json:"version"`
	Locked  bool   `json:"locked"`
	Vendor  string `json:"vendor"`
	ESSID   string `json:"essid"`
}

// ObservationKind tells which entity an observation refers to.
type ObservationKind string

const (
	ObservedNetwork ObservationKind = "network"
	ObservedClient  ObservationKind = "client"
)

// Observation is one row per entity per session. Repeated sightings bump
// Sightings and LastSeen and keep the strongest Power.
type Observation struct {
	SessionID uint            `json:"session_id"`
	MAC       string          `json:"mac"`
	Kind      ObservationKind `json:"kind"`
	Power     int             `json:"power"`
	Location  *Location       `json:"location,omitempty"`
	Sightings int             `json:"sightings"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
}

// Location is a fix returned by a location provider.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Accuracy  float64 `json:"accuracy"`
	Source    string  `json:"source"`
}
