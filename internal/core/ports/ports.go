package ports

import (
	"context"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// VendorLookup resolves a MAC prefix to a vendor name, "Unknown" on miss.
type VendorLookup interface {
	LookupVendor(ctx context.Context, macPrefix string) string
}

// LocationProvider returns the current fix, if any.
type LocationProvider interface {
	GetLocation() (domain.Location, bool)
}

// IDGenerator produces short prefixed identifiers for new rows.
type IDGenerator interface {
	NewID(prefix string, length int) string
}

// RadioDriver is the OS-facing side of the Card Manager.
type RadioDriver interface {
	ListCards(ctx context.Context) ([]domain.WirelessCard, error)
	// EnableMonitor switches iface to monitor mode and returns the
	// interface name capture tools must use.
	EnableMonitor(ctx context.Context, iface string) (string, error)
	DisableMonitor(ctx context.Context, iface, monitorIface string) error
	// WatchHotplug blocks delivering device events until ctx is done.
	WatchHotplug(ctx context.Context, events chan<- domain.HotplugEvent) error
}

// AttackGate arbitrates adapters shared between scanning and attacking.
type AttackGate interface {
	BeginAttack(ctx context.Context, iface string) error
	EndAttack(ctx context.Context, iface string)
}

// WPSMerger accepts WPS probe findings for known access points.
type WPSMerger interface {
	MergeWPS(info domain.WPSInfo) bool
}
