package domain

// CardRole is the job a wireless adapter has been given.
type CardRole string

const (
	RoleUnassigned CardRole = "unassigned"
	RoleScanner    CardRole = "scanner"
	RoleAttacker   CardRole = "attacker"
	RoleBoth       CardRole = "both"
)

// CanScan reports whether the role includes scanning.
func (r CardRole) CanScan() bool {
	return r == RoleScanner || r == RoleBoth
}

// CanAttack reports whether the role includes attacking.
func (r CardRole) CanAttack() bool {
	return r == RoleAttacker || r == RoleBoth
}

// IsValid checks the role against the known set.
func (r CardRole) IsValid() bool {
	switch r {
	case RoleUnassigned, RoleScanner, RoleAttacker, RoleBoth:
		return true
	}
	return false
}

// CardState is the lifecycle state of an adapter.
type CardState string

const (
	CardDetected CardState = "detected"
	CardReady    CardState = "ready"
	CardMonitor  CardState = "monitor"
	CardInUse    CardState = "in_use"
	CardError    CardState = "error"
)

// WirelessCard represents a detected wireless adapter.
type WirelessCard struct {
	Interface        string    `json:"interface"`
	Phy              string    `json:"phy"`
	Driver           string    `json:"driver"`
	Chipset          string    `json:"chipset"`
	MAC              string    `json:"mac"`
	MonitorInterface string    `json:"monitor_interface,omitempty"`
	Role             CardRole  `json:"role"`
	State            CardState `json:"state"`
	LastError        string    `json:"last_error,omitempty"`

	// MonitorEnabledByUs marks cards whose mode this process changed.
	MonitorEnabledByUs bool `json:"-"`
}

// NewWirelessCard is the factory for detected adapters.
func NewWirelessCard(iface, phy, mac string) (*WirelessCard, error) {
	if !IsValidInterface(iface) {
		return nil, ErrInvalidInterfaceName
	}
	if mac != "" {
		normalized, err := NormalizeMAC(mac)
		if err != nil {
			return nil, err
		}
		mac = normalized
	}
	return &WirelessCard{
		Interface: iface,
		Phy:       phy,
		MAC:       mac,
		Role:      RoleUnassigned,
		State:     CardDetected,
	}, nil
}

// CaptureInterface returns the interface name to hand to capture tools.
func (c WirelessCard) CaptureInterface() string {
	if c.MonitorInterface != "" {
		return c.MonitorInterface
	}
	return c.Interface
}

// CardEventType identifies a Card Manager notification.
type CardEventType string

const (
	CardAdded       CardEventType = "added"
	CardRemoved     CardEventType = "removed"
	CardRoleChanged CardEventType = "role_changed"
)

// CardEvent is emitted by the Card Manager on its event channel.
type CardEvent struct {
	Type         CardEventType `json:"type"`
	Card         WirelessCard  `json:"card"`
	PreviousRole CardRole      `json:"previous_role,omitempty"`
}

// HotplugAction is the kernel uevent action for a network device.
type HotplugAction string

const (
	HotplugAdd    HotplugAction = "add"
	HotplugRemove HotplugAction = "remove"
)

// HotplugEvent is a raw device notification from the driver layer.
type HotplugEvent struct {
	Action    HotplugAction
	Interface string
}
