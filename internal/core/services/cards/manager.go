package cards

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

const (
	// DefaultEventBuffer is the capacity of the card event channel.
	DefaultEventBuffer = 128
	// DefaultAddDebounce lets a new device settle before detection runs.
	DefaultAddDebounce = time.Second
)

// Manager owns the set of wireless adapters: their roles, states and
// monitor interfaces.
type Manager struct {
	driver ports.RadioDriver

	mu    sync.RWMutex
	cards map[string]*domain.WirelessCard

	events   chan domain.CardEvent
	debounce time.Duration
}

// NewManager creates a card manager backed by the given driver.
func NewManager(driver ports.RadioDriver) *Manager {
	return &Manager{
		driver:   driver,
		cards:    make(map[string]*domain.WirelessCard),
		events:   make(chan domain.CardEvent, DefaultEventBuffer),
		debounce: DefaultAddDebounce,
	}
}

// Events delivers added, removed and role_changed notifications.
func (m *Manager) Events() <-chan domain.CardEvent {
	return m.events
}

// DetectCards refreshes the card set from the driver. Known cards keep
// their role and state; vanished cards are removed.
func (m *Manager) DetectCards(ctx context.Context) ([]domain.WirelessCard, error) {
	found, err := m.driver.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect cards: %w", err)
	}

	var pending []domain.CardEvent

	m.mu.Lock()
	monitorIfaces := make(map[string]bool)
	for _, c := range m.cards {
		if c.MonitorInterface != "" && c.MonitorInterface != c.Interface {
			monitorIfaces[c.MonitorInterface] = true
		}
	}

	seen := make(map[string]bool, len(found))
	for _, f := range found {
		// virtual interfaces created for one of our cards are not cards themselves
		if monitorIfaces[f.Interface] {
			continue
		}
		seen[f.Interface] = true

		if existing, ok := m.cards[f.Interface]; ok {
			existing.Phy = f.Phy
			existing.Driver = f.Driver
			existing.Chipset = f.Chipset
			if f.MAC != "" {
				existing.MAC = f.MAC
			}
			continue
		}

		card := f
		m.cards[card.Interface] = &card
		pending = append(pending, domain.CardEvent{Type: domain.CardAdded, Card: card})
	}

	for iface, c := range m.cards {
		if !seen[iface] {
			delete(m.cards, iface)
			pending = append(pending, domain.CardEvent{Type: domain.CardRemoved, Card: *c})
		}
	}
	result := m.snapshotLocked()
	m.mu.Unlock()

	for _, ev := range pending {
		slog.Info("Wireless card "+string(ev.Type), "interface", ev.Card.Interface, "driver", ev.Card.Driver, "chipset", ev.Card.Chipset)
		m.emit(ev)
	}
	return result, nil
}

// Cards returns a copy of all known cards sorted by interface name.
func (m *Manager) Cards() []domain.WirelessCard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Card returns a copy of one card.
func (m *Manager) Card(iface string) (domain.WirelessCard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[iface]
	if !ok {
		return domain.WirelessCard{}, false
	}
	return *c, true
}

// CardsWithRole filters cards by a role predicate, e.g. domain.CardRole.CanAttack.
func (m *Manager) CardsWithRole(match func(domain.CardRole) bool) []domain.WirelessCard {
	var out []domain.WirelessCard
	for _, c := range m.Cards() {
		if match(c.Role) {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) snapshotLocked() []domain.WirelessCard {
	out := make([]domain.WirelessCard, 0, len(m.cards))
	for _, c := range m.cards {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b domain.WirelessCard) int {
		return strings.Compare(a.Interface, b.Interface)
	})
	return out
}

// AssignRole sets a card's role, emitting role_changed only when it differs.
func (m *Manager) AssignRole(iface string, role domain.CardRole) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}

	m.mu.Lock()
	card, ok := m.cards[iface]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("card %s: %w", iface, domain.ErrNotFound)
	}
	prev := card.Role
	card.Role = role
	snapshot := *card
	m.mu.Unlock()

	if prev != role {
		slog.Info("Card role changed", "interface", iface, "from", prev, "to", role)
		m.emit(domain.CardEvent{Type: domain.CardRoleChanged, Card: snapshot, PreviousRole: prev})
	}
	return nil
}

// AutoAssignRoles applies the default split: one card does both jobs, two
// cards get one scanner and one attacker, with more cards the first scans
// and the rest attack.
func (m *Manager) AutoAssignRoles() {
	cards := m.Cards()
	if len(cards) == 0 {
		slog.Warn("No wireless cards detected")
		return
	}

	for i, c := range cards {
		if err := m.AssignRole(c.Interface, roleFor(i, len(cards))); err != nil {
			slog.Warn("Auto role assignment failed", "interface", c.Interface, "error", err)
		}
	}
}

func roleFor(index, total int) domain.CardRole {
	switch {
	case total == 1:
		return domain.RoleBoth
	case index == 0:
		return domain.RoleScanner
	default:
		return domain.RoleAttacker
	}
}

// SetState records a lifecycle change made by another component, such as
// an attack taking the card.
func (m *Manager) SetState(iface string, state domain.CardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[iface]; ok {
		c.State = state
	}
}

// EnableMonitorMode puts the card into monitor mode and returns the interface
// capture tools must use. A card already in monitor mode is left untouched.
func (m *Manager) EnableMonitorMode(ctx context.Context, iface string) (string, error) {
	card, ok := m.Card(iface)
	if !ok {
		return "", fmt.Errorf("card %s: %w", iface, domain.ErrNotFound)
	}
	if card.State == domain.CardMonitor || card.State == domain.CardInUse {
		return card.CaptureInterface(), nil
	}

	monIface, err := m.driver.EnableMonitor(ctx, iface)
	telemetry.MonitorTransitions.WithLabelValues("enable", telemetry.Result(err)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[iface]
	if !ok {
		// unplugged while switching
		return "", fmt.Errorf("card %s: %w", iface, domain.ErrNotFound)
	}
	if err != nil {
		c.State = domain.CardError
		c.LastError = err.Error()
		slog.Error("Monitor mode failed", "interface", iface, "error", err)
		return "", err
	}

	c.State = domain.CardMonitor
	c.MonitorInterface = monIface
	c.MonitorEnabledByUs = true
	c.LastError = ""
	slog.Info("Monitor mode enabled", "interface", iface, "monitor", monIface)
	return monIface, nil
}

// DisableMonitorMode restores managed mode on a card this process switched.
// On failure the recorded state is left as it was.
func (m *Manager) DisableMonitorMode(ctx context.Context, iface string) error {
	card, ok := m.Card(iface)
	if !ok {
		return fmt.Errorf("card %s: %w", iface, domain.ErrNotFound)
	}

	err := m.driver.DisableMonitor(ctx, iface, card.MonitorInterface)
	telemetry.MonitorTransitions.WithLabelValues("disable", telemetry.Result(err)).Inc()
	if err != nil {
		slog.Error("Restoring managed mode failed", "interface", iface, "error", err)
		return err
	}

	m.mu.Lock()
	if c, ok := m.cards[iface]; ok {
		c.State = domain.CardReady
		c.MonitorInterface = ""
		c.MonitorEnabledByUs = false
	}
	m.mu.Unlock()
	slog.Info("Monitor mode disabled", "interface", iface)
	return nil
}

// StartHotplugWatch follows device add/remove notifications until ctx is
// cancelled. Adds are debounced before re-running detection.
func (m *Manager) StartHotplugWatch(ctx context.Context) {
	raw := make(chan domain.HotplugEvent, 16)

	go func() {
		if err := m.driver.WatchHotplug(ctx, raw); err != nil {
			slog.Warn("Hotplug monitoring unavailable", "error", err)
		}
	}()

	go func() {
		var timer *time.Timer
		fire := make(chan struct{}, 1)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-raw:
				switch ev.Action {
				case domain.HotplugAdd:
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(m.debounce, func() {
						select {
						case fire <- struct{}{}:
						default:
						}
					})
				case domain.HotplugRemove:
					m.removeCard(ev.Interface)
				}
			case <-fire:
				if _, err := m.DetectCards(ctx); err != nil {
					slog.Warn("Card detection after hotplug failed", "error", err)
				}
			}
		}
	}()
}

func (m *Manager) removeCard(iface string) {
	m.mu.Lock()
	c, ok := m.cards[iface]
	if ok {
		delete(m.cards, iface)
	}
	m.mu.Unlock()

	if ok {
		slog.Info("Wireless card removed", "interface", iface)
		m.emit(domain.CardEvent{Type: domain.CardRemoved, Card: *c})
	}
}

func (m *Manager) emit(ev domain.CardEvent) {
	select {
	case m.events <- ev:
	default:
		slog.Warn("Card event dropped, consumer too slow", "type", ev.Type, "interface", ev.Card.Interface)
	}
}
