package cards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

type mockDriver struct {
	mu        sync.Mutex
	cards     []domain.WirelessCard
	enableErr error
	monIface  string
	disabled  []string
	hotplug   chan domain.HotplugEvent
}

func (d *mockDriver) ListCards(ctx context.Context) ([]domain.WirelessCard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.WirelessCard(nil), d.cards...), nil
}

func (d *mockDriver) EnableMonitor(ctx context.Context, iface string) (string, error) {
	if d.enableErr != nil {
		return "", d.enableErr
	}
	if d.monIface != "" {
		return d.monIface, nil
	}
	return iface, nil
}

func (d *mockDriver) DisableMonitor(ctx context.Context, iface, monitorIface string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled = append(d.disabled, iface+"/"+monitorIface)
	return nil
}

func (d *mockDriver) WatchHotplug(ctx context.Context, events chan<- domain.HotplugEvent) error {
	if d.hotplug == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.hotplug:
			events <- ev
		}
	}
}

func (d *mockDriver) setCards(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards = nil
	for _, n := range names {
		d.cards = append(d.cards, domain.WirelessCard{Interface: n, Role: domain.RoleUnassigned, State: domain.CardDetected})
	}
}

func drain(ch <-chan domain.CardEvent) []domain.CardEvent {
	var out []domain.CardEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestDetectCards_AddAndRemove(t *testing.T) {
	drv := &mockDriver{}
	drv.setCards("wlan1", "wlan0")
	m := NewManager(drv)

	cards, err := m.DetectCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "wlan0", cards[0].Interface)

	events := drain(m.Events())
	require.Len(t, events, 2)
	assert.Equal(t, domain.CardAdded, events[0].Type)

	require.NoError(t, m.AssignRole("wlan0", domain.RoleScanner))
	drain(m.Events())

	drv.setCards("wlan0")
	_, err = m.DetectCards(context.Background())
	require.NoError(t, err)

	events = drain(m.Events())
	require.Len(t, events, 1)
	assert.Equal(t, domain.CardRemoved, events[0].Type)
	assert.Equal(t, "wlan1", events[0].Card.Interface)

	card, ok := m.Card("wlan0")
	require.True(t, ok)
	assert.Equal(t, domain.RoleScanner, card.Role, "re-detection keeps the role")
}

func TestAutoAssignRoles(t *testing.T) {
	tests := []struct {
		name  string
		cards []string
		want  map[string]domain.CardRole
	}{
		{"single", []string{"wlan0"}, map[string]domain.CardRole{"wlan0": domain.RoleBoth}},
		{"pair", []string{"wlan1", "wlan0"}, map[string]domain.CardRole{"wlan0": domain.RoleScanner, "wlan1": domain.RoleAttacker}},
		{"many", []string{"wlan2", "wlan0", "wlan1"}, map[string]domain.CardRole{
			"wlan0": domain.RoleScanner, "wlan1": domain.RoleAttacker, "wlan2": domain.RoleAttacker,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := &mockDriver{}
			drv.setCards(tt.cards...)
			m := NewManager(drv)
			_, err := m.DetectCards(context.Background())
			require.NoError(t, err)
			drain(m.Events())

			m.AutoAssignRoles()
			for iface, role := range tt.want {
				c, _ := m.Card(iface)
				assert.Equal(t, role, c.Role, iface)
			}

			events := drain(m.Events())
			assert.Len(t, events, len(tt.cards))
			for _, ev := range events {
				assert.Equal(t, domain.CardRoleChanged, ev.Type)
				assert.Equal(t, domain.RoleUnassigned, ev.PreviousRole)
			}

			// a second pass changes nothing and emits nothing
			m.AutoAssignRoles()
			assert.Empty(t, drain(m.Events()))
		})
	}
}

func TestAssignRole_Errors(t *testing.T) {
	m := NewManager(&mockDriver{})
	assert.ErrorIs(t, m.AssignRole("wlan9", domain.RoleScanner), domain.ErrNotFound)
	assert.Error(t, m.AssignRole("wlan9", domain.CardRole("jammer")))
}

func TestEnableMonitorMode(t *testing.T) {
	drv := &mockDriver{monIface: "wlan0mon"}
	drv.setCards("wlan0")
	m := NewManager(drv)
	_, err := m.DetectCards(context.Background())
	require.NoError(t, err)

	mon, err := m.EnableMonitorMode(context.Background(), "wlan0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0mon", mon)

	card, _ := m.Card("wlan0")
	assert.Equal(t, domain.CardMonitor, card.State)
	assert.True(t, card.MonitorEnabledByUs)
	assert.Equal(t, "wlan0mon", card.CaptureInterface())

	// the virtual interface shows up in iw dev but is not a new card
	drv.setCards("wlan0", "wlan0mon")
	cards, err := m.DetectCards(context.Background())
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	require.NoError(t, m.DisableMonitorMode(context.Background(), "wlan0"))
	card, _ = m.Card("wlan0")
	assert.Equal(t, domain.CardReady, card.State)
	assert.Empty(t, card.MonitorInterface)
	assert.Equal(t, []string{"wlan0/wlan0mon"}, drv.disabled)
}

func TestEnableMonitorMode_Failure(t *testing.T) {
	modeErr := &domain.ModeTransitionError{Interface: "wlan0", Op: "enable", Err: errors.New("busy")}
	drv := &mockDriver{enableErr: modeErr}
	drv.setCards("wlan0")
	m := NewManager(drv)
	_, err := m.DetectCards(context.Background())
	require.NoError(t, err)

	_, err = m.EnableMonitorMode(context.Background(), "wlan0")
	assert.ErrorIs(t, err, domain.ErrModeTransitionFailed)

	card, _ := m.Card("wlan0")
	assert.Equal(t, domain.CardError, card.State)
	assert.Contains(t, card.LastError, "busy")
	assert.False(t, card.MonitorEnabledByUs)
}

func TestEventsDropWhenFull(t *testing.T) {
	drv := &mockDriver{}
	m := NewManager(drv)
	m.events = make(chan domain.CardEvent, 1)

	drv.setCards("wlan0", "wlan1", "wlan2")
	_, err := m.DetectCards(context.Background())
	require.NoError(t, err)

	assert.Len(t, drain(m.Events()), 1)
}

func TestHotplug(t *testing.T) {
	drv := &mockDriver{hotplug: make(chan domain.HotplugEvent)}
	drv.setCards("wlan0")
	m := NewManager(drv)
	m.debounce = 20 * time.Millisecond
	_, err := m.DetectCards(context.Background())
	require.NoError(t, err)
	drain(m.Events())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartHotplugWatch(ctx)

	drv.setCards("wlan0", "wlan1")
	drv.hotplug <- domain.HotplugEvent{Action: domain.HotplugAdd, Interface: "wlan1"}
	drv.hotplug <- domain.HotplugEvent{Action: domain.HotplugAdd, Interface: "wlan1"}

	select {
	case ev := <-m.Events():
		assert.Equal(t, domain.CardAdded, ev.Type)
		assert.Equal(t, "wlan1", ev.Card.Interface)
	case <-time.After(2 * time.Second):
		t.Fatal("no added event after hotplug")
	}

	drv.hotplug <- domain.HotplugEvent{Action: domain.HotplugRemove, Interface: "wlan0"}
	select {
	case ev := <-m.Events():
		assert.Equal(t, domain.CardRemoved, ev.Type)
		assert.Equal(t, "wlan0", ev.Card.Interface)
	case <-time.After(2 * time.Second):
		t.Fatal("no removed event after hotplug")
	}

	_, ok := m.Card("wlan0")
	assert.False(t, ok)
}
