package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttackStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to AttackStatus
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusInProgress, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAttackQueueItem_Transition(t *testing.T) {
	item := &AttackQueueItem{Status: StatusPending, MaxRetries: 1}
	now := time.Now()

	require.NoError(t, item.Transition(StatusInProgress, now))
	assert.NotNil(t, item.StartedAt)

	require.NoError(t, item.Transition(StatusFailed, now))
	assert.NotNil(t, item.CompletedAt)
	assert.True(t, item.CanRetry())

	err := item.Transition(StatusPending, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusFailed, item.Status)
}

func TestAttackType(t *testing.T) {
	assert.True(t, AttackWPSPixie.IsWPS())
	assert.True(t, AttackWPSNullPin.IsWPS())
	assert.False(t, AttackHandshake.IsWPS())
	assert.False(t, AttackType("pmkid").IsValid())
}

func TestAccessPoint_CloneIsDeep(t *testing.T) {
	ap, err := NewAccessPoint("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	ap.Clients["11:22:33:44:55:66"] = struct{}{}

	cp := ap.Clone()
	delete(ap.Clients, "11:22:33:44:55:66")

	assert.Equal(t, "AA:BB:CC:DD:EE:01", cp.BSSID)
	assert.Len(t, cp.Clients, 1)
}

func TestClient_AddProbe(t *testing.T) {
	c, err := NewClient("11:22:33:44:55:66")
	require.NoError(t, err)

	assert.True(t, c.AddProbe("HomeNet"))
	assert.False(t, c.AddProbe("HomeNet"))
	assert.False(t, c.AddProbe("  "))
	assert.True(t, c.AddProbe("Office"))
	assert.Equal(t, []string{"HomeNet", "Office"}, c.ProbedSSIDs)
}

func TestModeTransitionError_Is(t *testing.T) {
	err := &ModeTransitionError{Interface: "wlan0", Op: "enable", Err: ErrNotFound}
	assert.ErrorIs(t, err, ErrModeTransitionFailed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "wlan0")
}
