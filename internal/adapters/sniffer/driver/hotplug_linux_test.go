package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

func TestParseUevent(t *testing.T) {
	msg := []byte("add@/devices/pci0000:00/usb1/1-1/net/wlan1\x00ACTION=add\x00DEVPATH=/devices/x\x00SUBSYSTEM=net\x00INTERFACE=wlan1\x00IFINDEX=7\x00")
	ev, ok := parseUevent(msg)
	assert.True(t, ok)
	assert.Equal(t, domain.HotplugAdd, ev.Action)
	assert.Equal(t, "wlan1", ev.Interface)

	remove := []byte("remove@/x\x00ACTION=remove\x00SUBSYSTEM=net\x00INTERFACE=wlan1\x00")
	ev, ok = parseUevent(remove)
	assert.True(t, ok)
	assert.Equal(t, domain.HotplugRemove, ev.Action)

	_, ok = parseUevent([]byte("add@/x\x00ACTION=add\x00SUBSYSTEM=usb\x00"))
	assert.False(t, ok)

	_, ok = parseUevent([]byte("move@/x\x00ACTION=move\x00SUBSYSTEM=net\x00INTERFACE=wlan1\x00"))
	assert.False(t, ok)
}
