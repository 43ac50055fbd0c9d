package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

const iwDevOutput = `phy#1
	Interface wlan1
		ifindex 5
		wdev 0x100000001
		addr 00:c0:ca:11:22:33
		type managed
		txpower 20.00 dBm
phy#0
	Interface wlan0mon
		ifindex 4
		wdev 0x2
		addr 9c:b6:d0:aa:bb:cc
		type monitor
	Interface wlan0
		ifindex 3
		wdev 0x1
		addr 9c:b6:d0:aa:bb:cc
		type managed
`

// fakeRunner records calls and answers from a table keyed by the joined command line.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	replies map[string]string
	fail    map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string]string{}, fail: map[string]bool{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)
	if f.fail[line] {
		return []byte("operation not supported"), fmt.Errorf("%s: exit status 1", line)
	}
	return []byte(f.replies[line]), nil
}

func (f *fakeRunner) called(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == line {
			return true
		}
	}
	return false
}

func newTestDriver(t *testing.T, f *fakeRunner) *Driver {
	return &Driver{Run: f.Run, SysfsRoot: t.TempDir()}
}

func TestParseIWDev(t *testing.T) {
	ifaces := parseIWDev([]byte(iwDevOutput))
	require.Len(t, ifaces, 3)

	assert.Equal(t, "wlan0", ifaces[0].Name)
	assert.Equal(t, "phy0", ifaces[0].Phy)
	assert.Equal(t, "managed", ifaces[0].Type)
	assert.Equal(t, 3, ifaces[0].Index)

	assert.Equal(t, "wlan0mon", ifaces[1].Name)
	assert.Equal(t, "monitor", ifaces[1].Type)

	assert.Equal(t, "wlan1", ifaces[2].Name)
	assert.Equal(t, "phy1", ifaces[2].Phy)
	assert.Equal(t, "00:c0:ca:11:22:33", ifaces[2].Addr)
}

func TestListCards(t *testing.T) {
	f := newFakeRunner()
	f.replies["iw dev"] = iwDevOutput
	d := newTestDriver(t, f)

	// sysfs layout for wlan1: driver symlink + usb modalias
	devDir := filepath.Join(d.SysfsRoot, "wlan1", "device")
	require.NoError(t, os.MkdirAll(devDir, 0o755))
	driverDir := filepath.Join(d.SysfsRoot, "drivers", "rtl8812au")
	require.NoError(t, os.MkdirAll(driverDir, 0o755))
	require.NoError(t, os.Symlink(driverDir, filepath.Join(devDir, "driver")))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "modalias"), []byte("usb:v0bdap8812d0000dc00dsc00dp00icFFiscFFipFFin00\n"), 0o644))

	cards, err := d.ListCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, "wlan0", cards[0].Interface)
	assert.Equal(t, domain.CardDetected, cards[0].State)
	assert.Equal(t, "Unknown", cards[0].Driver)
	assert.Equal(t, "Unknown", cards[0].Chipset)

	assert.Equal(t, domain.CardMonitor, cards[1].State)

	assert.Equal(t, "wlan1", cards[2].Interface)
	assert.Equal(t, "00:C0:CA:11:22:33", cards[2].MAC)
	assert.Equal(t, "rtl8812au", cards[2].Driver)
	assert.Equal(t, "USB 0BDA:8812", cards[2].Chipset)
	assert.Equal(t, domain.RoleUnassigned, cards[2].Role)
}

func TestListCards_IWFailure(t *testing.T) {
	f := newFakeRunner()
	f.fail["iw dev"] = true
	_, err := newTestDriver(t, f).ListCards(context.Background())
	assert.Error(t, err)
}

func TestParseModalias(t *testing.T) {
	assert.Equal(t, "USB 0BDA:8812", parseModalias("usb:v0BDAp8812d0000dc00dsc00dp00icFFiscFFipFFin00"))
	assert.Equal(t, "PCI 10EC:C822", parseModalias("pci:v000010ECd0000C822sv000010ECsd0000C822bc02sc80i00"))
	assert.Equal(t, "sdio:c00v02D0d4324", parseModalias("sdio:c00v02D0d4324"))
	assert.Equal(t, "Unknown", parseModalias(""))
}

func TestEnableMonitor_IW(t *testing.T) {
	f := newFakeRunner()
	f.replies["iw dev wlan0 info"] = "Interface wlan0\n\tifindex 3\n\ttype monitor\n"
	d := newTestDriver(t, f)

	mon, err := d.EnableMonitor(context.Background(), "wlan0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", mon)

	assert.True(t, f.called("nmcli device set wlan0 managed no"))
	assert.True(t, f.called("wpa_cli -i wlan0 terminate"))
	assert.True(t, f.called("iw dev wlan0 set type monitor"))
	assert.False(t, f.called("airmon-ng start wlan0"))
}

func TestEnableMonitor_FallsBackToAirmon(t *testing.T) {
	f := newFakeRunner()
	f.fail["iw dev wlan0 set type monitor"] = true
	f.fail["nmcli device set wlan0 managed no"] = true
	f.replies["airmon-ng start wlan0"] = "PHY\tInterface\tDriver\n\n\t\t(mac80211 monitor mode vif enabled for [phy0]wlan0 on [phy0]wlan0mon)\n"
	f.replies["iw dev wlan0mon info"] = "Interface wlan0mon\n\ttype monitor\n"
	d := newTestDriver(t, f)

	mon, err := d.EnableMonitor(context.Background(), "wlan0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0mon", mon)
	assert.True(t, f.called("iw dev wlan0 set type managed"), "iw attempt is rolled back first")
}

func TestEnableMonitor_TotalFailureRollsBack(t *testing.T) {
	f := newFakeRunner()
	f.replies["iw dev wlan0 info"] = "Interface wlan0\n\ttype managed\n"
	f.fail["airmon-ng start wlan0"] = true
	d := newTestDriver(t, f)

	_, err := d.EnableMonitor(context.Background(), "wlan0")
	require.Error(t, err)

	var modeErr *domain.ModeTransitionError
	require.True(t, errors.As(err, &modeErr))
	assert.Equal(t, "enable", modeErr.Op)
	assert.ErrorIs(t, err, domain.ErrModeTransitionFailed)

	managed := 0
	for _, c := range f.calls {
		if c == "iw dev wlan0 set type managed" {
			managed++
		}
	}
	assert.Equal(t, 2, managed)

	// NetworkManager gets the card back after the last rollback
	require.NotEmpty(t, f.calls)
	assert.Equal(t, "nmcli device set wlan0 managed yes", f.calls[len(f.calls)-1])
}

func TestEnableMonitor_AirmonInterfaceNotMonitor(t *testing.T) {
	f := newFakeRunner()
	f.fail["iw dev wlan0 set type monitor"] = true
	f.replies["airmon-ng start wlan0"] = "nothing useful"
	f.replies["iw dev wlan0mon info"] = "Interface wlan0mon\n\ttype managed\n"
	d := newTestDriver(t, f)

	_, err := d.EnableMonitor(context.Background(), "wlan0")
	assert.ErrorIs(t, err, domain.ErrModeTransitionFailed)
	assert.True(t, f.called("airmon-ng stop wlan0mon"))
}

func TestDisableMonitor(t *testing.T) {
	t.Run("iw", func(t *testing.T) {
		f := newFakeRunner()
		d := newTestDriver(t, f)
		require.NoError(t, d.DisableMonitor(context.Background(), "wlan0", "wlan0"))
		assert.True(t, f.called("iw dev wlan0 set type managed"))
		assert.True(t, f.called("nmcli device set wlan0 managed yes"))
	})

	t.Run("airmon", func(t *testing.T) {
		f := newFakeRunner()
		d := newTestDriver(t, f)
		require.NoError(t, d.DisableMonitor(context.Background(), "wlan0", "wlan0mon"))
		assert.True(t, f.called("airmon-ng stop wlan0mon"))
		assert.False(t, f.called("iw dev wlan0 set type managed"))
	})

	t.Run("failure", func(t *testing.T) {
		f := newFakeRunner()
		f.fail["iw dev wlan0 set type managed"] = true
		d := newTestDriver(t, f)
		err := d.DisableMonitor(context.Background(), "wlan0", "")
		var modeErr *domain.ModeTransitionError
		require.True(t, errors.As(err, &modeErr))
		assert.Equal(t, "disable", modeErr.Op)
		assert.False(t, f.called("nmcli device set wlan0 managed yes"))
	})
}

func TestParseAirmonStart(t *testing.T) {
	assert.Equal(t, "wlan0mon", parseAirmonStart([]byte("(mac80211 monitor mode vif enabled for [phy0]wlan0 on [phy0]wlan0mon)"), "wlan0"))
	assert.Equal(t, "mon0", parseAirmonStart([]byte("(monitor mode enabled on mon0)"), "wlan0"))
	assert.Equal(t, "wlan1mon", parseAirmonStart([]byte("garbage"), "wlan1"))
}

func TestParsePhyInfo(t *testing.T) {
	out := `Wiphy phy0
	Band 1:
		Frequencies:
			* 2412 MHz [1] (20.0 dBm)
			* 2484 MHz [14] (disabled)
		Bitrates (non-HT):
			* 1.0 Mbps
	Band 2:
		Frequencies:
			* 5180 MHz [36] (23.0 dBm)
`
	caps := parsePhyInfo([]byte(out))
	assert.Equal(t, []int{1, 36}, caps.Channels)
	assert.True(t, caps.Bands["2.4ghz"])
	assert.True(t, caps.Bands["5ghz"])
}

func TestSetChannel(t *testing.T) {
	f := newFakeRunner()
	d := newTestDriver(t, f)
	assert.Error(t, d.SetChannel(context.Background(), "wlan0mon", 0))
	require.NoError(t, d.SetChannel(context.Background(), "wlan0mon", 6))
	assert.True(t, f.called("iw dev wlan0mon set channel 6"))
}
