package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// DefaultCommandTimeout bounds every iw/ip/airmon-ng invocation.
const DefaultCommandTimeout = 10 * time.Second

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Driver manages adapters through iw, ip, airmon-ng and sysfs.
type Driver struct {
	Run       Runner
	SysfsRoot string
}

// New returns a driver that runs tools through the launcher with a per-command timeout.
func New(launcher *process.Launcher, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Driver{
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return launcher.Output(ctx, timeout, name, args...)
		},
		SysfsRoot: DefaultSysfsRoot,
	}
}

// ListCards enumerates wireless interfaces sorted by name.
func (d *Driver) ListCards(ctx context.Context) ([]domain.WirelessCard, error) {
	out, err := d.Run(ctx, "iw", "dev")
	if err != nil {
		return nil, fmt.Errorf("iw dev: %w", err)
	}

	var cards []domain.WirelessCard
	for _, entry := range parseIWDev(out) {
		card, err := domain.NewWirelessCard(entry.Name, entry.Phy, entry.Addr)
		if err != nil {
			log.Printf("Skipping interface %q: %v", entry.Name, err)
			continue
		}
		card.Driver = driverName(d.SysfsRoot, entry.Name)
		card.Chipset = chipset(d.SysfsRoot, entry.Name)
		if entry.Type == "monitor" || strings.Contains(entry.Name, "mon") {
			card.State = domain.CardMonitor
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// EnableMonitor switches iface to monitor mode with iw, falling back to
// airmon-ng. Every failed attempt is rolled back before the next one.
func (d *Driver) EnableMonitor(ctx context.Context, iface string) (string, error) {
	d.release(ctx, iface)

	iwErr := d.setType(ctx, iface, "monitor")
	if iwErr == nil {
		if d.isMonitor(ctx, iface) {
			return iface, nil
		}
		iwErr = errors.New("interface did not report type monitor")
	}
	log.Printf("iw monitor switch failed on %s (%v), trying airmon-ng", iface, iwErr)
	d.restoreManaged(ctx, iface)

	monIface, airmonErr := d.airmonStart(ctx, iface)
	if airmonErr == nil {
		return monIface, nil
	}

	d.restoreManaged(ctx, iface)
	d.reclaim(ctx, iface)
	return "", &domain.ModeTransitionError{
		Interface: iface,
		Op:        "enable",
		Err:       errors.Join(iwErr, airmonErr),
	}
}

// DisableMonitor returns the adapter to managed mode and hands it back to
// NetworkManager. monIface is the interface EnableMonitor returned.
func (d *Driver) DisableMonitor(ctx context.Context, iface, monIface string) error {
	var err error
	if monIface != "" && monIface != iface {
		if _, stopErr := d.Run(ctx, "airmon-ng", "stop", monIface); stopErr != nil {
			err = stopErr
		}
	} else {
		err = d.setType(ctx, iface, "managed")
	}
	if err != nil {
		return &domain.ModeTransitionError{Interface: iface, Op: "disable", Err: err}
	}

	d.reclaim(ctx, iface)
	return nil
}

// release asks NetworkManager and wpa_supplicant to let go of this one
// interface. Either tool may be absent.
func (d *Driver) release(ctx context.Context, iface string) {
	_, _ = d.Run(ctx, "nmcli", "device", "set", iface, "managed", "no")
	_, _ = d.Run(ctx, "wpa_cli", "-i", iface, "terminate")
}

// reclaim hands the interface back to NetworkManager.
func (d *Driver) reclaim(ctx context.Context, iface string) {
	if _, err := d.Run(ctx, "nmcli", "device", "set", iface, "managed", "yes"); err != nil {
		log.Printf("nmcli could not re-manage %s: %v", iface, err)
	}
}

func (d *Driver) setType(ctx context.Context, iface, mode string) error {
	if err := d.runCmd(ctx, "ip", "link", "set", iface, "down"); err != nil {
		return err
	}
	if err := d.runCmd(ctx, "iw", "dev", iface, "set", "type", mode); err != nil {
		_ = d.runCmd(ctx, "ip", "link", "set", iface, "up")
		return err
	}
	return d.runCmd(ctx, "ip", "link", "set", iface, "up")
}

func (d *Driver) restoreManaged(ctx context.Context, iface string) {
	if err := d.setType(ctx, iface, "managed"); err != nil {
		log.Printf("Rollback to managed mode failed on %s: %v", iface, err)
	}
}

func (d *Driver) isMonitor(ctx context.Context, iface string) bool {
	out, err := d.Run(ctx, "iw", "dev", iface, "info")
	if err != nil {
		return false
	}
	return interfaceType(out) == "monitor"
}

func (d *Driver) airmonStart(ctx context.Context, iface string) (string, error) {
	out, err := d.Run(ctx, "airmon-ng", "start", iface)
	if err != nil {
		return "", fmt.Errorf("airmon-ng start %s: %w", iface, err)
	}
	monIface := parseAirmonStart(out, iface)
	if !d.isMonitor(ctx, monIface) {
		_, _ = d.Run(ctx, "airmon-ng", "stop", monIface)
		return "", fmt.Errorf("airmon-ng: %s is not in monitor mode", monIface)
	}
	return monIface, nil
}

func (d *Driver) runCmd(ctx context.Context, name string, args ...string) error {
	output, err := d.Run(ctx, name, args...)
	if err != nil {
		log.Printf("Command failed: %s %v\nOutput: %s", name, args, string(output))
		return err
	}
	return nil
}

// SetChannel tunes a monitor interface.
func (d *Driver) SetChannel(ctx context.Context, iface string, channel int) error {
	if channel <= 0 {
		return fmt.Errorf("invalid channel: %d", channel)
	}
	return d.runCmd(ctx, "iw", "dev", iface, "set", "channel", fmt.Sprint(channel))
}
