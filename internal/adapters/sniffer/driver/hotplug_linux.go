package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// hotplugPoll bounds each blocking read so ctx cancellation is noticed.
const hotplugPoll = time.Second

// WatchHotplug listens for kernel uevents on the net subsystem and forwards
// add/remove actions until ctx is cancelled.
func (d *Driver) WatchHotplug(ctx context.Context, events chan<- domain.HotplugEvent) error {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return fmt.Errorf("netlink socket: %w", err)
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1, Pid: 0}
	if err := unix.Bind(fd, addr); err != nil {
		return fmt.Errorf("netlink bind: %w", err)
	}
	tv := unix.NsecToTimeval(hotplugPoll.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("netlink timeout: %w", err)
	}

	buf := make([]byte, 16*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("netlink recv: %w", err)
		}

		ev, ok := parseUevent(buf[:n])
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		default:
			log.Printf("Hotplug event for %s dropped: consumer busy", ev.Interface)
		}
	}
}

// parseUevent decodes "action@devpath\0KEY=VALUE\0..." messages and keeps
// add/remove events of the net subsystem.
func parseUevent(msg []byte) (domain.HotplugEvent, bool) {
	parts := bytes.Split(msg, []byte{0})
	if len(parts) < 2 {
		return domain.HotplugEvent{}, false
	}

	var action, subsystem, iface string
	for _, p := range parts[1:] {
		key, value, ok := bytes.Cut(p, []byte{'='})
		if !ok {
			continue
		}
		switch string(key) {
		case "ACTION":
			action = string(value)
		case "SUBSYSTEM":
			subsystem = string(value)
		case "INTERFACE":
			iface = string(value)
		}
	}

	if subsystem != "net" || iface == "" {
		return domain.HotplugEvent{}, false
	}
	switch domain.HotplugAction(action) {
	case domain.HotplugAdd, domain.HotplugRemove:
		return domain.HotplugEvent{Action: domain.HotplugAction(action), Interface: iface}, true
	}
	return domain.HotplugEvent{}, false
}
