//go:build !linux

package driver

import (
	"context"
	"errors"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// WatchHotplug is only implemented on Linux.
func (d *Driver) WatchHotplug(ctx context.Context, events chan<- domain.HotplugEvent) error {
	return errors.New("hotplug watching requires linux")
}
