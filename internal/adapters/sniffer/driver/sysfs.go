package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes network devices.
const DefaultSysfsRoot = "/sys/class/net"

const unknown = "Unknown"

// driverName resolves /sys/class/net/<if>/device/driver to its basename.
func driverName(root, iface string) string {
	target, err := filepath.EvalSymlinks(filepath.Join(root, iface, "device", "driver"))
	if err != nil {
		return unknown
	}
	return filepath.Base(target)
}

// chipset reads the bus modalias and reduces it to "USB vendor:product"
// or "PCI vendor:device".
func chipset(root, iface string) string {
	data, err := os.ReadFile(filepath.Join(root, iface, "device", "modalias"))
	if err != nil {
		return unknown
	}
	return parseModalias(strings.TrimSpace(string(data)))
}

// parseModalias handles the two bus formats wireless adapters use:
//
//	usb:v0BDAp8812d0000dc00dsc00dp00icFFiscFFipFFin00
//	pci:v000010ECd0000C822sv...
func parseModalias(alias string) string {
	switch {
	case strings.HasPrefix(alias, "usb:v") && len(alias) >= 14 && alias[9] == 'p':
		return fmt.Sprintf("USB %s:%s", strings.ToUpper(alias[5:9]), strings.ToUpper(alias[10:14]))
	case strings.HasPrefix(alias, "pci:v") && len(alias) >= 22 && alias[13] == 'd':
		return fmt.Sprintf("PCI %s:%s", strings.ToUpper(alias[9:13]), strings.ToUpper(alias[18:22]))
	case alias == "":
		return unknown
	}
	return alias
}
