package config

import (
	"github.com/urfave/cli/v2"
)

// Flags are the global CLI flags. They override every other source.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Load settings from INI `FILE`"},
		&cli.StringFlag{Name: "interface", Aliases: []string{"i"}, Usage: "Wireless interface(s) to manage (comma separated)"},
		&cli.StringFlag{Name: "addr", Usage: "HTTP status server address"},
		&cli.IntFlag{Name: "grpc", Usage: "gRPC health port (0 disables)"},
		&cli.StringFlag{Name: "db", Usage: "Path to SQLite database"},
		&cli.StringFlag{Name: "oui-file", Usage: "Extra OUI text file (\"XX:XX:XX Vendor\" lines)"},
		&cli.Float64Flag{Name: "lat", Usage: "Static latitude"},
		&cli.Float64Flag{Name: "lng", Usage: "Static longitude"},
		&cli.BoolFlag{Name: "auto-attack", Usage: "Pick targets automatically when the queue is empty"},
		&cli.BoolFlag{Name: "no-auto-assign", Usage: "Leave new cards unassigned"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable verbose debug logging"},
	}
}

// FromContext loads the configuration and applies the flags present on c.
func FromContext(c *cli.Context) (*Config, error) {
	cfg, err := Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg.ApplyFlags(c)
	return cfg, cfg.Validate()
}

// ApplyFlags overrides fields for flags that were explicitly set.
func (cfg *Config) ApplyFlags(c *cli.Context) {
	if c.IsSet("interface") {
		cfg.Interfaces = parseInterfaces(c.String("interface"))
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("grpc") {
		cfg.GRPCPort = c.Int("grpc")
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("oui-file") {
		cfg.OUIFile = c.String("oui-file")
	}
	if c.IsSet("lat") && c.IsSet("lng") {
		cfg.HasLocation = true
		cfg.Latitude = c.Float64("lat")
		cfg.Longitude = c.Float64("lng")
	}
	if c.IsSet("auto-attack") {
		cfg.AutoAttack = c.Bool("auto-attack")
	}
	if c.Bool("no-auto-assign") {
		cfg.AutoAssign = false
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
}
