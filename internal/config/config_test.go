package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Scan.FingerprintWorkers)
	assert.Equal(t, 60*time.Second, cfg.Scan.MinScanTime)
	assert.Equal(t, 30*time.Second, cfg.Scan.SaturationWindow)
	assert.Equal(t, time.Hour, cfg.Attack.Cooldown)
	assert.Equal(t, 5, cfg.Attack.BatchSize)
	assert.Equal(t, 300*time.Second, cfg.Timeouts.WPS)
	assert.Equal(t, 600*time.Second, cfg.Timeouts.WPSBruteforce)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "airwarden.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte(`
interfaces = wlan1, wlan2
auto_attack = true

[scan]
min_scan_time = 90s
fingerprint_workers = 2

[attack]
cooldown = 30m

[Location]
latitude = 40.4
longitude = -3.7
`), 0o644))

	t.Chdir(dir)
	t.Setenv("AIRWARDEN_FINGERPRINT_WORKERS", "8")

	cfg, err := Load(iniPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"wlan1", "wlan2"}, cfg.Interfaces)
	assert.True(t, cfg.AutoAttack)
	assert.Equal(t, 90*time.Second, cfg.Scan.MinScanTime)
	assert.Equal(t, 8, cfg.Scan.FingerprintWorkers, "env overrides ini")
	assert.Equal(t, 30*time.Minute, cfg.Attack.Cooldown)
	assert.True(t, cfg.HasLocation)
	assert.Equal(t, 40.4, cfg.Latitude)
}

func TestLoad_MissingINI(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	app := &cli.App{
		Name:  "airwarden",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg.ApplyFlags(c)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"airwarden", "-i", "wlan9", "--no-auto-assign", "--lat", "1.5", "--lng", "2.5"}))

	assert.Equal(t, []string{"wlan9"}, cfg.Interfaces)
	assert.False(t, cfg.AutoAssign)
	assert.True(t, cfg.HasLocation)
	assert.Equal(t, 1.5, cfg.Latitude)
	assert.Equal(t, 2.5, cfg.Longitude)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
}

func TestApplyFlags_UnsetKeepsLoadedValues(t *testing.T) {
	cfg := Default()
	cfg.Interfaces = []string{"wlan3"}
	cfg.AutoAttack = true
	app := &cli.App{
		Name:  "airwarden",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg.ApplyFlags(c)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"airwarden", "--lat", "1.5"}))

	assert.Equal(t, []string{"wlan3"}, cfg.Interfaces)
	assert.True(t, cfg.AutoAttack)
	// a latitude alone is not a location
	assert.False(t, cfg.HasLocation)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scan.FingerprintWorkers = 0
	cfg.HasLocation = true
	cfg.Latitude = 200
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint workers")
	assert.Contains(t, err.Error(), "location")
}
