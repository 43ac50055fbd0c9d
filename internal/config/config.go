package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const envPrefix = "AIRWARDEN_"

// Config holds all application configuration.
type Config struct {
	Interfaces []string
	Addr       string
	GRPCPort   int
	Debug      bool

	DBPath       string
	OUIDBPath    string
	OUIFile      string
	ScanDir      string
	HandshakeDir string

	HasLocation bool
	Latitude    float64
	Longitude   float64

	AutoAssign bool
	AutoAttack bool

	Scan     ScanConfig
	Attack   AttackConfig
	Sync     SyncConfig
	Timeouts Timeouts
}

type ScanConfig struct {
	PollInterval        time.Duration
	MinScanTime         time.Duration
	SaturationWindow    time.Duration
	FingerprintWorkers  int
	ExtendedCSVInterval time.Duration
}

type AttackConfig struct {
	BatchSize       int
	JobPause        time.Duration
	RoundPause      time.Duration
	Cooldown        time.Duration
	CandidateWindow time.Duration
	MaxRetries      int
	DeauthCount     int
}

type SyncConfig struct {
	QueueSize int
}

// Timeouts bound each external tool invocation.
type Timeouts struct {
	MonitorCommand   time.Duration
	CaptureStartup   time.Duration
	Deauth           time.Duration
	Handshake        time.Duration
	AutoHandshake    time.Duration
	Verify           time.Duration
	WPS              time.Duration
	WPSBruteforce    time.Duration
	ProcessGrace     time.Duration
	HandshakeStartup time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := getDefaultDataDir()
	return &Config{
		Addr:         "127.0.0.1:8080",
		GRPCPort:     9000,
		DBPath:       filepath.Join(dataDir, "airwarden.db"),
		OUIDBPath:    filepath.Join(dataDir, "oui.db"),
		ScanDir:      filepath.Join(dataDir, "scans"),
		HandshakeDir: filepath.Join(dataDir, "handshakes"),
		AutoAssign:   true,
		Scan: ScanConfig{
			PollInterval:        time.Second,
			MinScanTime:         60 * time.Second,
			SaturationWindow:    30 * time.Second,
			FingerprintWorkers:  4,
			ExtendedCSVInterval: 10 * time.Second,
		},
		Attack: AttackConfig{
			BatchSize:       5,
			JobPause:        5 * time.Second,
			RoundPause:      30 * time.Second,
			Cooldown:        time.Hour,
			CandidateWindow: 24 * time.Hour,
			MaxRetries:      3,
			DeauthCount:     10,
		},
		Sync: SyncConfig{QueueSize: 1000},
		Timeouts: Timeouts{
			MonitorCommand:   10 * time.Second,
			CaptureStartup:   15 * time.Second,
			Deauth:           15 * time.Second,
			Handshake:        120 * time.Second,
			AutoHandshake:    300 * time.Second,
			Verify:           10 * time.Second,
			WPS:              300 * time.Second,
			WPSBruteforce:    600 * time.Second,
			ProcessGrace:     5 * time.Second,
			HandshakeStartup: 3 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional INI file, a .env
// file in the working directory and AIRWARDEN_* environment variables, each
// overriding the previous. CLI flags are applied afterwards by ApplyFlags.
func Load(iniPath string) (*Config, error) {
	cfg := Default()

	if iniPath != "" {
		if err := cfg.LoadFromFile(iniPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Skipping .env: %v", err)
	}
	cfg.LoadFromEnv()

	return cfg, nil
}

// LoadFromFile applies an INI file. Missing keys keep their current value.
func (c *Config) LoadFromFile(path string) error {
	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return err
	}

	root := file.Section("")
	if v := root.Key("interfaces").String(); v != "" {
		c.Interfaces = parseInterfaces(v)
	}
	c.Debug = root.Key("debug").MustBool(c.Debug)
	c.AutoAssign = root.Key("auto_assign").MustBool(c.AutoAssign)
	c.AutoAttack = root.Key("auto_attack").MustBool(c.AutoAttack)

	server := file.Section("server")
	c.Addr = server.Key("addr").MustString(c.Addr)
	c.GRPCPort = server.Key("grpc_port").MustInt(c.GRPCPort)

	paths := file.Section("paths")
	c.DBPath = paths.Key("db").MustString(c.DBPath)
	c.OUIDBPath = paths.Key("oui_db").MustString(c.OUIDBPath)
	c.OUIFile = paths.Key("oui_file").MustString(c.OUIFile)
	c.ScanDir = paths.Key("scans").MustString(c.ScanDir)
	c.HandshakeDir = paths.Key("handshakes").MustString(c.HandshakeDir)

	loc := file.Section("location")
	if loc.HasKey("latitude") && loc.HasKey("longitude") {
		c.HasLocation = true
		c.Latitude = loc.Key("latitude").MustFloat64(c.Latitude)
		c.Longitude = loc.Key("longitude").MustFloat64(c.Longitude)
	}

	scan := file.Section("scan")
	c.Scan.PollInterval = scan.Key("poll_interval").MustDuration(c.Scan.PollInterval)
	c.Scan.MinScanTime = scan.Key("min_scan_time").MustDuration(c.Scan.MinScanTime)
	c.Scan.SaturationWindow = scan.Key("saturation_window").MustDuration(c.Scan.SaturationWindow)
	c.Scan.FingerprintWorkers = scan.Key("fingerprint_workers").MustInt(c.Scan.FingerprintWorkers)
	c.Scan.ExtendedCSVInterval = scan.Key("extended_csv_interval").MustDuration(c.Scan.ExtendedCSVInterval)
	c.Sync.QueueSize = scan.Key("sync_queue_size").MustInt(c.Sync.QueueSize)

	attack := file.Section("attack")
	c.Attack.BatchSize = attack.Key("batch_size").MustInt(c.Attack.BatchSize)
	c.Attack.JobPause = attack.Key("job_pause").MustDuration(c.Attack.JobPause)
	c.Attack.RoundPause = attack.Key("round_pause").MustDuration(c.Attack.RoundPause)
	c.Attack.Cooldown = attack.Key("cooldown").MustDuration(c.Attack.Cooldown)
	c.Attack.CandidateWindow = attack.Key("candidate_window").MustDuration(c.Attack.CandidateWindow)
	c.Attack.MaxRetries = attack.Key("max_retries").MustInt(c.Attack.MaxRetries)
	c.Attack.DeauthCount = attack.Key("deauth_count").MustInt(c.Attack.DeauthCount)

	t := file.Section("timeouts")
	c.Timeouts.MonitorCommand = t.Key("monitor_command").MustDuration(c.Timeouts.MonitorCommand)
	c.Timeouts.CaptureStartup = t.Key("capture_startup").MustDuration(c.Timeouts.CaptureStartup)
	c.Timeouts.Deauth = t.Key("deauth").MustDuration(c.Timeouts.Deauth)
	c.Timeouts.Handshake = t.Key("handshake").MustDuration(c.Timeouts.Handshake)
	c.Timeouts.AutoHandshake = t.Key("auto_handshake").MustDuration(c.Timeouts.AutoHandshake)
	c.Timeouts.Verify = t.Key("verify").MustDuration(c.Timeouts.Verify)
	c.Timeouts.WPS = t.Key("wps").MustDuration(c.Timeouts.WPS)
	c.Timeouts.WPSBruteforce = t.Key("wps_bruteforce").MustDuration(c.Timeouts.WPSBruteforce)
	c.Timeouts.ProcessGrace = t.Key("process_grace").MustDuration(c.Timeouts.ProcessGrace)

	return nil
}

// LoadFromEnv applies AIRWARDEN_* variables.
func (c *Config) LoadFromEnv() {
	if v := getEnv("INTERFACE", ""); v != "" {
		c.Interfaces = parseInterfaces(v)
	}
	c.Addr = getEnv("ADDR", c.Addr)
	c.GRPCPort = getEnvInt("GRPC", c.GRPCPort)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.DBPath = getEnv("DB", c.DBPath)
	c.OUIDBPath = getEnv("OUI_DB", c.OUIDBPath)
	c.OUIFile = getEnv("OUI_FILE", c.OUIFile)
	c.ScanDir = getEnv("SCAN_DIR", c.ScanDir)
	c.HandshakeDir = getEnv("HANDSHAKE_DIR", c.HandshakeDir)
	c.AutoAssign = getEnvBool("AUTO_ASSIGN", c.AutoAssign)
	c.AutoAttack = getEnvBool("AUTO_ATTACK", c.AutoAttack)
	c.Scan.FingerprintWorkers = getEnvInt("FINGERPRINT_WORKERS", c.Scan.FingerprintWorkers)
	c.Attack.Cooldown = getEnvDuration("COOLDOWN", c.Attack.Cooldown)

	_, hasLat := os.LookupEnv(envPrefix + "LAT")
	_, hasLng := os.LookupEnv(envPrefix + "LNG")
	if hasLat && hasLng {
		c.HasLocation = true
		c.Latitude = getEnvFloat("LAT", c.Latitude)
		c.Longitude = getEnvFloat("LNG", c.Longitude)
	}
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.FingerprintWorkers < 1 {
		errs = append(errs, errors.New("fingerprint workers must be at least 1"))
	}
	if c.Attack.BatchSize < 1 {
		errs = append(errs, errors.New("attack batch size must be at least 1"))
	}
	if c.Sync.QueueSize < 1 {
		errs = append(errs, errors.New("sync queue size must be at least 1"))
	}
	if c.Attack.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.HasLocation && (c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180) {
		errs = append(errs, errors.New("static location out of range"))
	}
	return errors.Join(errs...)
}

// EnsureDirs creates the output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.ScanDir, c.HandshakeDir, filepath.Dir(c.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func parseInterfaces(s string) []string {
	var ifaces []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ifaces = append(ifaces, trimmed)
		}
	}
	return ifaces
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getDefaultDataDir returns ~/.airwarden, falling back to the working directory.
func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "."
	}
	return filepath.Join(home, ".airwarden")
}
