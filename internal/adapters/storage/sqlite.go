package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db  *gorm.DB
	ids ports.IDGenerator
	now func() time.Time
}

// NetworkModel is the GORM model for access points.
type NetworkModel struct {
	BSSID            string `gorm:"column:bssid;primaryKey"`
	Serial           string `gorm:"uniqueIndex"`
	SSID             string `gorm:"column:ssid"`
	Channel          int
	Speed            int
	Encryption       string
	Cipher           string
	Authentication   string
	Power            int
	Beacons          int
	IVs              int    `gorm:"column:ivs"`
	LANIP            string `gorm:"column:lan_ip"`
	IDLength         int
	WPSEnabled       bool
	WPSLocked        bool
	WPSVersion       string
	AttackScore      float64 `gorm:"index"`
	RiskLevel        string
	Vendor           string
	DeviceType       string
	DeviceConfidence int
	ClientCount      int
	FirstSeen        time.Time
	LastSeen         time.Time `gorm:"index"`
}

// ClientModel is the GORM model for stations.
type ClientModel struct {
	MAC              string `gorm:"primaryKey"`
	Serial           string `gorm:"uniqueIndex"`
	BSSID            string `gorm:"column:bssid;index"`
	Power            int
	Packets          int
	ProbedSSIDs      string `gorm:"column:probed_ssids"` // JSON encoded []string
	Vendor           string
	DeviceType       string
	DeviceConfidence int
	FirstSeen        time.Time
	LastSeen         time.Time
}

// ObservationModel holds one row per entity per session.
type ObservationModel struct {
	ID        uint   `gorm:"primaryKey"`
	Serial    string `gorm:"uniqueIndex"`
	SessionID uint   `gorm:"uniqueIndex:idx_observation_session_mac"`
	MAC       string `gorm:"uniqueIndex:idx_observation_session_mac"`
	Kind      string
	Power     int
	Latitude  *float64
	Longitude *float64
	Sightings int
	FirstSeen time.Time
	LastSeen  time.Time
}

// AttackQueueModel is a durable queue row. ID order is insertion order.
type AttackQueueModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Serial      string `gorm:"uniqueIndex"`
	BSSID       string `gorm:"column:bssid;index"`
	SSID        string `gorm:"column:ssid"`
	Channel     int
	Type        string
	Priority    int    `gorm:"index"`
	Status      string `gorm:"index"`
	Source      string
	RetryCount  int
	MaxRetries  int
	Result      string
	Success     bool
	AddedAt     time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// HandshakeModel keeps the best capture per network.
type HandshakeModel struct {
	ID                uint   `gorm:"primaryKey"`
	Serial            string `gorm:"uniqueIndex"`
	BSSID             string `gorm:"column:bssid;uniqueIndex"`
	SSID              string `gorm:"column:ssid"`
	FilePath          string
	Complete          bool
	CompletenessScore int
	MessagesSeen      string // JSON encoded []int
	CapturedAt        time.Time
	Cracked           bool
	Secret            string
	WPSPin            string `gorm:"column:wps_pin"`
}

// ScanSessionModel is one scanning run.
type ScanSessionModel struct {
	ID                 uint   `gorm:"primaryKey"`
	Serial             string `gorm:"uniqueIndex"`
	Status             string `gorm:"index"`
	Interface          string
	StartTime          time.Time
	EndTime            *time.Time
	StartLatitude      *float64
	StartLongitude     *float64
	EndLatitude        *float64
	EndLongitude       *float64
	NetworksFound      int
	ClientsFound       int
	HandshakesCaptured int
}

func models() []any {
	return []any{
		&NetworkModel{}, &ClientModel{}, &ObservationModel{},
		&AttackQueueModel{}, &HandshakeModel{}, &ScanSessionModel{},
	}
}

// NewSQLiteAdapter opens the database, installs query tracing and migrates
// the schema.
func NewSQLiteAdapter(path string, ids ports.IDGenerator) (*SQLiteAdapter, error) {
	// SQLite has a single writer; the DSN and pool settings serialise access
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, &domain.PersistenceError{Op: "tracing", Err: err}
	}
	if err := db.AutoMigrate(models()...); err != nil {
		return nil, &domain.PersistenceError{Op: "migrate", Err: err}
	}

	// Composite index for the dispatcher's ordering
	db.Exec("CREATE INDEX IF NOT EXISTS idx_queue_dispatch ON attack_queue_models(status, priority DESC, id ASC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_handshakes_complete ON handshake_models(complete, cracked)")

	return newAdapter(db, ids), nil
}

func newAdapter(db *gorm.DB, ids ports.IDGenerator) *SQLiteAdapter {
	return &SQLiteAdapter{db: db, ids: ids, now: time.Now}
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrap converts GORM errors into the domain taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// Ensure interface compliance
var _ ports.Storage = (*SQLiteAdapter)(nil)
