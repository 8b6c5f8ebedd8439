package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Alert is an archived notification. The engine never reads these back.
type Alert struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Kind       string    `gorm:"index;size:16"`
	MarketID   string    `gorm:"index"`
	Wallet     string    `gorm:"index"`
	Severity   string    `gorm:"size:8"`
	Headline   string
	ValueUSD   float64
	Payload    string
	DetectedAt time.Time `gorm:"index"`
}

// NewAlert builds an archive record from an event.
func NewAlert(ev Event, now time.Time) (Alert, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Alert{}, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}

	alert := Alert{
		ID:         uuid.NewString(),
		Kind:       string(ev.Kind()),
		MarketID:   ev.MarketKey(),
		Headline:   ev.Headline(),
		Payload:    string(payload),
		DetectedAt: now,
	}

	switch e := ev.(type) {
	case Suspect:
		alert.Wallet = e.Stats.Address
		alert.Severity = e.Severity.String()
		alert.ValueUSD = e.Trade.ValueUSD()
	case ClusterAlert:
		alert.ValueUSD = e.TotalVolume
		alert.DetectedAt = e.DetectedAt
	case SpikeAlert:
		alert.ValueUSD = e.CurrentVolume
		alert.DetectedAt = e.DetectedAt
	}

	return alert, nil
}

// AlertLog is a sqlite-backed archive of delivered alerts.
type AlertLog struct {
	db *gorm.DB
}

// OpenAlertLog opens (or creates) the archive at path. Use ":memory:" for tests.
func OpenAlertLog(path string) (*AlertLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open alert log %s: %w", path, err)
	}

	// sqlite allows one writer; a single connection also keeps ":memory:" databases shared
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("alert log handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Alert{}); err != nil {
		return nil, fmt.Errorf("migrate alert log: %w", err)
	}

	return &AlertLog{db: db}, nil
}

// Record inserts one alert.
func (l *AlertLog) Record(ctx context.Context, alert Alert) error {
	if err := l.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// Recent returns the newest alerts, most recent first.
func (l *AlertLog) Recent(ctx context.Context, limit int) ([]Alert, error) {
	var alerts []Alert
	err := l.db.WithContext(ctx).
		Order("detected_at DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	return alerts, nil
}

// Close releases the underlying connection.
func (l *AlertLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
