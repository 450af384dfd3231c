package db

import (
	"time"

	"github.com/camtower/camtower/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/camtower/camtower/pkg/db DeviceStore,CheckStore,AlertStore,Service

// DeviceStore provides read access to the device inventory. The
// probing core treats the inventory as an external collaborator and
// never writes through this interface.
type DeviceStore interface {
	ListDevices() ([]models.Device, error)
	GetDevice(deviceID int64) (*models.Device, error)
}

// CheckStore persists health check snapshots. Rows are append-only.
type CheckStore interface {
	SaveCheck(check *models.CheckResult) error
	GetDeviceChecks(deviceID int64, limit int) ([]models.CheckResult, error)
	LatestChecks() ([]models.CheckResult, error)
}

// AlertStore owns alert rows. FindUnresolved returns (nil, nil) when
// no unresolved alert exists for the pair.
type AlertStore interface {
	FindUnresolved(deviceID int64, level models.HealthState) (*models.Alert, error)
	CreateAlert(alert *models.Alert) (int64, error)
	TouchAlert(alertID int64, now time.Time) error
	ResolveAll(deviceID int64) (int64, error)
	ActiveAlerts() ([]models.Alert, error)
	RecentAlerts(since time.Time) ([]models.Alert, error)
}

// Service represents all database operations.
type Service interface {
	DeviceStore
	CheckStore
	AlertStore

	Close() error
	CleanOldChecks(retentionPeriod time.Duration) (int64, error)
}
