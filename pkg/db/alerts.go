package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

const alertColumns = `
	id, device_id, level, COALESCE(message, ''),
	first_seen, last_seen, count, resolved`

func scanAlert(row interface{ Scan(...interface{}) error }) (*models.Alert, error) {
	var a models.Alert

	err := row.Scan(
		&a.ID, &a.DeviceID, &a.Level, &a.Message,
		&a.FirstSeen, &a.LastSeen, &a.Count, &a.Resolved,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// FindUnresolved returns the unresolved alert for a (device, level)
// pair, or (nil, nil) when none exists. The partial unique index
// guarantees at most one row can match.
func (db *DB) FindUnresolved(deviceID int64, level models.HealthState) (*models.Alert, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE device_id = ? AND level = ? AND resolved = 0`, alertColumns)

	a, err := scanAlert(db.QueryRow(querySQL, deviceID, level))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w unresolved alert: %w", ErrFailedToQuery, err)
	}

	return a, nil
}

// CreateAlert inserts a new alert row and returns its id.
func (db *DB) CreateAlert(alert *models.Alert) (int64, error) {
	const insertSQL = `
		INSERT INTO alerts (device_id, level, message, first_seen, last_seen, count, resolved)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`

	result, err := db.Exec(insertSQL,
		alert.DeviceID, alert.Level, alert.Message,
		alert.FirstSeen, alert.LastSeen, alert.Count)
	if err != nil {
		return 0, fmt.Errorf("%w alert: %w", ErrFailedToInsert, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w alert id: %w", ErrFailedToInsert, err)
	}

	alert.ID = id

	return id, nil
}

// TouchAlert increments the repeat count and refreshes last_seen.
func (db *DB) TouchAlert(alertID int64, now time.Time) error {
	const updateSQL = `
		UPDATE alerts SET last_seen = ?, count = count + 1 WHERE id = ?
	`

	if _, err := db.Exec(updateSQL, now, alertID); err != nil {
		return fmt.Errorf("%w alert: %w", ErrFailedToUpdate, err)
	}

	return nil
}

// ResolveAll marks every unresolved alert for a device as resolved and
// returns the number of rows flipped. Resolving when none exist is a
// no-op.
func (db *DB) ResolveAll(deviceID int64) (int64, error) {
	result, err := db.Exec(
		"UPDATE alerts SET resolved = 1 WHERE device_id = ? AND resolved = 0",
		deviceID)
	if err != nil {
		return 0, fmt.Errorf("%w alerts: %w", ErrFailedToUpdate, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w alerts: %w", ErrFailedToUpdate, err)
	}

	return n, nil
}

// ActiveAlerts returns all unresolved alerts, most severe first.
func (db *DB) ActiveAlerts() ([]models.Alert, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE resolved = 0
		ORDER BY CASE level WHEN 'red' THEN 0 ELSE 1 END, first_seen DESC`, alertColumns)

	return db.queryAlerts(querySQL)
}

// RecentAlerts returns alerts first seen after the given time,
// resolved or not.
func (db *DB) RecentAlerts(since time.Time) ([]models.Alert, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE first_seen > ?
		ORDER BY first_seen DESC`, alertColumns)

	return db.queryAlerts(querySQL, since)
}

func (db *DB) queryAlerts(querySQL string, args ...interface{}) ([]models.Alert, error) {
	rows, err := db.Query(querySQL, args...) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w alerts: %w", ErrFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rows")
		}
	}(rows)

	var alerts []models.Alert

	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%w alert row: %w", ErrFailedToScan, err)
		}

		alerts = append(alerts, *a)
	}

	return alerts, nil
}
