package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

// SaveCheck appends one health snapshot for a device.
func (db *DB) SaveCheck(check *models.CheckResult) error {
	tcpOpen, err := json.Marshal(check.TCPOpen)
	if err != nil {
		return fmt.Errorf("%w tcp_open: %w", ErrFailedToMarshal, err)
	}

	const insertSQL = `
		INSERT INTO checks
			(device_id, ts, icmp_loss, tcp_open, rtsp_ok, onvif_ok,
			 poe_link, poe_power_w, score, state, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(insertSQL,
		check.DeviceID,
		check.Timestamp,
		check.ICMPLoss,
		string(tcpOpen),
		check.RTSPOk,
		check.ONVIFOk,
		check.PoELink,
		check.PoEPowerW,
		check.Score,
		check.State,
		check.Reason)
	if err != nil {
		return fmt.Errorf("%w check: %w", ErrFailedToInsert, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		check.ID = id
	}

	return nil
}

func scanCheck(rows *sql.Rows) (*models.CheckResult, error) {
	var c models.CheckResult

	var tcpOpen string

	err := rows.Scan(
		&c.ID, &c.DeviceID, &c.Timestamp, &c.ICMPLoss, &tcpOpen,
		&c.RTSPOk, &c.ONVIFOk, &c.PoELink, &c.PoEPowerW,
		&c.Score, &c.State, &c.Reason,
	)
	if err != nil {
		return nil, err
	}

	if tcpOpen != "" {
		if err := json.Unmarshal([]byte(tcpOpen), &c.TCPOpen); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

const checkColumns = `
	id, device_id, ts, icmp_loss, tcp_open, rtsp_ok, onvif_ok,
	poe_link, poe_power_w, score, state, COALESCE(reason, '')`

// GetDeviceChecks returns the most recent checks for one device.
func (db *DB) GetDeviceChecks(deviceID int64, limit int) ([]models.CheckResult, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM checks
		WHERE device_id = ?
		ORDER BY ts DESC
		LIMIT ?`, checkColumns)

	return db.queryChecks(querySQL, deviceID, limit)
}

// LatestChecks returns the newest check per device.
func (db *DB) LatestChecks() ([]models.CheckResult, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM checks
		WHERE id IN (SELECT MAX(id) FROM checks GROUP BY device_id)
		ORDER BY device_id`, checkColumns)

	return db.queryChecks(querySQL)
}

func (db *DB) queryChecks(querySQL string, args ...interface{}) ([]models.CheckResult, error) {
	rows, err := db.Query(querySQL, args...) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w checks: %w", ErrFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rows")
		}
	}(rows)

	var checks []models.CheckResult

	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("%w check row: %w", ErrFailedToScan, err)
		}

		checks = append(checks, *c)
	}

	return checks, nil
}

// CleanOldChecks removes check history older than the retention period.
// Alert rows are kept; resolution is a flag flip, not a delete.
func (db *DB) CleanOldChecks(retentionPeriod time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retentionPeriod)

	result, err := db.Exec("DELETE FROM checks WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w checks: %w", ErrFailedToClean, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w checks: %w", ErrFailedToClean, err)
	}

	return n, nil
}
