package db

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

const deviceColumns = `
	d.id, d.site_id, COALESCE(s.name, ''), d.type,
	COALESCE(d.brand, ''), COALESCE(d.model, ''), COALESCE(d.fw_version, ''),
	d.mgmt_ip, COALESCE(d.vlan, ''),
	d.http_port, d.https_port, d.rtsp_port, d.onvif_port,
	COALESCE(d.notes, ''), COALESCE(d.poe_switch_ip, ''), COALESCE(d.poe_port, ''),
	d.created_at`

func scanDevice(row interface{ Scan(...interface{}) error }) (*models.Device, error) {
	var d models.Device

	var siteID sql.NullInt64

	err := row.Scan(
		&d.ID, &siteID, &d.SiteName, &d.Type,
		&d.Brand, &d.Model, &d.FWVersion,
		&d.MgmtIP, &d.VLAN,
		&d.HTTPPort, &d.HTTPSPort, &d.RTSPPort, &d.ONVIFPort,
		&d.Notes, &d.PoESwitchIP, &d.PoEPort,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if siteID.Valid {
		d.SiteID = siteID.Int64
	}

	return &d, nil
}

// ListDevices returns the full inventory, one snapshot per scan cycle.
func (db *DB) ListDevices() ([]models.Device, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM devices d
		LEFT JOIN sites s ON d.site_id = s.id
		ORDER BY d.id`, deviceColumns)

	rows, err := db.Query(querySQL) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w devices: %w", ErrFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rows")
		}
	}(rows)

	var devices []models.Device

	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w device row: %w", ErrFailedToScan, err)
		}

		devices = append(devices, *d)
	}

	return devices, nil
}

// GetDevice returns a single device by id.
func (db *DB) GetDevice(deviceID int64) (*models.Device, error) {
	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM devices d
		LEFT JOIN sites s ON d.site_id = s.id
		WHERE d.id = ?`, deviceColumns)

	d, err := scanDevice(db.QueryRow(querySQL, deviceID))
	if err != nil {
		return nil, fmt.Errorf("%w device: %w", ErrFailedToQuery, err)
	}

	return d, nil
}
