package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const createTablesSQL = `
	-- Sites group devices by physical location
	CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		address TEXT,
		vlan_range TEXT,
		contact TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Device inventory
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id INTEGER,
		type TEXT NOT NULL CHECK(type IN ('ipcam', 'nvr', 'switch')),
		brand TEXT,
		model TEXT,
		fw_version TEXT,
		mgmt_ip TEXT NOT NULL UNIQUE,
		vlan TEXT,
		http_port INTEGER DEFAULT 80,
		https_port INTEGER DEFAULT 443,
		rtsp_port INTEGER DEFAULT 554,
		onvif_port INTEGER DEFAULT 8000,
		notes TEXT,
		poe_switch_ip TEXT,
		poe_port TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (site_id) REFERENCES sites (id)
	);

	-- Health check history, append-only
	CREATE TABLE IF NOT EXISTS checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		ts DATETIME DEFAULT CURRENT_TIMESTAMP,
		icmp_loss REAL DEFAULT 0,
		tcp_open TEXT, -- JSON, port role -> bool
		rtsp_ok BOOLEAN DEFAULT 0,
		onvif_ok BOOLEAN DEFAULT 0,
		poe_link BOOLEAN DEFAULT 0,
		poe_power_w REAL DEFAULT 0,
		score INTEGER DEFAULT 100,
		state TEXT DEFAULT 'green' CHECK(state IN ('green', 'yellow', 'red')),
		reason TEXT,
		FOREIGN KEY (device_id) REFERENCES devices (id)
	);

	-- Alert lifecycle; resolution flips the flag, rows are never deleted
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		level TEXT CHECK(level IN ('yellow', 'red')),
		message TEXT,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		count INTEGER DEFAULT 1,
		resolved BOOLEAN DEFAULT 0,
		FOREIGN KEY (device_id) REFERENCES devices (id)
	);

	CREATE INDEX IF NOT EXISTS idx_checks_device_time
		ON checks(device_id, ts);
	CREATE INDEX IF NOT EXISTS idx_alerts_device
		ON alerts(device_id);

	-- Backs the "at most one unresolved alert per (device, level)"
	-- invariant at the storage layer.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_unresolved
		ON alerts(device_id, level) WHERE resolved = 0;

	PRAGMA foreign_keys=ON;
	`

// DB wraps the database connection and implements Service.
type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// WAL mode for concurrent readers during scan cycles
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}
