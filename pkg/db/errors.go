// Package db provides SQLite persistence for camtower.
package db

import "errors"

var (
	ErrDatabaseError = errors.New("database error")

	ErrFailedToClean   = errors.New("failed to clean")
	ErrFailedToScan    = errors.New("failed to scan")
	ErrFailedToQuery   = errors.New("failed to query")
	ErrFailedToInsert  = errors.New("failed to insert")
	ErrFailedToUpdate  = errors.New("failed to update")
	ErrFailedToInit    = errors.New("failed to initialize schema")
	ErrFailedToMarshal = errors.New("failed to marshal")
	ErrFailedOpenDB    = errors.New("failed to open database")
)
