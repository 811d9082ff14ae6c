package controllers

import "time"

// Default configuration values
const (
	DefaultContextTimeout = 30 * time.Second
	JobStatusTimeout      = 5 * time.Second
	// SyncImportTimeout bounds inline imports, which pace themselves with
	// inter-batch delays and can legitimately run for minutes.
	SyncImportTimeout = 10 * time.Minute
)
