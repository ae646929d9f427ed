package persistence

import "btc-alerts/internal/models"

// StateRepository defines the interface for execution-state persistence.
// It abstracts the underlying storage mechanism (BadgerDB in production,
// an atomic JSON file in tests and small deployments) from the executor.
type StateRepository interface {
	// SaveState atomically saves the entire execution state.
	SaveState(state *models.ExecState) error

	// LoadState loads the execution state from storage.
	// If no state is found, it returns (nil, nil).
	LoadState() (*models.ExecState, error)

	// Close gracefully closes the underlying storage.
	Close() error
}
