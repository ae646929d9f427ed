package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"btc-alerts/internal/models"
)

// AlertStateStore persists the signal loop's per-cycle state (regime
// heartbeat bookkeeping and setup cooldowns) as an atomic JSON file.
type AlertStateStore struct {
	path string
}

// NewAlertStateStore creates a store at path.
func NewAlertStateStore(path string) (*AlertStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &AlertStateStore{path: path}, nil
}

// Save writes the state via temp file + rename.
func (s *AlertStateStore) Save(state *models.AlertState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.path, data)
}

// Load returns (nil, nil) when no state file exists yet and a fresh state on
// a corrupt file: losing cooldown history is preferable to refusing to start.
func (s *AlertStateStore) Load() (*models.AlertState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state models.AlertState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, nil
	}
	if state.LastSetupTs == nil {
		state.LastSetupTs = make(map[string]int64)
	}
	return &state, nil
}
