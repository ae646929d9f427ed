package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"btc-alerts/internal/models"
)

// fileRepository persists the execution state as a single JSON document,
// written to a temporary file and renamed into place so a crash mid-write
// cannot corrupt the previous valid snapshot.
type fileRepository struct {
	path string
}

// NewFileRepository creates a file-backed StateRepository at path.
func NewFileRepository(path string) (StateRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileRepository{path: path}, nil
}

func (r *fileRepository) SaveState(state *models.ExecState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(r.path, data)
}

func (r *fileRepository) LoadState() (*models.ExecState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state models.ExecState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.OpenTrades == nil {
		state.OpenTrades = make(map[string]*models.Trade)
	}
	return &state, nil
}

func (r *fileRepository) Close() error {
	return nil
}

// atomicWrite writes data to path via a sibling temp file and rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
