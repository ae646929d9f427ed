package persistence

import (
	"encoding/json"
	"errors"

	"btc-alerts/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of the StateRepository.
// Writes go through a transaction, which gives the crash-safety the executor
// relies on for idempotent resumption.
type badgerRepository struct {
	db       *badger.DB
	stateKey []byte
}

// NewBadgerRepository opens (or creates) a BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{
		db:       db,
		stateKey: []byte("paper_state"),
	}, nil
}

// SaveState marshals the state to JSON and stores it under the single state
// key inside one transaction.
func (r *badgerRepository) SaveState(state *models.ExecState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.stateKey, data)
	})
}

// LoadState returns (nil, nil) when no state has ever been saved.
func (r *badgerRepository) LoadState() (*models.ExecState, error) {
	var state models.ExecState

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.stateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("state value is empty in database")
			}
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if state.OpenTrades == nil {
		state.OpenTrades = make(map[string]*models.Trade)
	}
	return &state, nil
}

// Close gracefully closes the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
