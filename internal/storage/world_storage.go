package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// ErrIndexClosed индекс уже закрыт
var ErrIndexClosed = errors.New("индекс миров закрыт")

const worldKeyPrefix = "world:"

// WorldMeta метаданные мира
type WorldMeta struct {
	ID          string    `json:"id"`
	Seed        int64     `json:"seed"`
	CreatedAt   time.Time `json:"created_at"`
	LastSaved   time.Time `json:"last_saved"`
	SavedChunks int       `json:"saved_chunks"`
}

// WorldIndex хранит метаданные миров в BadgerDB
type WorldIndex struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewWorldIndex открывает индекс в <dataPath>/index
func NewWorldIndex(dataPath string) (*WorldIndex, error) {
	dbPath := filepath.Join(dataPath, "index")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldIndex{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// NewMemoryWorldIndex индекс в памяти (временные миры и тесты)
func NewMemoryWorldIndex() (*WorldIndex, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB в памяти: %w", err)
	}
	return &WorldIndex{db: db, isReady: true}, nil
}

// Close закрывает индекс
func (wi *WorldIndex) Close() error {
	wi.mutex.Lock()
	defer wi.mutex.Unlock()

	if !wi.isReady {
		return nil
	}

	wi.isReady = false
	return wi.db.Close()
}

// Put сохраняет метаданные мира
func (wi *WorldIndex) Put(meta *WorldMeta) error {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	if !wi.isReady {
		return ErrIndexClosed
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных мира: %w", err)
	}

	key := worldKeyPrefix + meta.ID
	err = wi.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения мира %s: %w", meta.ID, err)
	}
	return nil
}

// Get возвращает метаданные мира. ok ложно, если мир не записан.
func (wi *WorldIndex) Get(id string) (*WorldMeta, bool, error) {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	if !wi.isReady {
		return nil, false, ErrIndexClosed
	}

	var data []byte
	err := wi.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(worldKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения мира %s: %w", id, err)
	}

	var meta WorldMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false, fmt.Errorf("ошибка десериализации мира %s: %w", id, err)
	}
	return &meta, true, nil
}

// GetOrCreate возвращает метаданные или записывает новые с данным сидом
func (wi *WorldIndex) GetOrCreate(id string, seed int64) (*WorldMeta, error) {
	meta, ok, err := wi.Get(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return meta, nil
	}
	meta = &WorldMeta{ID: id, Seed: seed, CreatedAt: time.Now()}
	if err := wi.Put(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Touch отмечает сохранение мира
func (wi *WorldIndex) Touch(id string, savedChunks int) error {
	meta, ok, err := wi.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		meta = &WorldMeta{ID: id, CreatedAt: time.Now()}
	}
	meta.LastSaved = time.Now()
	meta.SavedChunks = savedChunks
	return wi.Put(meta)
}

// List все миры, отсортированные по идентификатору
func (wi *WorldIndex) List() ([]*WorldMeta, error) {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	if !wi.isReady {
		return nil, ErrIndexClosed
	}

	var worlds []*WorldMeta
	err := wi.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(worldKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta WorldMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return err
				}
				worlds = append(worlds, &meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}

	sort.Slice(worlds, func(i, j int) bool { return worlds[i].ID < worlds[j].ID })
	return worlds, nil
}
