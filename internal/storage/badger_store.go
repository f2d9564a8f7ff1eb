package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
)

// BadgerRunStore хранит интервалы чанков в BadgerDB
type BadgerRunStore struct {
	db      *badger.DB
	dbPath  string
	codec   *Codec
	log     *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerRunStore открывает базу в каталоге dataPath/world
func NewBadgerRunStore(dataPath string, codec *Codec, log *logging.Logger) (*BadgerRunStore, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	log.Info("BadgerDB открыта в %s", dbPath)

	return &BadgerRunStore{
		db:      db,
		dbPath:  dbPath,
		codec:   codec,
		log:     log,
		isReady: true,
	}, nil
}

// SaveRuns записывает интервалы чанка
func (s *BadgerRunStore) SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.codec.Encode(runs)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	metrics.StorageBytes.WithLabelValues("write").Add(float64(len(data)))
	return nil
}

// LoadRuns читает интервалы чанка
func (s *BadgerRunStore) LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, false, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	// Чанк ещё не сохранялся
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	metrics.StorageBytes.WithLabelValues("read").Add(float64(len(data)))
	runs, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("чанк %s: %w", key, err)
	}
	return runs, true, nil
}

// Close закрывает базу
func (s *BadgerRunStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.log.Info("BadgerDB %s закрыта", s.dbPath)
	return s.db.Close()
}
