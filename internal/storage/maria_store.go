package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
)

// MariaRunStore хранит интервалы чанков в MariaDB/MySQL.
// Одна строка таблицы chunk_runs на чанк, содержимое закодировано Codec.
type MariaRunStore struct {
	db    *sql.DB
	codec *Codec
	log   *logging.Logger

	mutex   sync.RWMutex
	isReady bool
}

// NewMariaRunStore подключается к базе и создает таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaRunStore(ctx context.Context, dsn string, codec *Codec, log *logging.Logger) (*MariaRunStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	s := &MariaRunStore{db: db, codec: codec, log: log, isReady: true}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	log.Info("Подключено к MariaDB")
	return s, nil
}

func (s *MariaRunStore) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS chunk_runs (
			face       TINYINT     NOT NULL,
			x          INT         NOT NULL,
			y          INT         NOT NULL,
			z          INT         NOT NULL,
			data       MEDIUMBLOB  NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP,
			PRIMARY KEY (face, x, y, z)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы chunk_runs: %w", err)
	}
	return nil
}

// SaveRuns записывает интервалы чанка (INSERT ... ON DUPLICATE KEY UPDATE)
func (s *MariaRunStore) SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}

	data, err := s.codec.Encode(runs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chunk_runs (face, x, y, z, data)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key.Face, key.Pos.X, key.Pos.Y, key.Pos.Z, data); err != nil {
		return fmt.Errorf("ошибка сохранения %s в MariaDB: %w", key, err)
	}

	metrics.StorageBytes.WithLabelValues("write").Add(float64(len(data)))
	return nil
}

// LoadRuns читает интервалы чанка
func (s *MariaRunStore) LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, false, ErrNotReady
	}

	query := `SELECT data FROM chunk_runs WHERE face = ? AND x = ? AND y = ? AND z = ?`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key.Face, key.Pos.X, key.Pos.Y, key.Pos.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения %s из MariaDB: %w", key, err)
	}

	metrics.StorageBytes.WithLabelValues("read").Add(float64(len(data)))
	runs, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("чанк %s: %w", key, err)
	}
	return runs, true, nil
}

// Close закрывает соединение с базой данных
func (s *MariaRunStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
