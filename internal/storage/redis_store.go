package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr         string // Адрес Redis сервера
	Password     string // Пароль (пустой если не требуется)
	DB           int    // Номер базы данных
	KeyPrefix    string // Префикс для ключей
	BatchSize    int    // Размер батча для записи
	BatchFlushMs int    // Интервал сброса батча в миллисекундах
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "voxel:",
		BatchSize:    64,
		BatchFlushMs: 500,
	}
}

// RedisRunStore хранит интервалы в Redis. Записи копятся в батче
// и сбрасываются пайплайном по размеру или по таймеру.
type RedisRunStore struct {
	client    *redis.Client
	codec     *Codec
	log       *logging.Logger
	keyPrefix string
	batchSize int

	batchMu     sync.Mutex
	batchBuffer map[string][]byte
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewRedisRunStore подключается к Redis и запускает фоновый сброс батчей
func NewRedisRunStore(ctx context.Context, config *RedisConfig, codec *Codec, log *logging.Logger) (*RedisRunStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.BatchFlushMs <= 0 {
		config.BatchFlushMs = 500
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", config.Addr, err)
	}

	s := &RedisRunStore{
		client:      client,
		codec:       codec,
		log:         log,
		keyPrefix:   config.KeyPrefix,
		batchSize:   config.BatchSize,
		batchBuffer: make(map[string][]byte),
		batchTicker: time.NewTicker(time.Duration(config.BatchFlushMs) * time.Millisecond),
		shutdown:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.batchFlusher()

	log.Info("Подключено к Redis %s", config.Addr)
	return s, nil
}

func (s *RedisRunStore) redisKey(key Key) string {
	return s.keyPrefix + key.String()
}

// SaveRuns добавляет запись в батч. При заполнении батч сбрасывается сразу.
func (s *RedisRunStore) SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error {
	data, err := s.codec.Encode(runs)
	if err != nil {
		return err
	}

	s.batchMu.Lock()
	if s.batchBuffer == nil {
		s.batchMu.Unlock()
		return ErrNotReady
	}
	s.batchBuffer[s.redisKey(key)] = data

	if len(s.batchBuffer) >= s.batchSize {
		batch := s.batchBuffer
		s.batchBuffer = make(map[string][]byte)
		s.batchMu.Unlock()
		return s.flushBatch(ctx, batch)
	}
	s.batchMu.Unlock()
	return nil
}

// LoadRuns читает запись: сначала из несброшенного батча, затем из Redis
func (s *RedisRunStore) LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error) {
	rk := s.redisKey(key)

	s.batchMu.Lock()
	if s.batchBuffer == nil {
		s.batchMu.Unlock()
		return nil, false, ErrNotReady
	}
	data, ok := s.batchBuffer[rk]
	s.batchMu.Unlock()

	if !ok {
		raw, err := s.client.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("ошибка чтения %s из Redis: %w", rk, err)
		}
		data = raw
		metrics.StorageBytes.WithLabelValues("read").Add(float64(len(data)))
	}

	runs, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("чанк %s: %w", key, err)
	}
	return runs, true, nil
}

// Count число сохранённых чанков (SCAN по префиксу)
func (s *RedisRunStore) Count(ctx context.Context) (int64, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"chunk:*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта чанков: %w", err)
	}
	return count, nil
}

// Close сбрасывает остаток батча и закрывает соединение
func (s *RedisRunStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)
		s.wg.Wait()
		s.batchTicker.Stop()

		s.batchMu.Lock()
		batch := s.batchBuffer
		s.batchBuffer = nil
		s.batchMu.Unlock()

		if ferr := s.flushBatch(context.Background(), batch); ferr != nil {
			s.log.Error("Не удалось сбросить батч при закрытии: %v", ferr)
		}
		err = s.client.Close()
	})
	return err
}

// batchFlusher периодически сбрасывает батч-буфер
func (s *RedisRunStore) batchFlusher() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case <-s.batchTicker.C:
			s.batchMu.Lock()
			if len(s.batchBuffer) == 0 {
				s.batchMu.Unlock()
				continue
			}
			batch := s.batchBuffer
			s.batchBuffer = make(map[string][]byte)
			s.batchMu.Unlock()

			if err := s.flushBatch(context.Background(), batch); err != nil {
				s.log.Error("Не удалось сбросить батч: %v", err)
			}
		}
	}
}

// flushBatch записывает батч в Redis пайплайном
func (s *RedisRunStore) flushBatch(ctx context.Context, batch map[string][]byte) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	total := 0
	for key, data := range batch {
		pipe.Set(ctx, key, data, 0)
		total += len(data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка записи батча в Redis: %w", err)
	}

	metrics.StorageBytes.WithLabelValues("write").Add(float64(total))
	return nil
}
