package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
)

// MongoConfig настройки подключения к MongoDB
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string
	Collection string
}

// MongoRunStore хранит интервалы чанков в коллекции MongoDB.
// _id документа совпадает с Key.String().
type MongoRunStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	codec      *Codec
	log        *logging.Logger

	mutex   sync.RWMutex
	isReady bool
}

type chunkDoc struct {
	ID      string    `bson:"_id"`
	Face    int       `bson:"face"`
	X       int       `bson:"x"`
	Y       int       `bson:"y"`
	Z       int       `bson:"z"`
	Data    []byte    `bson:"data"`
	SavedAt time.Time `bson:"saved_at"`
}

// NewMongoRunStore подключается к MongoDB и проверяет соединение
func NewMongoRunStore(ctx context.Context, cfg MongoConfig, codec *Codec, log *logging.Logger) (*MongoRunStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "voxel"
	}
	if cfg.Collection == "" {
		cfg.Collection = "chunk_runs"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB %s недоступна: %w", cfg.URI, err)
	}

	log.Info("Подключено к MongoDB %s/%s", cfg.Database, cfg.Collection)
	return &MongoRunStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		codec:      codec,
		log:        log,
		isReady:    true,
	}, nil
}

// SaveRuns заменяет документ чанка (upsert)
func (s *MongoRunStore) SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}

	data, err := s.codec.Encode(runs)
	if err != nil {
		return err
	}

	doc := chunkDoc{
		ID:      key.String(),
		Face:    key.Face,
		X:       key.Pos.X,
		Y:       key.Pos.Y,
		Z:       key.Pos.Z,
		Data:    data,
		SavedAt: runs.SavedAt,
	}
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ошибка сохранения %s в MongoDB: %w", key, err)
	}

	metrics.StorageBytes.WithLabelValues("write").Add(float64(len(data)))
	return nil
}

// LoadRuns читает документ чанка
func (s *MongoRunStore) LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, false, ErrNotReady
	}

	var doc chunkDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения %s из MongoDB: %w", key, err)
	}

	metrics.StorageBytes.WithLabelValues("read").Add(float64(len(doc.Data)))
	runs, err := s.codec.Decode(doc.Data)
	if err != nil {
		return nil, false, fmt.Errorf("чанк %s: %w", key, err)
	}
	return runs, true, nil
}

// Close отключается от MongoDB
func (s *MongoRunStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.isReady {
		return nil
	}
	s.isReady = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
