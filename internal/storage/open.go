package storage

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-core/internal/config"
	"github.com/annel0/voxel-core/internal/logging"
)

// Open создает хранилище по конфигурации: badger, redis, mariadb, mongo или memory
func Open(ctx context.Context, cfg *config.StorageConfig, log *logging.Logger) (RunStore, error) {
	codec, err := NewCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	switch backend := cfg.GetBackend(); backend {
	case "badger":
		s, err := NewBadgerRunStore(cfg.GetPath(), codec, log)
		if err != nil {
			codec.Close()
			return nil, err
		}
		return s, nil
	case "redis":
		rc := DefaultRedisConfig()
		rc.Addr = cfg.GetRedisAddr()
		rc.DB = cfg.RedisDB
		if cfg.RedisPrefix != "" {
			rc.KeyPrefix = cfg.RedisPrefix
		}
		s, err := NewRedisRunStore(ctx, rc, codec, log)
		if err != nil {
			codec.Close()
			return nil, err
		}
		return s, nil
	case "mariadb", "mysql":
		s, err := NewMariaRunStore(ctx, cfg.GetMariaDSN(), codec, log)
		if err != nil {
			codec.Close()
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := NewMongoRunStore(ctx, MongoConfig{URI: cfg.GetMongoURI(), Database: cfg.GetMongoDB()}, codec, log)
		if err != nil {
			codec.Close()
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryRunStore(codec), nil
	default:
		codec.Close()
		return nil, fmt.Errorf("неизвестный тип хранилища %q", backend)
	}
}
