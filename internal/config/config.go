package config

import (
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Assets    AssetsConfig    `yaml:"assets"`
}

type WorldConfig struct {
	ID            string `yaml:"id"`
	Seed          int64  `yaml:"seed"`
	Face          int    `yaml:"face"`
	Workers       int    `yaml:"workers"`
	MaxQueries    int    `yaml:"max_queries"`
	ViewDistance  int    `yaml:"view_distance"`
	TickMs        int    `yaml:"tick_ms"`
	SaveEverySec  int    `yaml:"save_every_seconds"`
	RandomUpdates bool   `yaml:"random_updates"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // badger | redis | mariadb | mongo | memory
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
	MariaDSN    string `yaml:"maria_dsn"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDB     string `yaml:"mongo_db"`
	Compression bool   `yaml:"compression"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

type AssetsConfig struct {
	BlockPack  string `yaml:"block_pack"`
	PlanetFile string `yaml:"planet_file"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Storage:   StorageConfig{Compression: true},
		Telemetry: TelemetryConfig{Service: "voxel-core"},
		World:     WorldConfig{RandomUpdates: true},
	}
}

// GetWorkers возвращает число воркеров: config -> env -> число логических CPU
func (w *WorldConfig) GetWorkers() int {
	def := 4
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		def = n
	}
	return getIntWithEnvFallback(w.Workers, "VOXEL_WORKERS", def)
}

// GetMaxQueries возвращает лимит запросов за один тик сетки
func (w *WorldConfig) GetMaxQueries() int {
	return getIntWithEnvFallback(w.MaxQueries, "VOXEL_MAX_QUERIES", 5000)
}

// GetViewDistance возвращает радиус загрузки в чанках
func (w *WorldConfig) GetViewDistance() int {
	return getIntWithEnvFallback(w.ViewDistance, "VOXEL_VIEW_DISTANCE", 4)
}

// GetTickMs возвращает длительность тика мира в миллисекундах
func (w *WorldConfig) GetTickMs() int {
	return getIntWithEnvFallback(w.TickMs, "VOXEL_TICK_MS", 50)
}

// GetSaveEverySec возвращает период сохранения изменённых чанков
func (w *WorldConfig) GetSaveEverySec() int {
	return getIntWithEnvFallback(w.SaveEverySec, "VOXEL_SAVE_EVERY", 30)
}

// GetID возвращает идентификатор мира; при пустом значении генерирует новый UUID
func (w *WorldConfig) GetID() string {
	if w.ID == "" {
		if env := os.Getenv("VOXEL_WORLD_ID"); env != "" {
			w.ID = env
		} else {
			w.ID = uuid.NewString()
		}
	}
	return w.ID
}

// GetBackend возвращает тип хранилища (по умолчанию badger)
func (s *StorageConfig) GetBackend() string {
	return getStringWithEnvFallback(s.Backend, "VOXEL_STORAGE", "badger")
}

// GetPath возвращает каталог данных BadgerDB
func (s *StorageConfig) GetPath() string {
	return getStringWithEnvFallback(s.Path, "VOXEL_DATA", "data")
}

// GetRedisAddr возвращает адрес Redis
func (s *StorageConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(s.RedisAddr, "VOXEL_REDIS_ADDR", "localhost:6379")
}

// GetMariaDSN возвращает строку подключения MariaDB (user:pass@tcp(host:port)/dbname)
func (s *StorageConfig) GetMariaDSN() string {
	return getStringWithEnvFallback(s.MariaDSN, "VOXEL_MARIA_DSN", "voxel:voxel@tcp(localhost:3306)/voxel")
}

// GetMongoURI возвращает адрес MongoDB
func (s *StorageConfig) GetMongoURI() string {
	return getStringWithEnvFallback(s.MongoURI, "VOXEL_MONGO_URI", "mongodb://localhost:27017")
}

// GetMongoDB возвращает имя базы MongoDB
func (s *StorageConfig) GetMongoDB() string {
	return getStringWithEnvFallback(s.MongoDB, "VOXEL_MONGO_DB", "voxel")
}

// GetRESTPort возвращает порт диагностического REST API
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
