package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxel-core/internal/api"
	"github.com/annel0/voxel-core/internal/config"
	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/observability"
	"github.com/annel0/voxel-core/internal/storage"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/generator"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или VOXEL_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка чтения конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("Сервер завершился с ошибкой: %v", err)
		os.Exit(1)
	}
	logging.Info("Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Info("Запуск voxel-core, мир %s", cfg.World.GetID())

	shutdownTelemetry, err := observability.InitTelemetry(ctx, &cfg.Telemetry, logging.GetComponentLogger("telemetry"))
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	pack, err := loadPack(cfg.Assets.BlockPack)
	if err != nil {
		return err
	}
	planet, err := loadPlanet(cfg.Assets.PlanetFile, pack, cfg.World.Seed)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, &cfg.Storage, logging.GetStorageLogger())
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer store.Close()

	opts := world.OptionsFromConfig(&cfg.World)
	opts.Store = store
	opts.Sink = &world.StatsSink{}
	opts.Logger = logging.GetGridLogger()
	opts.GeneratorLogger = logging.GetGeneratorLogger()
	opts.MesherLogger = logging.GetMesherLogger()
	w := world.New(pack, planet, opts)

	rest := api.NewRestServer(api.Config{
		Port:   fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:  w,
		Logger: logging.GetComponentLogger("api"),
	})
	restErr := make(chan error, 1)
	go func() { restErr <- rest.Start() }()

	runCtx, stopWorld := context.WithCancel(ctx)
	defer stopWorld()
	worldDone := make(chan error, 1)
	go func() { worldDone <- w.Run(runCtx) }()

	// Стартовая область вокруг начала координат
	w.SetCamera(mgl64.Vec3{0, 0, 0})
	w.LoadArea(vec.Vec3{}, cfg.World.GetViewDistance())
	logging.Info("Все сервисы запущены, REST API на :%d", cfg.Server.GetRESTPort())

	select {
	case <-ctx.Done():
		logging.Info("Получен сигнал, завершение работы...")
	case err := <-restErr:
		if err != nil {
			logging.Error("REST API остановлен: %v", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rest.Stop(stopCtx); err != nil {
		logging.Error("Ошибка остановки REST API: %v", err)
	}
	stopWorld()
	if err := <-worldDone; err != nil && err != world.ErrStopped {
		logging.Error("Цикл мира: %v", err)
	}
	return w.Shutdown(stopCtx)
}

func loadPack(path string) (*block.Pack, error) {
	if path == "" {
		return block.DefaultPack(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("набор блоков: %w", err)
	}
	defer f.Close()
	return block.LoadPack(f)
}

func loadPlanet(path string, pack *block.Pack, seed int64) (*generator.PlanetGenData, error) {
	if path == "" {
		return generator.DefaultPlanet(seed), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("описание планеты: %w", err)
	}
	defer f.Close()
	return generator.LoadPlanet(f, pack)
}
