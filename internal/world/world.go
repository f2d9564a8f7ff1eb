// Package world связывает сетку чанков, генератор, мешер и апдейтер.
//
// Владеющая горутина крутит Tick: обрабатывает запросы сетки, принимает
// результаты воркеров, отправляет чанки на мешинг и сохраняет изменения.
// Воркеры пула читают только снимки и чанки, которые ещё не видны соседям.
package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-core/internal/config"
	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/storage"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
	"github.com/annel0/voxel-core/internal/world/generator"
	"github.com/annel0/voxel-core/internal/world/grid"
	"github.com/annel0/voxel-core/internal/world/mesher"
	"github.com/annel0/voxel-core/internal/world/updater"
)

var (
	// ErrChunkNotLoaded чанк с этой координатой не сгенерирован
	ErrChunkNotLoaded = errors.New("чанк не загружен")
	// ErrStopped мир остановлен
	ErrStopped = errors.New("мир остановлен")
)

// MeshSink принимает готовые меши. Вызывается из владеющей горутины;
// после возврата MeshData освобождается, поэтому данные нужно скопировать.
type MeshSink interface {
	BeginUpload(id chunk.ID, data *mesher.MeshData)
}

type nopSink struct{}

func (nopSink) BeginUpload(chunk.ID, *mesher.MeshData) {}

// Options параметры мира
type Options struct {
	Face          int
	Workers       int
	MaxQueries    int
	ViewDistance  int // радиус в чанках, 0 отключает выгрузку
	Tick          time.Duration
	SaveEvery     time.Duration
	RandomUpdates bool
	Seed          int64
	SessionID     uuid.UUID

	Store  storage.RunStore // nil: мир живёт только в памяти
	Sink   MeshSink
	Breaks updater.BreakHandler
	Logger *logging.Logger

	// Логгеры подсистем, по умолчанию Logger
	GeneratorLogger *logging.Logger
	MesherLogger    *logging.Logger
}

// OptionsFromConfig собирает параметры из секции world конфигурации
func OptionsFromConfig(cfg *config.WorldConfig) Options {
	session, err := uuid.Parse(cfg.GetID())
	if err != nil {
		session = uuid.NewSHA1(uuid.NameSpaceOID, []byte(cfg.GetID()))
	}
	return Options{
		Face:          cfg.Face,
		Workers:       cfg.GetWorkers(),
		MaxQueries:    cfg.GetMaxQueries(),
		ViewDistance:  cfg.GetViewDistance(),
		Tick:          time.Duration(cfg.GetTickMs()) * time.Millisecond,
		SaveEvery:     time.Duration(cfg.GetSaveEverySec()) * time.Second,
		RandomUpdates: cfg.RandomUpdates,
		Seed:          cfg.Seed,
		SessionID:     session,
	}
}

// World владеет чанками одной грани планеты
type World struct {
	// ModifyLock защищает чанки, сетку и очереди правок.
	// Tick держит его всё время своей работы.
	ModifyLock sync.Mutex

	SessionID uuid.UUID

	pack  *block.Pack
	alloc *chunk.Allocator
	ready readyChunks
	gen   *generator.Generator
	grid  *grid.Grid
	upd   *updater.Updater
	store storage.RunStore
	sink  MeshSink

	pool    pond.Pool
	meshers chan *mesher.Mesher
	results chan result
	meshing map[chunk.ID]struct{}

	camera    mgl64.Vec3
	hasCamera bool
	lastSave  time.Time

	opts    Options
	log     *logging.Logger
	genLog  *logging.Logger
	meshLog *logging.Logger
	tracer  trace.Tracer

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  bool
}

// New создает мир. Пул воркеров запускается сразу.
func New(pack *block.Pack, planet *generator.PlanetGenData, opts Options) *World {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Tick <= 0 {
		opts.Tick = 50 * time.Millisecond
	}
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = 30 * time.Second
	}
	if opts.SessionID == uuid.Nil {
		opts.SessionID = uuid.New()
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.GeneratorLogger == nil {
		opts.GeneratorLogger = opts.Logger
	}
	if opts.MesherLogger == nil {
		opts.MesherLogger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	alloc := chunk.NewAllocator()
	w := &World{
		SessionID: opts.SessionID,
		pack:      pack,
		alloc:     alloc,
		ready:     readyChunks{alloc: alloc},
		gen:       generator.New(pack, planet),
		store:     opts.Store,
		sink:      opts.Sink,
		pool:      pond.NewPool(opts.Workers),
		meshers:   make(chan *mesher.Mesher, opts.Workers),
		results:   make(chan result, opts.Workers*16),
		meshing:   make(map[chunk.ID]struct{}),
		lastSave:  time.Now(),
		opts:      opts,
		log:       opts.Logger,
		genLog:    opts.GeneratorLogger,
		meshLog:   opts.MesherLogger,
		tracer:    otel.Tracer("voxel-core"),
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		w.meshers <- mesher.New(pack, opts.MesherLogger)
	}
	w.grid = grid.New(opts.Face, alloc, w.gen, w, grid.Options{
		MaxQueries: opts.MaxQueries,
		Logger:     opts.Logger,
	})
	w.upd = updater.New(pack, w.ready, updater.Options{
		Breaks: opts.Breaks,
		Seed:   opts.Seed,
		Logger: opts.Logger,
	})

	w.log.Info("Мир создан: грань %d, воркеров %d, сессия %s", opts.Face, opts.Workers, w.SessionID)
	return w
}

// readyChunks отдаёт только сгенерированные чанки. Чанк, который ещё
// заполняет воркер, для соседей выглядит отсутствующим.
type readyChunks struct {
	alloc *chunk.Allocator
}

func (r readyChunks) Get(id chunk.ID) *chunk.Chunk {
	c := r.alloc.Get(id)
	if c == nil || c.GenLevel != chunk.GenDone {
		return nil
	}
	return c
}

// settled чанк сгенерирован и не занят воркером генерации. Поля чанка
// в процессе генерации пишет только воркер.
func settled(c *chunk.Chunk) bool {
	return !c.InFlight && c.GenLevel == chunk.GenDone
}

// Pack реестр блоков мира
func (w *World) Pack() *block.Pack { return w.pack }

// Updater машина правок. Методы вызываются под ModifyLock.
func (w *World) Updater() *updater.Updater { return w.upd }

// Grid сетка чанков. Доступ под ModifyLock.
func (w *World) Grid() *grid.Grid { return w.grid }

// Query ставит запрос чанка в очередь сетки. Можно вызывать из любой горутины.
func (w *World) Query(pos vec.Vec3, level chunk.GenLevel) *grid.Query {
	q := grid.NewQuery(pos, level)
	w.grid.SubmitQuery(q)
	return q
}

// LoadArea запрашивает куб чанков с центром center и радиусом r
func (w *World) LoadArea(center vec.Vec3, r int) []*grid.Query {
	qs := make([]*grid.Query, 0, (2*r+1)*(2*r+1)*(2*r+1))
	for y := -r; y <= r; y++ {
		for z := -r; z <= r; z++ {
			for x := -r; x <= r; x++ {
				qs = append(qs, w.Query(center.Add(vec.Vec3{X: x, Y: y, Z: z}), chunk.GenDone))
			}
		}
	}
	return qs
}

// SetCamera задаёт точку, от которой считаются расстояния до чанков
func (w *World) SetCamera(p mgl64.Vec3) {
	w.ModifyLock.Lock()
	w.camera = p
	w.hasCamera = true
	w.ModifyLock.Unlock()
}

// locate находит сгенерированный чанк и индекс вокселя по мировой координате
func (w *World) locate(p vec.Vec3) (*chunk.Chunk, int, error) {
	cpos := p.FloorDiv(chunk.Width)
	c := w.grid.Chunk(cpos)
	if c == nil || c.GenLevel != chunk.GenDone {
		return nil, 0, fmt.Errorf("%w: %v", ErrChunkNotLoaded, cpos)
	}
	local := p.Add(cpos.Scale(-chunk.Width))
	return c, chunk.Index(local.X, local.Y, local.Z), nil
}

// Block возвращает блок в мировой координате
func (w *World) Block(p vec.Vec3) (block.BlockID, error) {
	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()

	c, idx, err := w.locate(p)
	if err != nil {
		return block.NONE, err
	}
	return c.BlockID(idx), nil
}

// SetBlock ставит блок в мировую координату. NONE удаляет блок.
func (w *World) SetBlock(p vec.Vec3, id block.BlockID) error {
	if !w.pack.IsValidBlockID(id) {
		return fmt.Errorf("неизвестный блок %d", id)
	}

	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()
	if w.stopped {
		return ErrStopped
	}

	c, idx, err := w.locate(p)
	if err != nil {
		return err
	}
	w.upd.PlaceBlock(c, idx, id)
	return nil
}

// BreakBlock разрушает блок с событием разрушения или взрыва
func (w *World) BreakBlock(p vec.Vec3) error {
	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()
	if w.stopped {
		return ErrStopped
	}

	c, idx, err := w.locate(p)
	if err != nil {
		return err
	}
	if c.BlockID(idx) == block.NONE {
		return nil
	}
	w.upd.RemoveBlock(c, idx, true)
	return nil
}

// Run крутит тики до отмены ctx
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	w.log.Info("Цикл мира запущен, тик %v", w.opts.Tick)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Цикл мира остановлен")
			return nil
		case <-w.ctx.Done():
			return ErrStopped
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick выполняет один шаг владеющей горутины
func (w *World) Tick(ctx context.Context) {
	ctx, span := w.tracer.Start(ctx, "world.tick")
	defer span.End()

	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()
	if w.stopped {
		return
	}

	w.drainResults()

	if w.hasCamera {
		w.grid.UpdateDistances(w.camera)
		w.unloadFar(ctx)
	}
	w.grid.Update()

	if w.opts.RandomUpdates {
		for _, c := range w.grid.ActiveChunks() {
			if settled(c) {
				w.upd.RandomBlockUpdates(c)
			}
		}
	}

	w.dispatchMeshes()

	for _, c := range w.grid.ActiveChunks() {
		if settled(c) {
			c.EndTick()
		}
	}

	if time.Since(w.lastSave) >= w.opts.SaveEvery {
		w.saveDirty(ctx, false)
		w.lastSave = time.Now()
	}

	_, free := w.alloc.Stats()
	metrics.ChunksFree.Set(float64(free))
}

// Shutdown останавливает пул и сохраняет изменённые чанки. Хранилище не закрывается.
func (w *World) Shutdown(ctx context.Context) error {
	var err error
	w.stopOnce.Do(func() {
		w.ModifyLock.Lock()
		w.stopped = true
		w.ModifyLock.Unlock()

		// Фоновые записи успевают завершиться до финального сохранения
		w.cancel()
		w.pool.StopAndWait()

		w.ModifyLock.Lock()
		w.drainResults()
		err = w.saveDirty(ctx, true)
		w.ModifyLock.Unlock()
		w.log.Info("Мир остановлен")
	})
	return err
}

// Stats сводка для мониторинга
type Stats struct {
	Session    string `json:"session"`
	Face       int    `json:"face"`
	Chunks     int    `json:"chunks"`
	Live       int    `json:"live"`
	Free       int    `json:"free"`
	Meshing    int    `json:"meshing"`
	Dirty      int    `json:"dirty"`
	Running    int64  `json:"workers_running"`
	Waiting    uint64 `json:"tasks_waiting"`
	Completed  uint64 `json:"tasks_completed"`
	FreeMesher int    `json:"meshers_idle"`

	Mesh *SinkStats `json:"mesh,omitempty"`
}

// Stats собирает сводку под ModifyLock
func (w *World) Stats() Stats {
	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()

	live, free := w.alloc.Stats()
	s := Stats{
		Session:    w.SessionID.String(),
		Face:       w.opts.Face,
		Chunks:     w.grid.Len(),
		Live:       live,
		Free:       free,
		Meshing:    len(w.meshing),
		Running:    w.pool.RunningWorkers(),
		Waiting:    w.pool.WaitingTasks(),
		Completed:  w.pool.CompletedTasks(),
		FreeMesher: len(w.meshers),
	}
	for _, c := range w.grid.ActiveChunks() {
		if settled(c) && c.Dirty {
			s.Dirty++
		}
	}
	if ss, ok := w.sink.(*StatsSink); ok {
		st := ss.Stats()
		s.Mesh = &st
	}
	return s
}

// ChunkInfo краткое описание чанка
type ChunkInfo struct {
	ID        chunk.ID `json:"id"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Z         int      `json:"z"`
	State     string   `json:"state"`
	Ready     bool     `json:"ready"`
	NumBlocks int      `json:"blocks"`
	Neighbors int      `json:"neighbors"`
	Dirty     bool     `json:"dirty"`
}

// Chunks список активных чанков. У чанков, которые ещё генерируются,
// заполнены только координаты и состояние.
func (w *World) Chunks() []ChunkInfo {
	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()

	active := w.grid.ActiveChunks()
	out := make([]ChunkInfo, 0, len(active))
	for _, c := range active {
		info := ChunkInfo{
			ID:        c.ID,
			X:         c.Pos.X,
			Y:         c.Pos.Y,
			Z:         c.Pos.Z,
			State:     c.State.String(),
			Neighbors: c.NumNeighbors,
		}
		if settled(c) {
			info.Ready = true
			info.NumBlocks = c.NumBlocks
			info.Dirty = c.Dirty
		}
		out = append(out, info)
	}
	return out
}
