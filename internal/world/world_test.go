package world

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type recordingSink struct {
	mu      sync.Mutex
	uploads map[chunk.ID]int
}

func (s *recordingSink) BeginUpload(id chunk.ID, data *mesher.MeshData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploads == nil {
		s.uploads = make(map[chunk.ID]int)
	}
	s.uploads[id]++
}

func (s *recordingSink) count(id chunk.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[id]
}

type recordingBreaks struct {
	mu     sync.Mutex
	broken []vec.Vec3
}

func (r *recordingBreaks) Explode(at vec.Vec3, id block.BlockID, power float32) {}

func (r *recordingBreaks) Break(at vec.Vec3, id block.BlockID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken = append(r.broken, at)
}

func newMemoryStore(t *testing.T) *storage.MemoryRunStore {
	t.Helper()
	codec, err := storage.NewCodec(true)
	require.NoError(t, err)
	t.Cleanup(codec.Close)
	return storage.NewMemoryRunStore(codec)
}

func newTestWorld(t *testing.T, opts Options) *World {
	t.Helper()
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	opts.Seed = 7
	opts.SaveEvery = time.Hour
	w := New(block.DefaultPack(), generator.DefaultPlanet(7), opts)
	t.Cleanup(func() { w.Shutdown(context.Background()) })
	return w
}

// tickUntil крутит тики, пока cond не станет истинным
func tickUntil(t *testing.T, w *World, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		w.Tick(context.Background())
		return cond()
	}, 10*time.Second, 5*time.Millisecond)
}

// Глубже любого рельефа: чанк всегда содержит блоки
var deep = vec.Vec3{Y: -2}

func TestQueryGeneratesChunk(t *testing.T) {
	w := newTestWorld(t, Options{})

	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)

	c := q.Chunk()
	require.NotNil(t, c)
	assert.Equal(t, chunk.GenDone, c.GenLevel)
	assert.Greater(t, c.NumBlocks, 0)
	assert.Equal(t, deep, c.Pos.Vec3)

	again := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, again.IsFinished)
	assert.Same(t, c, again.Chunk(), "повторный запрос возвращает тот же чанк")
	assert.Equal(t, 1, w.Stats().Chunks)
}

func TestRunServesQueries(t *testing.T) {
	w := newTestWorld(t, Options{Tick: 2 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	q := w.Query(deep, chunk.GenDone)
	waitCtx, waitCancel := context.WithTimeout(ctx, 10*time.Second)
	defer waitCancel()
	c, err := q.Wait(waitCtx)
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, chunk.GenDone, c.GenLevel)
}

func TestLoadAreaMeshesChunks(t *testing.T) {
	sink := &recordingSink{}
	w := newTestWorld(t, Options{Sink: sink})

	qs := w.LoadArea(deep, 1)
	require.Len(t, qs, 27)
	tickUntil(t, w, func() bool {
		for _, q := range qs {
			if !q.IsFinished() {
				return false
			}
		}
		return true
	})

	center := w.Grid().Chunk(deep)
	require.NotNil(t, center)
	assert.True(t, center.IsAccessible(), "центр окружён всеми соседями")

	tickUntil(t, w, func() bool { return sink.count(center.ID) > 0 })
	tickUntil(t, w, func() bool { return w.Stats().Meshing == 0 })
	assert.Equal(t, chunk.StateDraw, center.State)
	assert.Equal(t, 2, w.Stats().FreeMesher, "все мешеры вернулись в пул")
}

func TestSetBlockAndPersist(t *testing.T) {
	store := newMemoryStore(t)
	pos := vec.Vec3{X: 5, Y: -40, Z: 5}

	w := newTestWorld(t, Options{Store: store})
	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)

	require.NoError(t, w.SetBlock(pos, block.GLASS))
	got, err := w.Block(pos)
	require.NoError(t, err)
	assert.Equal(t, block.GLASS, got)
	assert.True(t, q.Chunk().Dirty)
	assert.Equal(t, 1, w.Stats().Dirty)

	require.NoError(t, w.Shutdown(context.Background()))
	assert.Equal(t, 1, store.Len(), "изменённый чанк сохранён при остановке")

	w2 := newTestWorld(t, Options{Store: store})
	q2 := w2.Query(deep, chunk.GenDone)
	tickUntil(t, w2, q2.IsFinished)

	got, err = w2.Block(pos)
	require.NoError(t, err)
	assert.Equal(t, block.GLASS, got, "правка пережила перезапуск")
	assert.False(t, q2.Chunk().Dirty)
}

func TestSetBlockErrors(t *testing.T) {
	w := newTestWorld(t, Options{})

	err := w.SetBlock(vec.Vec3{X: 1000, Y: 0, Z: 0}, block.STONE)
	assert.ErrorIs(t, err, ErrChunkNotLoaded)

	_, err = w.Block(vec.Vec3{X: 1000})
	assert.ErrorIs(t, err, ErrChunkNotLoaded)

	assert.Error(t, w.SetBlock(vec.Vec3{}, block.BlockID(4000)), "незарегистрированный блок")
}

func TestBreakBlockEmitsEvent(t *testing.T) {
	breaks := &recordingBreaks{}
	w := newTestWorld(t, Options{Breaks: breaks})
	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)

	pos := vec.Vec3{X: 3, Y: -50, Z: 9}
	require.NoError(t, w.SetBlock(pos, block.STONE))
	require.NoError(t, w.BreakBlock(pos))

	got, err := w.Block(pos)
	require.NoError(t, err)
	assert.Equal(t, block.NONE, got)
	require.Len(t, breaks.broken, 1)
	assert.Equal(t, pos, breaks.broken[0])

	require.NoError(t, w.BreakBlock(pos), "пустая ячейка не ломается повторно")
	assert.Len(t, breaks.broken, 1)
}

func TestUnloadFarChunks(t *testing.T) {
	store := newMemoryStore(t)
	w := newTestWorld(t, Options{Store: store, ViewDistance: 1})

	qs := w.LoadArea(deep, 1)
	tickUntil(t, w, func() bool {
		for _, q := range qs {
			if !q.IsFinished() {
				return false
			}
		}
		return true
	})
	require.NoError(t, w.SetBlock(vec.Vec3{X: 1, Y: -60, Z: 1}, block.GLASS))

	w.SetCamera(mgl64.Vec3{1e5, 0, 1e5})
	w.Tick(context.Background())
	assert.Equal(t, 0, w.Stats().Chunks, "все чанки вне радиуса")

	tickUntil(t, w, func() bool {
		s := w.Stats()
		return s.Live == 0 && s.Free == 27
	})
	tickUntil(t, w, func() bool { return store.Len() == 1 })
}

func TestShutdownStopsEdits(t *testing.T) {
	w := newTestWorld(t, Options{})
	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)

	require.NoError(t, w.Shutdown(context.Background()))
	assert.ErrorIs(t, w.SetBlock(vec.Vec3{X: 1, Y: -60, Z: 1}, block.STONE), ErrStopped)
	assert.NoError(t, w.Shutdown(context.Background()), "повторная остановка безопасна")
}

func TestOptionsFromConfig(t *testing.T) {
	id := uuid.New()
	cfg := &config.WorldConfig{ID: id.String(), Workers: 3, TickMs: 20, ViewDistance: 6, RandomUpdates: true}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, id, opts.SessionID)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 20*time.Millisecond, opts.Tick)
	assert.Equal(t, 6, opts.ViewDistance)
	assert.True(t, opts.RandomUpdates)

	named := OptionsFromConfig(&config.WorldConfig{ID: "earth"})
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceOID, []byte("earth")), named.SessionID,
		"имя мира даёт стабильный идентификатор сессии")
}

func TestStatsSinkCountsUploads(t *testing.T) {
	sink := &StatsSink{}
	w := newTestWorld(t, Options{Sink: sink})

	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)
	tickUntil(t, w, func() bool { return sink.Stats().Uploads > 0 })

	st := w.Stats()
	require.NotNil(t, st.Mesh)
	assert.Equal(t, sink.Stats().Uploads, st.Mesh.Uploads)
}

func allFinished(qs []*grid.Query) func() bool {
	return func() bool {
		for _, q := range qs {
			if !q.IsFinished() {
				return false
			}
		}
		return true
	}
}

func TestChunksDuringGeneration(t *testing.T) {
	w := newTestWorld(t, Options{Workers: 4})

	qs := w.LoadArea(deep, 2)
	w.Tick(context.Background())

	// Сводки читаются, пока воркеры заполняют чанки
	var unready atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			w.Stats()
			for _, info := range w.Chunks() {
				if !info.Ready && (info.NumBlocks != 0 || info.Dirty) {
					unready.Add(1)
				}
			}
		}
	}()

	tickUntil(t, w, allFinished(qs))
	close(stop)
	wg.Wait()
	assert.Zero(t, unready.Load(), "у несгенерированных чанков нет данных в сводке")

	tickUntil(t, w, func() bool {
		for _, info := range w.Chunks() {
			if !info.Ready {
				return false
			}
		}
		return true
	})
	infos := w.Chunks()
	assert.Len(t, infos, 125)
	assert.Zero(t, w.Stats().Dirty, "генерация не помечает чанки изменёнными")
}

func TestRandomUpdatesMarkChunkDirty(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	w := newTestWorld(t, Options{Store: store, RandomUpdates: true})

	qs := w.LoadArea(deep, 1)
	tickUntil(t, w, allFinished(qs))

	grass := vec.Vec3{X: 3, Y: -61, Z: 3}
	require.NoError(t, w.SetBlock(grass, block.DIRTGRASS))
	require.NoError(t, w.SetBlock(grass.Add(vec.Vec3{Y: 1}), block.STONE))

	w.ModifyLock.Lock()
	center := w.Grid().Chunk(deep)
	require.NotNil(t, center)
	require.True(t, center.IsAccessible())
	require.NoError(t, w.saveDirty(ctx, true))
	require.False(t, center.Dirty)
	center.BlockUpdateIndex = -1
	for i, v := range updater.RandomUpdateOrder {
		if v == chunk.Index(3, 3, 3) {
			center.BlockUpdateIndex = i
		}
	}
	require.GreaterOrEqual(t, center.BlockUpdateIndex, 0)
	w.ModifyLock.Unlock()

	w.Tick(ctx)

	got, err := w.Block(grass)
	require.NoError(t, err)
	assert.Equal(t, block.DIRT, got, "трава под камнем увяла")
	w.ModifyLock.Lock()
	assert.True(t, center.Dirty, "случайное обновление помечает чанк изменённым")
	w.ModifyLock.Unlock()

	require.NoError(t, w.Shutdown(ctx))

	w2 := newTestWorld(t, Options{Store: store})
	q := w2.Query(deep, chunk.GenDone)
	tickUntil(t, w2, q.IsFinished)
	got, err = w2.Block(grass)
	require.NoError(t, err)
	assert.Equal(t, block.DIRT, got, "результат случайного обновления сохранён")
}

func TestMesherWithPendingResultIsReplaced(t *testing.T) {
	sink := &recordingSink{}
	w := newTestWorld(t, Options{Sink: sink})

	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)
	tickUntil(t, w, func() bool { return w.Stats().Meshing == 0 })

	// В пул попадает мешер, чей результат никто не освободил
	w.ModifyLock.Lock()
	bad := mesher.New(w.pack, nil)
	_, err := bad.CreateChunkMesh(mesher.NewRenderTask(q.Chunk(), w.ready, mesher.TaskDefault))
	require.NoError(t, err)
	<-w.meshers
	w.meshers <- bad
	w.ModifyLock.Unlock()

	qs := w.LoadArea(deep, 1)
	tickUntil(t, w, allFinished(qs))
	tickUntil(t, w, func() bool {
		s := w.Stats()
		return s.Meshing == 0 && s.FreeMesher == 2
	})

	w.ModifyLock.Lock()
	defer w.ModifyLock.Unlock()
	idle := []*mesher.Mesher{<-w.meshers, <-w.meshers}
	for _, m := range idle {
		assert.NotSame(t, bad, m, "мешер с неосвобождённым результатом заменён")
		w.meshers <- m
	}
	for _, c := range w.grid.ActiveChunks() {
		assert.Zero(t, c.RefCount(), "ссылка чанка %v освобождена", c.Pos)
	}
	center := w.grid.Chunk(deep)
	assert.Equal(t, chunk.StateDraw, center.State)
	assert.Positive(t, sink.count(center.ID))
}

func TestSubsystemLoggers(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRuns(ctx, storage.KeyOf(chunk.Pos{Vec3: deep}), &storage.ChunkRuns{}))

	var base, gen bytes.Buffer
	w := newTestWorld(t, Options{
		Store:           store,
		Logger:          logging.NewWriterLogger("grid", &base),
		GeneratorLogger: logging.NewWriterLogger("generator", &gen),
	})
	q := w.Query(deep, chunk.GenDone)
	tickUntil(t, w, q.IsFinished)
	require.NoError(t, w.Shutdown(ctx))

	assert.Contains(t, gen.String(), "Повреждённая запись")
	assert.NotContains(t, base.String(), "Повреждённая запись", "загрузка пишет в логгер генератора")
	assert.Greater(t, q.Chunk().NumBlocks, 0, "чанк сгенерирован заново")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMeshVerticesCountedOnce(t *testing.T) {
	sink := &StatsSink{}
	w := newTestWorld(t, Options{Sink: sink})
	before := counterValue(t, metrics.MeshVertices)

	qs := w.LoadArea(deep, 1)
	tickUntil(t, w, allFinished(qs))
	tickUntil(t, w, func() bool { return w.Stats().Meshing == 0 })

	st := sink.Stats()
	require.Positive(t, st.Uploads)
	assert.Equal(t, float64(st.Vertices+st.Water), counterValue(t, metrics.MeshVertices)-before,
		"вершины учитываются один раз, при загрузке")
}
