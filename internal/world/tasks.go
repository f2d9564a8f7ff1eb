package world

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/storage"
	"github.com/annel0/voxel-core/internal/world/chunk"
	"github.com/annel0/voxel-core/internal/world/mesher"
)

type resultKind uint8

const (
	resultGenerate resultKind = iota
	resultMesh
)

// result ответ воркера владеющей горутине
type result struct {
	kind  resultKind
	c     *chunk.Chunk
	epoch uint32
	data  *mesher.MeshData
	m     *mesher.Mesher
}

// post отдаёт результат владельцу. Пока в канале есть место, результат
// доставляется и после остановки: Shutdown дочитает его и освободит ссылку
// на чанк. Иначе результат теряется, мешер возвращается в пул.
func (w *World) post(r result) {
	select {
	case w.results <- r:
		return
	default:
	}
	select {
	case w.results <- r:
	case <-w.ctx.Done():
		if r.data != nil {
			r.data.Release()
		}
		if r.m != nil {
			w.meshers <- r.m
		}
	}
}

// DispatchGenerate отправляет чанк на генерацию. Сетка уже взяла ссылку.
func (w *World) DispatchGenerate(c *chunk.Chunk) {
	epoch := c.Epoch
	key := storage.KeyOf(c.Pos)
	w.pool.Submit(func() {
		w.generate(c, key)
		w.post(result{kind: resultGenerate, c: c, epoch: epoch})
	})
}

// generate выполняется на воркере. Чанк ещё не виден соседям через readyChunks.
func (w *World) generate(c *chunk.Chunk, key storage.Key) {
	ctx, span := w.tracer.Start(w.ctx, "world.generate")
	defer span.End()
	span.SetAttributes(attribute.String("chunk", key.String()))

	start := time.Now()
	defer metrics.ObserveSince(metrics.GenerateDuration, start)

	if w.load(ctx, c, key) {
		span.SetAttributes(attribute.Bool("stored", true))
		return
	}
	if w.gen.GenerateChunk(c, c.GridData) {
		if n := w.gen.PlaceFlora(c); n > 0 {
			c.CheckEdgeBlocks()
		}
	}
}

// load читает чанк из хранилища. false, если чанка там нет.
func (w *World) load(ctx context.Context, c *chunk.Chunk, key storage.Key) bool {
	if w.store == nil {
		return false
	}
	runs, found, err := w.store.LoadRuns(ctx, key)
	if err != nil {
		w.genLog.Warn("Не удалось прочитать %s, генерируем заново: %v", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := runs.Apply(c); err != nil {
		w.genLog.Error("Повреждённая запись %s: %v", key, err)
		c.Blocks.Clear()
		c.Lamp.Clear()
		c.Sun.Clear()
		return false
	}
	c.CheckEdgeBlocks()
	w.genLog.Debug("Чанк %s загружен из хранилища", key)
	return true
}

// meshReady чанк и все его связанные соседи сгенерированы
func (w *World) meshReady(c *chunk.Chunk) bool {
	if !settled(c) || c.Evicted() {
		return false
	}
	for _, id := range c.Neighbors {
		if id == chunk.NoID {
			continue
		}
		if n := w.alloc.Get(id); n != nil && n.GenLevel != chunk.GenDone {
			return false
		}
	}
	return true
}

// dispatchMeshes отправляет на мешинг чанки в состоянии Mesh и WaterMesh
func (w *World) dispatchMeshes() {
	for _, c := range w.grid.ActiveChunks() {
		c := c
		if c.State != chunk.StateMesh && c.State != chunk.StateWaterMesh {
			continue
		}
		if _, busy := w.meshing[c.ID]; busy || !w.meshReady(c) {
			continue
		}

		kind := mesher.TaskDefault
		if c.State == chunk.StateWaterMesh {
			kind = mesher.TaskLiquid
		}
		task := mesher.NewRenderTask(c, w.ready, kind)
		c.SetState(chunk.StateDraw)
		c.AddRef()
		w.meshing[c.ID] = struct{}{}

		w.pool.Submit(func() {
			var m *mesher.Mesher
			select {
			case m = <-w.meshers:
			case <-w.ctx.Done():
				w.post(result{kind: resultMesh, c: c, epoch: task.Epoch})
				return
			}
			var (
				data *mesher.MeshData
				err  error
			)
			if kind == mesher.TaskLiquid {
				data, err = m.CreateOnlyWaterMesh(task)
			} else {
				data, err = m.CreateChunkMesh(task)
			}
			if errors.Is(err, mesher.ErrMeshInFlight) {
				// Мешер держит чужой результат, в пул вместо него идёт новый
				w.meshLog.Error("Мешер выдан из пула с неосвобождённым результатом, заменён")
				m = mesher.New(w.pack, w.meshLog)
			} else if err != nil {
				w.meshLog.Error("Ошибка мешинга чанка %d: %v", task.ChunkID, err)
			}
			w.post(result{kind: resultMesh, c: c, epoch: task.Epoch, data: data, m: m})
		})
	}
}

// drainResults принимает все готовые результаты без ожидания
func (w *World) drainResults() {
	for {
		select {
		case r := <-w.results:
			w.finish(r)
		default:
			return
		}
	}
}

func (w *World) finish(r result) {
	switch r.kind {
	case resultGenerate:
		if r.c.Epoch != r.epoch {
			w.log.Warn("Результат генерации для переиспользованного чанка отброшен")
			return
		}
		w.grid.OnGenFinished(r.c)

	case resultMesh:
		c := r.c
		delete(w.meshing, c.ID)
		if r.data != nil {
			if c.Epoch == r.epoch && !c.Evicted() {
				metrics.MeshVertices.Add(float64(len(r.data.Vertices) + len(r.data.TransVertices) +
					len(r.data.CutoutVertices) + len(r.data.WaterVertices)))
				w.sink.BeginUpload(c.ID, r.data)
			}
			r.data.Release()
		}
		if r.m != nil {
			w.meshers <- r.m
		}
		w.alloc.Release(c)
	}
}

// unloadFar выгружает чанки дальше радиуса видимости. Изменённые
// сохраняются перед выгрузкой.
func (w *World) unloadFar(ctx context.Context) {
	if w.opts.ViewDistance <= 0 {
		return
	}
	limit := float64((w.opts.ViewDistance + 1) * chunk.Width)
	limit *= limit

	var far []*chunk.Chunk
	for _, c := range w.grid.ActiveChunks() {
		if c.Distance2 > limit && !c.InFlight {
			far = append(far, c)
		}
	}
	for _, c := range far {
		if c.Dirty {
			w.saveChunk(ctx, c, false)
		}
		w.grid.RemoveChunk(c)
	}
	if len(far) > 0 {
		w.log.Debug("Выгружено %d чанков", len(far))
	}
}

// saveDirty сохраняет изменённые чанки. wait ждёт окончания записи.
func (w *World) saveDirty(ctx context.Context, wait bool) error {
	if w.store == nil {
		return nil
	}
	ctx, span := w.tracer.Start(ctx, "world.save")
	defer span.End()

	var firstErr error
	saved := 0
	for _, c := range w.grid.ActiveChunks() {
		if !settled(c) || !c.Dirty {
			continue
		}
		if err := w.saveChunk(ctx, c, wait); err != nil && firstErr == nil {
			firstErr = err
		}
		saved++
	}
	if firstErr != nil {
		span.SetStatus(codes.Error, firstErr.Error())
	}
	if saved > 0 {
		w.log.Debug("Сохранено %d чанков", saved)
	}
	return firstErr
}

// saveChunk снимает копию интервалов под ModifyLock и пишет её в хранилище
func (w *World) saveChunk(ctx context.Context, c *chunk.Chunk, wait bool) error {
	c.Compact()
	runs := storage.Snapshot(c, w.SessionID)
	key := storage.KeyOf(c.Pos)
	c.Dirty = false

	if wait {
		if err := w.store.SaveRuns(ctx, key, runs); err != nil {
			w.log.Error("Не удалось сохранить %s: %v", key, err)
			return err
		}
		return nil
	}
	// Запись переживает отмену контекста мира
	bg := context.WithoutCancel(ctx)
	w.pool.Submit(func() {
		if err := w.store.SaveRuns(bg, key, runs); err != nil {
			w.log.Error("Не удалось сохранить %s: %v", key, err)
		}
	})
	return nil
}
