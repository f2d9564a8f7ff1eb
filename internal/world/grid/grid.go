// Package grid хранит чанки одной грани планеты в разреженной сетке
// и поддерживает связи между соседями.
package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// DefaultMaxQueries лимит запросов, обрабатываемых за один Update
const DefaultMaxQueries = 5000

// Dispatcher отправляет задачу генерации чанка на пул воркеров
type Dispatcher interface {
	DispatchGenerate(c *chunk.Chunk)
}

// HeightProvider заполняет карту высот нового столбца
type HeightProvider interface {
	FillGridData(face int, gd *chunk.GridData)
}

// Grid сетка чанков одной грани
type Grid struct {
	face       int
	alloc      *chunk.Allocator
	heights    HeightProvider
	dispatcher Dispatcher
	maxQueries int
	log        *logging.Logger

	chunks   map[vec.Vec3]*chunk.Chunk
	gridData map[vec.Vec2]*chunk.GridData
	active   []*chunk.Chunk
	queries  *QueryQueue
	pending  map[chunk.ID][]*Query
}

// Options параметры сетки
type Options struct {
	MaxQueries int
	Logger     *logging.Logger
}

// New создает сетку для грани face
func New(face int, alloc *chunk.Allocator, heights HeightProvider, d Dispatcher, opts Options) *Grid {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = DefaultMaxQueries
	}
	return &Grid{
		face:       face,
		alloc:      alloc,
		heights:    heights,
		dispatcher: d,
		maxQueries: opts.MaxQueries,
		log:        opts.Logger,
		chunks:     make(map[vec.Vec3]*chunk.Chunk),
		gridData:   make(map[vec.Vec2]*chunk.GridData),
		queries:    NewQueryQueue(),
		pending:    make(map[chunk.ID][]*Query),
	}
}

// Face грань планеты
func (g *Grid) Face() int { return g.face }

// SubmitQuery ставит запрос в очередь. Не блокируется.
func (g *Grid) SubmitQuery(q *Query) {
	g.queries.Push(q)
}

// Update обрабатывает накопившиеся запросы и сортирует активные чанки.
// Вызывается только из владеющей горутины.
func (g *Grid) Update() {
	for n := 0; n < g.maxQueries; n++ {
		q := g.queries.Pop()
		if q == nil {
			break
		}
		metrics.QueriesProcessed.Inc()

		c, ok := g.chunks[q.Pos]
		if ok && c.GenLevel >= q.GenLevel {
			q.finish(c)
			continue
		}
		if !ok {
			c = g.alloc.New(chunk.Pos{Vec3: q.Pos, Face: g.face})
			g.AddChunk(c)
		}
		g.pending[c.ID] = append(g.pending[c.ID], q)
		if c.InFlight {
			// Генерация уже идёт: запрос закроется по её завершении
			continue
		}
		c.AddRef()
		c.InFlight = true
		g.dispatcher.DispatchGenerate(c)
	}

	sort.SliceStable(g.active, func(i, j int) bool {
		return g.active[i].Distance2 > g.active[j].Distance2
	})
}

// OnGenFinished фиксирует результат генерации и закрывает ожидающие запросы.
// Возвращает false, если чанк успел уйти в пул.
func (g *Grid) OnGenFinished(c *chunk.Chunk) bool {
	c.InFlight = false
	c.GenLevel = chunk.GenDone
	if c.State < chunk.StateMesh {
		c.SetState(chunk.StateMesh)
	}

	id := c.ID
	queries := g.pending[id]
	delete(g.pending, id)

	recycled := g.alloc.Release(c)
	for _, q := range queries {
		if recycled {
			q.finish(nil)
		} else {
			q.finish(c)
		}
	}
	if recycled {
		return false
	}
	// Соседи могли стать доступными для мешинга
	for _, id := range c.Neighbors {
		if n := g.alloc.Get(id); n != nil && n.GenLevel == chunk.GenDone {
			n.ChangeState(chunk.StateMesh)
		}
	}
	return true
}

// AddChunk вставляет чанк в сетку и связывает его с соседями
func (g *Grid) AddChunk(c *chunk.Chunk) {
	g.chunks[c.Pos.Vec3] = c

	col := c.Pos.ToVec2()
	gd, ok := g.gridData[col]
	if !ok {
		gd = &chunk.GridData{Col: col}
		if g.heights != nil {
			g.heights.FillGridData(g.face, gd)
		}
		gd.Ready = true
		g.gridData[col] = gd
	}
	gd.RefCount++
	c.GridData = gd

	g.connectNeighbors(c)
	g.active = append(g.active, c)
	metrics.ChunksActive.Inc()
	g.log.Trace("чанк %d добавлен в %v", c.ID, c.Pos.Vec3)
}

// RemoveChunk удаляет чанк из сетки. Память возвращается в пул, когда
// счётчик ссылок чанка упадёт до нуля.
func (g *Grid) RemoveChunk(c *chunk.Chunk) {
	if cur, ok := g.chunks[c.Pos.Vec3]; !ok || cur != c {
		return
	}
	delete(g.chunks, c.Pos.Vec3)

	if gd := c.GridData; gd != nil {
		gd.RefCount--
		if gd.RefCount <= 0 {
			delete(g.gridData, gd.Col)
		}
	}

	g.disconnectNeighbors(c)

	for i, a := range g.active {
		if a == c {
			last := len(g.active) - 1
			g.active[i] = g.active[last]
			g.active[last] = nil
			g.active = g.active[:last]
			break
		}
	}
	metrics.ChunksActive.Dec()
	g.alloc.Evict(c)
}

// connectNeighbors симметрично и идемпотентно связывает чанк с соседями
func (g *Grid) connectNeighbors(c *chunk.Chunk) {
	for dir := 0; dir < 6; dir++ {
		n, ok := g.chunks[c.Pos.Neighbor(dir).Vec3]
		if !ok {
			continue
		}
		if c.Neighbors[dir] == chunk.NoID {
			c.Neighbors[dir] = n.ID
			c.NumNeighbors++
		}
		opp := chunk.Opposite(dir)
		if n.Neighbors[opp] == chunk.NoID {
			n.Neighbors[opp] = c.ID
			n.NumNeighbors++
		}
	}
}

// disconnectNeighbors разрывает связи в обе стороны
func (g *Grid) disconnectNeighbors(c *chunk.Chunk) {
	for dir := 0; dir < 6; dir++ {
		id := c.Neighbors[dir]
		if id == chunk.NoID {
			continue
		}
		if n := g.alloc.Get(id); n != nil {
			opp := chunk.Opposite(dir)
			if n.Neighbors[opp] == c.ID {
				n.Neighbors[opp] = chunk.NoID
				n.NumNeighbors--
			}
		}
		c.Neighbors[dir] = chunk.NoID
		c.NumNeighbors--
	}
}

// Chunk возвращает чанк по координате сетки
func (g *Grid) Chunk(pos vec.Vec3) *chunk.Chunk {
	return g.chunks[pos]
}

// ChunkAt возвращает чанк, содержащий мировую точку
func (g *Grid) ChunkAt(p mgl64.Vec3) *chunk.Chunk {
	v := vec.Vec3{X: int(math.Floor(p.X())), Y: int(math.Floor(p.Y())), Z: int(math.Floor(p.Z()))}
	return g.chunks[v.FloorDiv(chunk.Width)]
}

// GridData возвращает карту высот столбца
func (g *Grid) GridData(col vec.Vec2) *chunk.GridData {
	return g.gridData[col]
}

// ActiveChunks список активных чанков (отсортирован по убыванию расстояния после Update)
func (g *Grid) ActiveChunks() []*chunk.Chunk {
	return g.active
}

// Len количество чанков в сетке
func (g *Grid) Len() int {
	return len(g.chunks)
}

// UpdateDistances пересчитывает квадрат расстояния от камеры до центров чанков
func (g *Grid) UpdateDistances(camera mgl64.Vec3) {
	half := float64(chunk.Width) / 2
	for _, c := range g.active {
		o := c.Pos.WorldOrigin().ToMgl()
		center := o.Add(mgl64.Vec3{half, half, half})
		d := center.Sub(camera)
		c.Distance2 = d.Dot(d)
	}
}
