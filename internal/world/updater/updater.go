// Package updater применяет одиночные правки блоков к живому чанку:
// ставит работу в очереди освещения и физики и переводит чанк и его
// соседей по границе в состояние перестройки меша.
//
// Все методы вызываются под World.ModifyLock.
package updater

import (
	"math/rand"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// ChunkSource разрешает ID соседей в чанки
type ChunkSource interface {
	Get(id chunk.ID) *chunk.Chunk
}

// BreakHandler получает события разрушения блока
type BreakHandler interface {
	// Explode вызывается для блока с ненулевой силой взрыва
	Explode(at vec.Vec3, id block.BlockID, power float32)
	// Break вызывается для остальных разрушенных блоков (частицы, звук)
	Break(at vec.Vec3, id block.BlockID)
}

type nopBreaks struct{}

func (nopBreaks) Explode(vec.Vec3, block.BlockID, float32) {}
func (nopBreaks) Break(vec.Vec3, block.BlockID)            {}

// Updater машина правок чанков
type Updater struct {
	pack   *block.Pack
	chunks ChunkSource
	breaks BreakHandler
	rng    *rand.Rand
	log    *logging.Logger

	perTick int
}

// Options параметры апдейтера
type Options struct {
	Breaks BreakHandler
	// Seed источника случайности для огня и травы
	Seed int64
	// RandomUpdates число ячеек за один вызов RandomBlockUpdates
	RandomUpdates int
	Logger        *logging.Logger
}

// DefaultRandomUpdates ячеек на чанк за тик
const DefaultRandomUpdates = 15

// New создает апдейтер
func New(pack *block.Pack, chunks ChunkSource, opts Options) *Updater {
	if opts.Breaks == nil {
		opts.Breaks = nopBreaks{}
	}
	if opts.RandomUpdates <= 0 {
		opts.RandomUpdates = DefaultRandomUpdates
	}
	return &Updater{
		pack:    pack,
		chunks:  chunks,
		breaks:  opts.Breaks,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		log:     opts.Logger,
		perTick: opts.RandomUpdates,
	}
}

// PlaceBlock ставит блок id в ячейку idx. NONE означает удаление.
func (u *Updater) PlaceBlock(c *chunk.Chunk, idx int, id block.BlockID) {
	if id == block.NONE {
		u.RemoveBlock(c, idx, false)
		return
	}
	b := u.pack.Get(id)

	if c.BlockID(idx) == block.NONE {
		c.NumBlocks++
	}
	c.SetBlockID(idx, id)

	if b.Spawner {
		c.SpawnerBlocks = append(c.SpawnerBlocks, uint16(idx))
	}

	if b.BlockLight {
		u.occludeLight(c, idx)
	} else if b.IsColorFiltering() {
		// свет будет заново подтянут от соседей через фильтр
		c.LampLightRemovalQueue = append(c.LampLightRemovalQueue, chunk.LampLightRemovalNode{
			BlockIndex: uint16(idx), OldLightColor: c.LampLight(idx),
		})
		c.SetLampLight(idx, 0)
	}
	u.emitLight(c, idx, b)

	u.AddBlockToUpdateList(c, idx)

	state := chunk.StateMesh
	if block.IsLiquid(id) {
		state = chunk.StateWaterMesh
	}
	c.ChangeState(state)
	u.updateNeighborStates(c, idx, state)

	metrics.BlockEdits.WithLabelValues("place").Inc()
}

// PlaceBlockFromLiquidPhysics упрощённая постановка для физики жидкостей:
// без фильтров, спавнеров и смены состояний
func (u *Updater) PlaceBlockFromLiquidPhysics(c *chunk.Chunk, idx int, id block.BlockID) {
	b := u.pack.Get(id)

	if c.BlockID(idx) == block.NONE {
		c.NumBlocks++
	}
	c.SetBlockID(idx, id)

	if b.BlockLight {
		u.occludeLight(c, idx)
	}
	u.emitLight(c, idx, b)

	u.AddBlockToUpdateList(c, idx)

	metrics.BlockEdits.WithLabelValues("liquid").Inc()
}

// RemoveBlock удаляет блок. При isBreak блок взрывается или рассыпается.
func (u *Updater) RemoveBlock(c *chunk.Chunk, idx int, isBreak bool) {
	id := c.BlockID(idx)
	b := u.pack.Get(id)
	if id == block.NONE {
		u.log.Warn("Блок %d чанка %d уже удалён", idx, c.ID)
	}

	if isBreak {
		at := worldPos(c, idx)
		if b.ExplosivePower > 0 {
			u.breaks.Explode(at, id, b.ExplosivePower)
		} else {
			u.breaks.Break(at, id)
		}
	}
	c.SetBlockID(idx, block.NONE)

	if b.BlockLight || b.IsLight {
		u.releaseLight(c, idx)
	}

	u.AddBlockToUpdateList(c, idx)
	c.NumBlocks = max(c.NumBlocks-1, 0)

	c.ChangeState(chunk.StateMesh)
	u.updateNeighborStates(c, idx, chunk.StateMesh)

	metrics.BlockEdits.WithLabelValues("remove").Inc()
}

// RemoveBlockFromLiquidPhysics упрощённое удаление для физики жидкостей
func (u *Updater) RemoveBlockFromLiquidPhysics(c *chunk.Chunk, idx int) {
	b := u.pack.Get(c.BlockID(idx))
	c.SetBlockID(idx, block.NONE)

	if b.BlockLight || b.IsLight {
		u.releaseLight(c, idx)
	}

	u.AddBlockToUpdateList(c, idx)
	c.NumBlocks = max(c.NumBlocks-1, 0)

	c.ChangeState(chunk.StateWaterMesh)

	metrics.BlockEdits.WithLabelValues("liquid").Inc()
}

// occludeLight гасит свет в ячейке, которую занял непрозрачный блок
func (u *Updater) occludeLight(c *chunk.Chunk, idx int) {
	if sun := c.SunLight(idx); sun != 0 {
		if sun == chunk.MaxLight {
			c.SunRemovalList = append(c.SunRemovalList, uint16(idx))
		} else {
			c.SunlightRemovalQueue = append(c.SunlightRemovalQueue, chunk.SunlightRemovalNode{
				BlockIndex: uint16(idx), OldLightVal: sun,
			})
		}
		c.SetSunLight(idx, 0)
	}
	if lamp := c.LampLight(idx); lamp != 0 {
		c.LampLightRemovalQueue = append(c.LampLightRemovalQueue, chunk.LampLightRemovalNode{
			BlockIndex: uint16(idx), OldLightColor: lamp,
		})
		c.SetLampLight(idx, 0)
	}
}

func (u *Updater) emitLight(c *chunk.Chunk, idx int, b *block.Block) {
	if !b.IsLight {
		return
	}
	c.SetLampLight(idx, b.LightColor)
	c.LampLightUpdateQueue = append(c.LampLightUpdateQueue, chunk.LampLightUpdateNode{
		BlockIndex: uint16(idx), LightColor: b.LightColor,
	})
}

// releaseLight освобождает ячейку: лампа подтягивается от соседей,
// солнце продлевается сверху или удаляется
func (u *Updater) releaseLight(c *chunk.Chunk, idx int) {
	c.LampLightRemovalQueue = append(c.LampLightRemovalQueue, chunk.LampLightRemovalNode{
		BlockIndex: uint16(idx), OldLightColor: c.LampLight(idx),
	})
	c.SetLampLight(idx, 0)

	_, y, _ := chunk.Coords(idx)
	var above uint8
	if y < chunk.Width-1 {
		above = c.SunLight(idx + chunk.Layer)
	} else if top := u.chunks.Get(c.Neighbors[chunk.Top]); top != nil && top.IsAccessible() {
		above = top.SunLight(idx + chunk.Layer - chunk.Size)
	}

	if above == chunk.MaxLight {
		c.SetSunLight(idx, chunk.MaxLight)
		c.SunExtendList = append(c.SunExtendList, uint16(idx))
		return
	}
	c.SunlightRemovalQueue = append(c.SunlightRemovalQueue, chunk.SunlightRemovalNode{
		BlockIndex: uint16(idx), OldLightVal: c.SunLight(idx),
	})
	c.SetSunLight(idx, 0)
}

// updateNeighborStates переводит соседей, граничащих с ячейкой, в состояние state
func (u *Updater) updateNeighborStates(c *chunk.Chunk, idx int, state chunk.State) {
	u.forEdgeNeighbors(c, idx, func(n *chunk.Chunk) {
		n.ChangeState(state)
	})
}

// forEdgeNeighbors вызывает fn для каждого загруженного соседа,
// с которым ячейка idx делит границу
func (u *Updater) forEdgeNeighbors(c *chunk.Chunk, idx int, fn func(n *chunk.Chunk)) {
	x, y, z := chunk.Coords(idx)
	visit := func(coord, lo, hi int) {
		dir := -1
		switch coord {
		case 0:
			dir = lo
		case chunk.Width - 1:
			dir = hi
		}
		if dir < 0 {
			return
		}
		if n := u.chunks.Get(c.Neighbors[dir]); n != nil {
			fn(n)
		}
	}
	visit(x, chunk.Left, chunk.Right)
	visit(y, chunk.Bottom, chunk.Top)
	visit(z, chunk.Back, chunk.Front)
}

// neighbor возвращает соседнюю в направлении dir ячейку, возможно в соседнем чанке.
// Если соседний чанк не загружен, owner == nil.
func (u *Updater) neighbor(c *chunk.Chunk, idx, dir int) (owner *chunk.Chunk, i int) {
	x, y, z := chunk.Coords(idx)
	inside := true
	switch dir {
	case chunk.Left:
		inside, i = x > 0, idx-1
		if !inside {
			i = idx + chunk.Width - 1
		}
	case chunk.Right:
		inside, i = x < chunk.Width-1, idx+1
		if !inside {
			i = idx - chunk.Width + 1
		}
	case chunk.Back:
		inside, i = z > 0, idx-chunk.Width
		if !inside {
			i = idx + chunk.Layer - chunk.Width
		}
	case chunk.Front:
		inside, i = z < chunk.Width-1, idx+chunk.Width
		if !inside {
			i = idx - chunk.Layer + chunk.Width
		}
	case chunk.Bottom:
		inside, i = y > 0, idx-chunk.Layer
		if !inside {
			i = idx + chunk.Size - chunk.Layer
		}
	case chunk.Top:
		inside, i = y < chunk.Width-1, idx+chunk.Layer
		if !inside {
			i = idx - chunk.Size + chunk.Layer
		}
	}
	if inside {
		return c, i
	}
	return u.chunks.Get(c.Neighbors[dir]), i
}

func worldPos(c *chunk.Chunk, idx int) vec.Vec3 {
	x, y, z := chunk.Coords(idx)
	return c.Pos.WorldOrigin().Add(vec.Vec3{X: x, Y: y, Z: z})
}
