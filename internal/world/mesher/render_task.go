package mesher

import (
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Размеры массива с рамкой в один воксель со всех сторон
const (
	PaddedWidth = chunk.Width + 2
	PaddedLayer = PaddedWidth * PaddedWidth
	PaddedSize  = PaddedLayer * PaddedWidth
)

// PaddedIndex индекс в массиве с рамкой для локальных координат чанка (-1..32)
func PaddedIndex(x, y, z int) int {
	return (y+1)*PaddedLayer + (z+1)*PaddedWidth + (x + 1)
}

// TaskKind вид задачи мешинга
type TaskKind uint8

const (
	TaskDefault TaskKind = iota // полный меш
	TaskLiquid                  // только жидкость
)

func (k TaskKind) String() string {
	if k == TaskLiquid {
		return "liquid"
	}
	return "default"
}

// ChunkSource выдаёт чанк по ID. Реализуется chunk.Allocator.
type ChunkSource interface {
	Get(id chunk.ID) *chunk.Chunk
}

// RenderTask снимок чанка и одного слоя соседей. Мешер читает только его,
// поэтому построение не требует блокировок.
type RenderTask struct {
	ChunkID chunk.ID
	Epoch   uint32
	Pos     chunk.Pos
	Kind    TaskKind
	Level   int // уровень детализации, 0 и 1 означают полный

	IDs  [PaddedSize]uint16
	Lamp [PaddedSize]uint16
	Sun  [PaddedSize]uint8

	Temperature [chunk.Layer]uint8
	Rainfall    [chunk.Layer]uint8
	Depth       [chunk.Layer]uint8

	Liquids []int32 // индексы ячеек жидкости в массиве с рамкой
}

// NewRenderTask копирует данные чанка и его 26 соседей. Отсутствующие соседи
// дают воздух без света. Вызывается владельцем мира, пока соседи не меняются.
func NewRenderTask(c *chunk.Chunk, src ChunkSource, kind TaskKind) *RenderTask {
	t := &RenderTask{
		ChunkID: c.ID,
		Epoch:   c.Epoch,
		Pos:     c.Pos,
		Kind:    kind,
	}
	t.fillCenter(c)
	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if n := walkNeighbor(c, src, dx, dy, dz); n != nil {
					t.fillBorder(n, dx, dy, dz)
				}
			}
		}
	}
	if gd := c.GridData; gd != nil {
		for i := range gd.Heights {
			h := &gd.Heights[i]
			t.Temperature[i] = h.Temperature
			t.Rainfall[i] = h.Rainfall
			t.Depth[i] = depthBelowSea(h.Height)
		}
	}
	return t
}

func (t *RenderTask) fillCenter(c *chunk.Chunk) {
	ids := c.Blocks.ToArray(nil)
	lamp := c.Lamp.ToArray(nil)
	sun := c.Sun.ToArray(nil)
	for y := 0; y < chunk.Width; y++ {
		for z := 0; z < chunk.Width; z++ {
			src := chunk.Index(0, y, z)
			dst := PaddedIndex(0, y, z)
			copy(t.IDs[dst:dst+chunk.Width], ids[src:src+chunk.Width])
			copy(t.Lamp[dst:dst+chunk.Width], lamp[src:src+chunk.Width])
			copy(t.Sun[dst:dst+chunk.Width], sun[src:src+chunk.Width])
			for x := 0; x < chunk.Width; x++ {
				if block.IsLiquid(block.BlockID(ids[src+x])) {
					t.Liquids = append(t.Liquids, int32(dst+x))
				}
			}
		}
	}
}

// axisRange диапазон координат соседа, попадающий в рамку, и соответствующая координата в снимке
func axisRange(d int) (from, to, dst int) {
	switch d {
	case -1:
		return chunk.Width - 1, chunk.Width - 1, -1
	case 1:
		return 0, 0, chunk.Width
	default:
		return 0, chunk.Width - 1, 0
	}
}

func (t *RenderTask) fillBorder(n *chunk.Chunk, dx, dy, dz int) {
	x0, x1, xd := axisRange(dx)
	y0, y1, yd := axisRange(dy)
	z0, z1, zd := axisRange(dz)
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				src := chunk.Index(x, y, z)
				dst := PaddedIndex(xd+x-x0, yd+y-y0, zd+z-z0)
				t.IDs[dst] = uint16(n.BlockID(src))
				t.Lamp[dst] = n.LampLight(src)
				t.Sun[dst] = n.SunLight(src)
			}
		}
	}
}

// walkNeighbor находит диагонального соседа, проходя по связям вдоль осей
func walkNeighbor(c *chunk.Chunk, src ChunkSource, dx, dy, dz int) *chunk.Chunk {
	cur := c
	step := func(d, neg, pos int) {
		if cur == nil || d == 0 {
			return
		}
		dir := pos
		if d < 0 {
			dir = neg
		}
		id := cur.Neighbors[dir]
		if id == chunk.NoID {
			cur = nil
			return
		}
		cur = src.Get(id)
	}
	step(dx, chunk.Left, chunk.Right)
	step(dy, chunk.Bottom, chunk.Top)
	step(dz, chunk.Back, chunk.Front)
	return cur
}

func depthBelowSea(height int32) uint8 {
	if height >= 0 {
		return 0
	}
	if height < -255 {
		return 255
	}
	return uint8(-height)
}
