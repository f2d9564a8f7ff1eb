package chunk

import (
	"testing"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCoords(t *testing.T) {
	for _, p := range [][3]int{{0, 0, 0}, {31, 0, 0}, {0, 31, 0}, {0, 0, 31}, {5, 17, 29}} {
		i := Index(p[0], p[1], p[2])
		x, y, z := Coords(i)
		assert.Equal(t, p, [3]int{x, y, z})
	}
	assert.Equal(t, Size-1, Index(31, 31, 31))
}

func TestChangeStatePriority(t *testing.T) {
	c := newChunk()
	c.SetState(StateDraw)
	c.ChangeState(StateWaterMesh)
	assert.Equal(t, StateWaterMesh, c.State)
	c.ChangeState(StateMesh)
	assert.Equal(t, StateMesh, c.State)
	c.ChangeState(StateWaterMesh)
	assert.Equal(t, StateMesh, c.State, "WATERMESH не должен затирать MESH")
}

func TestEditsSwitchToArray(t *testing.T) {
	c := newChunk()
	for i := 0; i < ArrayEditThreshold; i++ {
		c.SetBlockID(i*3, block.STONE)
	}
	assert.Equal(t, voxel.Array, c.Blocks.State())
	assert.Equal(t, block.STONE, c.BlockID(3))

	c.Compact()
	assert.Equal(t, voxel.Interval, c.Blocks.State())
	assert.Equal(t, block.STONE, c.BlockID(3))
	assert.Equal(t, block.NONE, c.BlockID(4))
}

func TestEditsMarkDirty(t *testing.T) {
	c := newChunk()
	assert.False(t, c.Dirty)
	c.SetBlockID(7, block.DIRT)
	assert.True(t, c.Dirty, "правка блока")

	c.Dirty = false
	c.SetSunLight(7, 3)
	assert.True(t, c.Dirty, "правка солнечного света")

	c.Dirty = false
	c.SetLampLight(7, 1)
	assert.True(t, c.Dirty, "правка лампы")
}

func TestEndTickCompactsQuietChunk(t *testing.T) {
	c := newChunk()
	for i := 0; i < ArrayEditThreshold; i++ {
		c.SetBlockID(i*3, block.STONE)
	}
	require.Equal(t, voxel.Array, c.Blocks.State())

	c.EndTick()
	assert.Equal(t, voxel.Array, c.Blocks.State(), "в тике были правки")
	assert.Zero(t, c.EditsThisTick)

	c.EndTick()
	assert.Equal(t, voxel.Interval, c.Blocks.State(), "тихий тик возвращает интервалы")
	assert.Equal(t, voxel.Interval, c.Sun.State())
	assert.Equal(t, block.STONE, c.BlockID(3))
}

func TestAllocatorRefCount(t *testing.T) {
	a := NewAllocator()
	c := a.New(Pos{Vec3: vec.Vec3{X: 1}})
	id := c.ID
	require.Same(t, c, a.Get(id))

	c.AddRef()
	c.AddRef()
	assert.False(t, a.Evict(c), "чанк со ссылками не освобождается")
	assert.NotNil(t, a.Get(id))

	assert.False(t, a.Release(c))
	assert.NotNil(t, a.Get(id))
	assert.True(t, a.Release(c), "последняя ссылка возвращает чанк в пул")
	assert.Nil(t, a.Get(id))

	live, free := a.Stats()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, free)

	d := a.New(Pos{})
	assert.Same(t, c, d, "чанк берётся из пула")
	assert.NotEqual(t, id, d.ID, "переиспользованный чанк получает новый ID")
	assert.Equal(t, uint32(2), d.Epoch)
}

func TestCheckEdgeBlocks(t *testing.T) {
	c := newChunk()
	for x := 0; x < Width; x++ {
		for z := 0; z < Width; z++ {
			c.Blocks.Set(Index(x, 0, z), uint16(block.STONE))
		}
	}
	c.CheckEdgeBlocks()
	assert.True(t, c.EdgeBlocks[Bottom])
	assert.False(t, c.EdgeBlocks[Top])
	assert.False(t, c.EdgeBlocks[Left])
}
