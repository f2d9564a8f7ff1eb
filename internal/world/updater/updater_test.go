package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

type breakEvent struct {
	at      vec.Vec3
	id      block.BlockID
	explode bool
}

type recordingBreaks struct {
	events []breakEvent
}

func (r *recordingBreaks) Explode(at vec.Vec3, id block.BlockID, power float32) {
	r.events = append(r.events, breakEvent{at: at, id: id, explode: true})
}

func (r *recordingBreaks) Break(at vec.Vec3, id block.BlockID) {
	r.events = append(r.events, breakEvent{at: at, id: id})
}

type fixture struct {
	pack   *block.Pack
	alloc  *chunk.Allocator
	breaks *recordingBreaks
	u      *Updater
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		pack:   block.DefaultPack(),
		alloc:  chunk.NewAllocator(),
		breaks: &recordingBreaks{},
	}
	opts.Breaks = f.breaks
	f.u = New(f.pack, f.alloc, opts)
	return f
}

// chunkAt создаёт доступный чанк в состоянии отрисовки
func (f *fixture) chunkAt(x, y, z int) *chunk.Chunk {
	c := f.alloc.New(chunk.Pos{Vec3: vec.Vec3{X: x, Y: y, Z: z}})
	c.GenLevel = chunk.GenDone
	c.NumNeighbors = 6
	c.SetState(chunk.StateDraw)
	return c
}

func link(a, b *chunk.Chunk, dir int) {
	a.Neighbors[dir] = b.ID
	b.Neighbors[chunk.Opposite(dir)] = a.ID
}

func orderPos(idx int) int {
	for i, v := range RandomUpdateOrder {
		if v == idx {
			return i
		}
	}
	return -1
}

func TestPlaceLightInAirChunk(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(16, 16, 16)

	f.u.PlaceBlock(c, idx, block.TORCH)

	torch := f.pack.Get(block.TORCH)
	require.Len(t, c.LampLightUpdateQueue, 1, "ровно один узел обновления лампы")
	assert.Equal(t, chunk.LampLightUpdateNode{BlockIndex: uint16(idx), LightColor: torch.LightColor}, c.LampLightUpdateQueue[0])
	assert.Equal(t, torch.LightColor, c.LampLight(idx))

	assert.Empty(t, c.SunlightRemovalQueue, "солнечные очереди не трогаются")
	assert.Empty(t, c.SunlightUpdateQueue)
	assert.Empty(t, c.SunRemovalList)
	assert.Empty(t, c.SunExtendList)
	assert.Empty(t, c.LampLightRemovalQueue)

	assert.Equal(t, 1, c.NumBlocks)
	assert.Equal(t, chunk.StateMesh, c.State)
	assert.True(t, c.Dirty)
}

func TestPlaceOpaqueBlockRemovesLight(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	full := chunk.Index(3, 10, 3)
	dim := chunk.Index(4, 10, 3)
	c.SetSunLight(full, chunk.MaxLight)
	c.SetSunLight(dim, 20)
	c.SetLampLight(dim, block.PackRGB5(5, 5, 5))

	f.u.PlaceBlock(c, full, block.STONE)
	f.u.PlaceBlock(c, dim, block.STONE)

	assert.Equal(t, []uint16{uint16(full)}, c.SunRemovalList, "полный солнечный свет уходит в список удаления")
	assert.Equal(t, []chunk.SunlightRemovalNode{{BlockIndex: uint16(dim), OldLightVal: 20}}, c.SunlightRemovalQueue)
	assert.Equal(t, []chunk.LampLightRemovalNode{{BlockIndex: uint16(dim), OldLightColor: block.PackRGB5(5, 5, 5)}}, c.LampLightRemovalQueue)
	assert.Zero(t, c.SunLight(full))
	assert.Zero(t, c.SunLight(dim))
	assert.Zero(t, c.LampLight(dim))
	assert.Equal(t, 2, c.NumBlocks)
}

func TestPlaceColorFilterPullsLamp(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(5, 5, 5)

	f.u.PlaceBlock(c, idx, block.ICE)

	require.Len(t, c.LampLightRemovalQueue, 1, "фильтр цвета заставляет пересчитать лампу")
	assert.Empty(t, c.SunRemovalList)
}

func TestPlaceLiquidSetsWaterMesh(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(5, 5, 5)

	f.u.PlaceBlock(c, idx, block.FULLWATER)

	assert.Equal(t, chunk.StateWaterMesh, c.State)
	assert.Equal(t, []uint16{uint16(idx)}, c.BlockUpdateList[0][0], "вода попадает в список жидкостей")
}

func TestPlaceSpawner(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(1, 2, 3)

	f.u.PlaceBlock(c, idx, block.MUSHROOM)
	assert.Equal(t, []uint16{uint16(idx)}, c.SpawnerBlocks)
}

func TestPlaceNoneRemoves(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(7, 7, 7)

	f.u.PlaceBlock(c, idx, block.STONE)
	f.u.PlaceBlock(c, idx, block.NONE)

	assert.Equal(t, block.NONE, c.BlockID(idx))
	assert.Equal(t, 0, c.NumBlocks)
}

func TestRemoveBlockExtendsSunFromAbove(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(1, 0, 0)
	idx := chunk.Index(2, 10, 4)
	c.SetSunLight(idx+chunk.Layer, chunk.MaxLight)
	f.u.PlaceBlock(c, idx, block.STONE)

	f.u.RemoveBlock(c, idx, true)

	assert.Equal(t, []uint16{uint16(idx)}, c.SunExtendList)
	assert.Equal(t, uint8(chunk.MaxLight), c.SunLight(idx))
	assert.Len(t, c.LampLightRemovalQueue, 1)
	require.Len(t, f.breaks.events, 1)
	assert.Equal(t, breakEvent{at: vec.Vec3{X: 34, Y: 10, Z: 4}, id: block.STONE}, f.breaks.events[0])
	assert.Equal(t, 0, c.NumBlocks)
}

func TestRemoveExplosiveBlock(t *testing.T) {
	f := newFixture(Options{})
	tnt := &block.Block{ID: 100, Name: "tnt", Occlude: block.OccludeFull, MeshType: block.MeshBlock,
		BlockLight: true, ColorFilter: block.White, ExplosivePower: 4}
	require.NoError(t, f.pack.Register(tnt))
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(1, 1, 1)
	f.u.PlaceBlock(c, idx, tnt.ID)

	f.u.RemoveBlock(c, idx, true)

	require.Len(t, f.breaks.events, 1)
	assert.True(t, f.breaks.events[0].explode, "взрывчатка взрывается вместо рассыпания")
}

func TestRemoveBlockAtTopEdge(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(3, chunk.Width-1, 3)
	f.u.PlaceBlock(c, idx, block.STONE)

	// без верхнего соседа свет удаляется
	f.u.RemoveBlock(c, idx, false)
	assert.Empty(t, c.SunExtendList)
	assert.Len(t, c.SunlightRemovalQueue, 1)

	top := f.chunkAt(0, 1, 0)
	link(c, top, chunk.Top)
	top.SetSunLight(chunk.Index(3, 0, 3), chunk.MaxLight)
	f.u.PlaceBlock(c, idx, block.STONE)
	f.u.RemoveBlock(c, idx, false)
	assert.Equal(t, []uint16{uint16(idx)}, c.SunExtendList, "солнце продлевается из верхнего чанка")
}

func TestEditPropagatesToBoundaryNeighbors(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	left := f.chunkAt(-1, 0, 0)
	front := f.chunkAt(0, 0, 1)
	link(c, left, chunk.Left)
	link(c, front, chunk.Front)

	f.u.PlaceBlock(c, chunk.Index(5, 5, 5), block.STONE)
	assert.Equal(t, chunk.StateDraw, left.State, "правка внутри чанка не трогает соседей")

	f.u.PlaceBlock(c, chunk.Index(0, 5, chunk.Width-1), block.STONE)
	assert.Equal(t, chunk.StateMesh, left.State)
	assert.Equal(t, chunk.StateMesh, front.State)
}

func TestLiquidPhysicsVariants(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(4, 4, 4)

	f.u.PlaceBlockFromLiquidPhysics(c, idx, block.LOWWATER+49)
	assert.Equal(t, chunk.StateDraw, c.State, "упрощённая постановка не меняет состояние")
	assert.Equal(t, 1, c.NumBlocks)
	assert.True(t, c.Dirty)

	f.u.RemoveBlockFromLiquidPhysics(c, idx)
	assert.Equal(t, chunk.StateWaterMesh, c.State)
	assert.Equal(t, block.NONE, c.BlockID(idx))
	assert.Equal(t, 0, c.NumBlocks)
}

func TestAddBlockToUpdateList(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	a := chunk.Index(10, 10, 10)

	f.u.PlaceBlock(c, a, block.SAND)
	f.u.PlaceBlock(c, a+1, block.SAND)

	powder := int(block.PhysPowder - block.PhysStart)
	assert.Equal(t, []uint16{uint16(a), uint16(a + 1), uint16(a)}, c.BlockUpdateList[powder][0])
}

func TestAddBlockToUpdateListStopsAtMissingNeighbor(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	edge := chunk.Index(0, 10, 10)

	f.u.PlaceBlock(c, edge+1, block.SAND)
	f.u.PlaceBlock(c, edge, block.SAND)

	powder := int(block.PhysPowder - block.PhysStart)
	assert.Equal(t, []uint16{uint16(edge + 1), uint16(edge)}, c.BlockUpdateList[powder][0],
		"без левого соседа правый сосед не добавляется")
}

func TestSnowAddBlockToUpdateList(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(6, 5, 6)
	c.SetBlockID(idx, block.SNOW)
	c.SetBlockID(idx+chunk.Layer, block.SNOW)
	c.SetBlockID(idx+1, block.SNOW)

	f.u.SnowAddBlockToUpdateList(c, idx)

	snow := int(block.PhysSnow - block.PhysStart)
	assert.Equal(t, []uint16{uint16(idx), uint16(idx + chunk.Layer)}, c.BlockUpdateList[snow][0])
}

func TestBurnProbability(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(8, 8, 8)
	for _, d := range []int{1, -1, chunk.Width, -chunk.Width, chunk.Layer, -chunk.Layer} {
		c.SetBlockID(idx+d, block.LEAVES)
	}
	assert.InDelta(t, 0.6, f.u.BurnProbability(c, idx), 1e-6)

	other := chunk.Index(20, 20, 20)
	c.SetBlockID(other+1, block.WOOD)
	assert.InDelta(t, 0.05, f.u.BurnProbability(c, other), 1e-6)
	assert.Zero(t, f.u.BurnProbability(c, chunk.Index(2, 2, 2)))
}

func TestCheckBurnBlock(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(8, 8, 8)
	for _, d := range []int{1, -1, chunk.Width, -chunk.Width, chunk.Layer, -chunk.Layer} {
		c.SetBlockID(idx+d, block.LEAVES)
	}

	// занятая ячейка не загорается
	f.u.CheckBurnBlock(c, idx+1, topMult)
	assert.Equal(t, block.LEAVES, c.BlockID(idx+1))

	f.u.CheckBurnBlock(c, idx, topMult)
	assert.Equal(t, block.FIRE, c.BlockID(idx), "вероятность выше 1 поджигает всегда")
}

func TestUpdateFireBlock(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(8, 8, 8)
	f.u.PlaceBlock(c, idx, block.FIRE)
	c.SetBlockID(idx-chunk.Layer, block.LEAVES)
	c.SetBlockID(idx-1, block.DIRTGRASS)
	c.SetBlockID(idx+1, block.STONE)
	c.Dirty = false

	f.u.UpdateFireBlock(c, idx)

	assert.Equal(t, block.NONE, c.BlockID(idx-chunk.Layer), "листва сгорает")
	assert.Equal(t, block.DIRT, c.BlockID(idx-1), "трава превращается в землю")
	assert.True(t, c.Dirty)
	assert.Equal(t, block.STONE, c.BlockID(idx+1))
	assert.Equal(t, block.NONE, c.BlockID(idx), "огонь гаснет")
	require.Len(t, f.breaks.events, 1)
	assert.Equal(t, block.LEAVES, f.breaks.events[0].id)
}

func TestFireAcrossChunkBorder(t *testing.T) {
	f := newFixture(Options{})
	c := f.chunkAt(0, 0, 0)
	right := f.chunkAt(1, 0, 0)
	link(c, right, chunk.Right)
	idx := chunk.Index(chunk.Width-1, 4, 4)
	c.SetBlockID(idx, block.FIRE)
	right.SetBlockID(chunk.Index(0, 4, 4), block.WOOD)

	f.u.BurnAdjacentBlocks(c, idx)

	assert.Equal(t, block.NONE, right.BlockID(chunk.Index(0, 4, 4)))
	assert.Equal(t, chunk.StateMesh, right.State)
}

func TestRandomUpdatesEvaporate(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(9, 9, 9)
	c.SetBlockID(idx-chunk.Layer, block.STONE)
	c.SetBlockID(idx, block.LOWWATER+2)
	c.NumBlocks = 2
	c.Dirty = false

	c.BlockUpdateIndex = orderPos(idx)
	f.u.RandomBlockUpdates(c)

	assert.Equal(t, block.NONE, c.BlockID(idx), "мелкая лужа испаряется")
	assert.Equal(t, 1, c.NumBlocks)
	assert.Equal(t, chunk.StateWaterMesh, c.State)
	assert.True(t, c.Dirty, "испарение попадает в сохранение")
}

func TestRandomUpdatesKeepDeepWater(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(9, 9, 9)
	c.SetBlockID(idx-chunk.Layer, block.STONE)
	c.SetBlockID(idx, block.LOWWATER+5)

	c.BlockUpdateIndex = orderPos(idx)
	f.u.RandomBlockUpdates(c)

	assert.Equal(t, block.LOWWATER+5, c.BlockID(idx))
	assert.Equal(t, chunk.StateDraw, c.State)
}

func TestRandomUpdatesGrassDecays(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(3, 3, 3)
	c.SetBlockID(idx, block.DIRTGRASS)
	c.SetBlockID(idx+chunk.Layer, block.STONE)
	c.Dirty = false

	c.BlockUpdateIndex = orderPos(idx)
	f.u.RandomBlockUpdates(c)

	assert.Equal(t, block.DIRT, c.BlockID(idx))
	assert.Equal(t, chunk.StateMesh, c.State)
	assert.True(t, c.Dirty)
}

func TestRandomUpdatesGrassUnderLeavesSurvives(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(3, 3, 3)
	c.SetBlockID(idx, block.DIRTGRASS)
	c.SetBlockID(idx+chunk.Layer, block.LEAVES)

	c.BlockUpdateIndex = orderPos(idx)
	f.u.RandomBlockUpdates(c)

	assert.Equal(t, block.DIRTGRASS, c.BlockID(idx))
}

func TestRandomUpdatesGrassSpreads(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1, Seed: 7})
	c := f.chunkAt(0, 0, 0)
	idx := chunk.Index(12, 3, 12)
	c.SetBlockID(idx, block.DIRT)
	c.SetBlockID(idx+chunk.Width, block.DIRTGRASS)
	c.Dirty = false

	pos := orderPos(idx)
	for i := 0; i < 300 && c.BlockID(idx) == block.DIRT; i++ {
		c.BlockUpdateIndex = pos
		f.u.RandomBlockUpdates(c)
	}
	assert.Equal(t, block.DIRTGRASS, c.BlockID(idx), "земля рядом с травой зарастает")
	assert.True(t, c.Dirty)
}

func TestRandomUpdatesSkipInaccessible(t *testing.T) {
	f := newFixture(Options{RandomUpdates: 1})
	c := f.chunkAt(0, 0, 0)
	c.NumNeighbors = 5
	idx := chunk.Index(3, 3, 3)
	c.SetBlockID(idx, block.DIRTGRASS)
	c.SetBlockID(idx+chunk.Layer, block.STONE)

	c.BlockUpdateIndex = orderPos(idx)
	f.u.RandomBlockUpdates(c)

	assert.Equal(t, block.DIRTGRASS, c.BlockID(idx))
	assert.Equal(t, orderPos(idx), c.BlockUpdateIndex, "недоступный чанк не продвигает обход")
}

func TestRandomUpdateOrderIsPermutation(t *testing.T) {
	seen := make([]bool, chunk.Size)
	for _, v := range RandomUpdateOrder {
		require.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, RandomUpdateOrder, chunk.Size)
}
