package grid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

type recordingDispatcher struct {
	chunks []*chunk.Chunk
}

func (d *recordingDispatcher) DispatchGenerate(c *chunk.Chunk) {
	d.chunks = append(d.chunks, c)
}

type flatHeights struct{ calls int }

func (f *flatHeights) FillGridData(face int, gd *chunk.GridData) {
	f.calls++
	for i := range gd.Heights {
		gd.Heights[i].Height = 16
	}
}

func newTestGrid() (*Grid, *recordingDispatcher, *flatHeights, *chunk.Allocator) {
	alloc := chunk.NewAllocator()
	d := &recordingDispatcher{}
	h := &flatHeights{}
	return New(0, alloc, h, d, Options{}), d, h, alloc
}

func TestConnectIsSymmetricAndIdempotent(t *testing.T) {
	g, _, _, alloc := newTestGrid()
	a := alloc.New(chunk.Pos{Vec3: vec.Vec3{}})
	b := alloc.New(chunk.Pos{Vec3: vec.Vec3{X: 1}})
	g.AddChunk(a)
	g.AddChunk(b)

	assert.Equal(t, b.ID, a.Neighbors[chunk.Right])
	assert.Equal(t, a.ID, b.Neighbors[chunk.Left])
	assert.Equal(t, 1, a.NumNeighbors)
	assert.Equal(t, 1, b.NumNeighbors)

	g.connectNeighbors(a)
	g.connectNeighbors(b)
	assert.Equal(t, 1, a.NumNeighbors, "повторное связывание не меняет счётчик")
	assert.Equal(t, 1, b.NumNeighbors)

	g.RemoveChunk(b)
	assert.Equal(t, chunk.NoID, a.Neighbors[chunk.Right])
	assert.Equal(t, 0, a.NumNeighbors)
	assert.Nil(t, g.Chunk(vec.Vec3{X: 1}))
	assert.Len(t, g.ActiveChunks(), 1)
}

func TestGridDataSharedPerColumn(t *testing.T) {
	g, _, h, alloc := newTestGrid()
	lo := alloc.New(chunk.Pos{Vec3: vec.Vec3{Y: 0}})
	hi := alloc.New(chunk.Pos{Vec3: vec.Vec3{Y: 1}})
	g.AddChunk(lo)
	g.AddChunk(hi)

	require.NotNil(t, lo.GridData)
	assert.Same(t, lo.GridData, hi.GridData)
	assert.Equal(t, 2, lo.GridData.RefCount)
	assert.Equal(t, 1, h.calls, "карта высот столбца строится один раз")

	g.RemoveChunk(lo)
	assert.NotNil(t, g.GridData(vec.Vec2{}))
	g.RemoveChunk(hi)
	assert.Nil(t, g.GridData(vec.Vec2{}), "столбец удаляется вместе с последним чанком")
}

func TestQueryLifecycle(t *testing.T) {
	g, d, _, _ := newTestGrid()

	q1 := NewQuery(vec.Vec3{X: 2}, chunk.GenDone)
	q2 := NewQuery(vec.Vec3{X: 2}, chunk.GenDone)
	g.SubmitQuery(q1)
	g.SubmitQuery(q2)
	g.Update()

	require.Len(t, d.chunks, 1, "повторный запрос не запускает вторую генерацию")
	c := d.chunks[0]
	assert.Equal(t, int32(1), c.RefCount())
	assert.False(t, q1.IsFinished())
	assert.Nil(t, q1.Chunk())

	assert.True(t, g.OnGenFinished(c))
	assert.Equal(t, int32(0), c.RefCount())
	assert.Same(t, c, q1.Chunk())
	assert.Same(t, c, q2.Chunk())

	// Уже сгенерированный чанк отдаётся сразу
	q3 := NewQuery(vec.Vec3{X: 2}, chunk.GenTerrain)
	g.SubmitQuery(q3)
	g.Update()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q3.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Len(t, d.chunks, 1)
}

func TestRemoveWhileGenerating(t *testing.T) {
	g, d, _, alloc := newTestGrid()
	q := NewQuery(vec.Vec3{}, chunk.GenDone)
	g.SubmitQuery(q)
	g.Update()
	c := d.chunks[0]
	id := c.ID

	g.RemoveChunk(c)
	assert.NotNil(t, alloc.Get(id), "чанк с активной задачей не освобождается")

	assert.False(t, g.OnGenFinished(c))
	assert.Nil(t, alloc.Get(id))
	assert.True(t, q.IsFinished())
	assert.Nil(t, q.Chunk())
}

func TestActiveSortedByDistance(t *testing.T) {
	g, _, _, alloc := newTestGrid()
	for x := 0; x < 4; x++ {
		g.AddChunk(alloc.New(chunk.Pos{Vec3: vec.Vec3{X: x}}))
	}
	g.UpdateDistances(mgl64.Vec3{0, 0, 0})
	g.Update()

	active := g.ActiveChunks()
	for i := 1; i < len(active); i++ {
		assert.GreaterOrEqual(t, active[i-1].Distance2, active[i].Distance2)
	}
	assert.Equal(t, 0, active[len(active)-1].Pos.X, "ближайший чанк в конце списка")
	assert.Same(t, g.Chunk(vec.Vec3{X: 1}), g.ChunkAt(mgl64.Vec3{40, 3, 3}))
	assert.Nil(t, g.ChunkAt(mgl64.Vec3{-1, 0, 0}))
}

func TestQueryQueueConcurrentPush(t *testing.T) {
	qq := NewQueryQueue()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				qq.Push(NewQuery(vec.Vec3{X: i}, chunk.GenDone))
			}
		}()
	}
	wg.Wait()

	n := 0
	for qq.Pop() != nil {
		n++
	}
	assert.Equal(t, 800, n)
}
