package updater

import (
	"math/rand"

	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// RandomUpdateOrder фиксированная перестановка индексов чанка.
// Чанк обходит её по кругу, начиная с BlockUpdateIndex.
var RandomUpdateOrder = rand.New(rand.NewSource(0x5EED)).Perm(chunk.Size)

// evaporateLevels мелкая вода над сушей испаряется
const evaporateLevels = 5

// RandomBlockUpdates обрабатывает следующие perTick ячеек из RandomUpdateOrder:
// испарение луж, огонь, рост и увядание травы
func (u *Updater) RandomBlockUpdates(c *chunk.Chunk) {
	if !c.IsAccessible() {
		return
	}

	for n := 0; n < u.perTick; n++ {
		idx := RandomUpdateOrder[c.BlockUpdateIndex]
		c.BlockUpdateIndex++
		if c.BlockUpdateIndex == chunk.Size {
			c.BlockUpdateIndex = 0
		}

		state, changed := u.randomUpdate(c, idx)
		if !changed {
			continue
		}
		metrics.BlockEdits.WithLabelValues("random").Inc()
		c.ChangeState(state)
		u.forEdgeNeighbors(c, idx, func(nb *chunk.Chunk) {
			if nb.IsAccessible() {
				nb.ChangeState(state)
			}
		})
	}
}

func (u *Updater) randomUpdate(c *chunk.Chunk, idx int) (chunk.State, bool) {
	id := c.BlockID(idx)
	switch {
	case id >= block.LOWWATER && id < block.LOWWATER+evaporateLevels:
		owner, i := u.neighbor(c, idx, chunk.Bottom)
		if owner == nil || owner.BlockID(i) >= block.LOWWATER {
			return 0, false
		}
		c.SetBlockID(idx, block.NONE)
		c.NumBlocks = max(c.NumBlocks-1, 0)
		u.AddBlockToUpdateList(c, idx)
		return chunk.StateWaterMesh, true

	case id == block.FIRE:
		u.UpdateFireBlock(c, idx)
		return chunk.StateMesh, true

	case id == block.DIRTGRASS:
		owner, i := u.neighbor(c, idx, chunk.Top)
		if owner == nil {
			return 0, false
		}
		above := owner.BlockID(i)
		if (u.pack.Get(above).Collide && above != block.LEAVES) || above >= block.LOWWATER {
			c.SetBlockID(idx, block.DIRT)
			return chunk.StateMesh, true
		}

	case id == block.DIRT:
		if u.rng.Intn(10) != 0 {
			return 0, false
		}
		owner, i := u.neighbor(c, idx, chunk.Top)
		if owner == nil || owner.BlockID(i) != block.NONE {
			return 0, false
		}
		for _, dir := range [...]int{chunk.Left, chunk.Right, chunk.Front, chunk.Back} {
			if nb, j := u.neighbor(c, idx, dir); nb != nil && nb.BlockID(j) == block.DIRTGRASS {
				c.SetBlockID(idx, block.DIRTGRASS)
				return chunk.StateMesh, true
			}
		}
	}
	return 0, false
}
