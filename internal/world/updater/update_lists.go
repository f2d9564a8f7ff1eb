package updater

import (
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// pushUpdate добавляет ячейку в активный список обновлений её категории физики
func (u *Updater) pushUpdate(c *chunk.Chunk, idx int) {
	phys := int(u.pack.Get(c.BlockID(idx)).PhysicsProperty) - int(block.PhysStart)
	if phys < 0 {
		return
	}
	active := c.ActiveUpdateList[phys]
	c.BlockUpdateList[phys][active] = append(c.BlockUpdateList[phys][active], uint16(idx))
}

// accessibleNeighbor как neighbor, но ячейка соседнего чанка возвращается
// только если тот доступен
func (u *Updater) accessibleNeighbor(c *chunk.Chunk, idx, dir int) (*chunk.Chunk, int, bool) {
	owner, i := u.neighbor(c, idx, dir)
	if owner == nil || (owner != c && !owner.IsAccessible()) {
		return nil, 0, false
	}
	return owner, i, true
}

var updateOrder = [...]int{chunk.Left, chunk.Right, chunk.Back, chunk.Front, chunk.Bottom, chunk.Top}

// AddBlockToUpdateList ставит ячейку и её шесть соседей в списки физики.
// Граница с недоступным соседом обрывает обход.
func (u *Updater) AddBlockToUpdateList(c *chunk.Chunk, idx int) {
	u.pushUpdate(c, idx)
	for _, dir := range updateOrder {
		owner, i, ok := u.accessibleNeighbor(c, idx, dir)
		if !ok {
			return
		}
		u.pushUpdate(owner, i)
	}
}

// SnowAddBlockToUpdateList вариант для снега: только сама ячейка и вертикальные соседи
func (u *Updater) SnowAddBlockToUpdateList(c *chunk.Chunk, idx int) {
	u.pushUpdate(c, idx)
	for _, dir := range [...]int{chunk.Bottom, chunk.Top} {
		owner, i, ok := u.accessibleNeighbor(c, idx, dir)
		if !ok {
			return
		}
		u.pushUpdate(owner, i)
	}
}
