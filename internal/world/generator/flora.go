package generator

import (
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// plantType выбирает растение для столбца (x, z) или NONE
func (g *Generator) plantType(x, z int, biome *Biome) block.BlockID {
	for i, f := range biome.Flora {
		r := (PseudoRand(x*(i+3)+z, z*(i+7)-x*13) + 1) / 2
		if r < f.Chance {
			return f.Block
		}
	}
	return block.NONE
}

// tryEnqueueTree ставит дерево в очередь, если столбец выпал по шансу
func (g *Generator) tryEnqueueTree(c *chunk.Chunk, biome *Biome, x, z, idx int) {
	for k, ti := range biome.Trees {
		t := &g.planet.Trees[ti]
		r := (PseudoRand(x*7+k*31, z*11-k*17) + 1) / 2
		if r < t.Chance {
			c.TreesToLoad = append(c.TreesToLoad, chunk.TreeData{Index: idx, Type: ti})
			return
		}
	}
}

// PlaceFlora высаживает отложенные растения и деревья. Деревья обрезаются
// границей чанка. Вызывается до того, как чанк станет виден соседям.
func (g *Generator) PlaceFlora(c *chunk.Chunk) int {
	placed := 0
	set := func(idx int, id block.BlockID, airOnly bool) {
		old := c.BlockID(idx)
		if old != block.NONE && (airOnly || !g.pack.Get(old).WaterBreak) {
			return
		}
		c.Blocks.Set(idx, uint16(id))
		if old == block.NONE {
			c.NumBlocks++
		}
		if g.pack.Get(id).BlockLight {
			c.Sun.Set(idx, 0)
		}
		placed++
	}

	for _, p := range c.PlantsToLoad {
		x, y, z := chunk.Coords(p.Index)
		if y == 0 {
			continue
		}
		below := g.pack.Get(c.BlockID(chunk.Index(x, y-1, z)))
		if below.Material != block.MaterialSoil || !below.Collide {
			continue
		}
		set(p.Index, p.Block, true)
	}

	for _, tr := range c.TreesToLoad {
		t := &g.planet.Trees[tr.Type]
		x, y, z := chunk.Coords(tr.Index)
		top := y + t.Height
		for ty := y + 1; ty <= top && ty < chunk.Width; ty++ {
			set(chunk.Index(x, ty, z), t.Trunk, false)
		}
		for ly := top - 1; ly <= top+1; ly++ {
			if ly <= y || ly >= chunk.Width {
				continue
			}
			for dz := -t.Radius; dz <= t.Radius; dz++ {
				for dx := -t.Radius; dx <= t.Radius; dx++ {
					lx, lz := x+dx, z+dz
					if lx < 0 || lz < 0 || lx >= chunk.Width || lz >= chunk.Width {
						continue
					}
					if dx*dx+dz*dz > t.Radius*t.Radius+1 {
						continue
					}
					set(chunk.Index(lx, ly, lz), t.Leaves, true)
				}
			}
		}
	}

	c.PlantsToLoad = c.PlantsToLoad[:0]
	c.TreesToLoad = c.TreesToLoad[:0]
	return placed
}
