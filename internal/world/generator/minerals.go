package generator

import (
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// mineralChance шанс появления руды на относительной глубине minh (в процентах)
func mineralChance(md *MineralData, minh int) float64 {
	switch {
	case minh > md.CenterHeight && minh <= md.StartHeight:
		return (float64(md.StartHeight-minh)/float64(md.StartHeight-md.CenterHeight))*(md.CenterChance-md.StartChance) + md.StartChance
	case minh <= md.CenterHeight && minh >= md.EndHeight:
		return (float64(minh-md.EndHeight)/float64(md.CenterHeight-md.EndHeight))*(md.CenterChance-md.EndChance) + md.EndChance
	default:
		return 0
	}
}

// loadMinerals раскладывает жилы руд. Глубина берётся по центру столбца.
func (g *Generator) loadMinerals(c *chunk.Chunk, gd *chunk.GridData) {
	origin := c.Pos.WorldOrigin()
	minh := origin.Y - int(gd.Heights[chunk.Layer/2].Height)

	for i := range g.planet.Minerals {
		md := &g.planet.Minerals[i]
		chance := mineralChance(md, minh)
		d := (PseudoRand(origin.X+origin.Y-i*i*11, origin.Z+8*i-2*origin.Y) + 1.0) * 50.0

		switch {
		case d <= chance-10.0:
			g.makeMineralVein(c, md, 32)
			g.makeMineralVein(c, md, 6433)
			g.makeMineralVein(c, md, 9189)
		case d <= chance-5.0:
			g.makeMineralVein(c, md, 53)
			g.makeMineralVein(c, md, 2663)
		case d <= chance:
			g.makeMineralVein(c, md, 882)
		}
	}
}

// makeMineralVein случайное блуждание, заменяющее только каменные блоки
func (g *Generator) makeMineralVein(c *chunk.Chunk, md *MineralData, seed int) {
	o := c.Pos.WorldOrigin()
	bt := int(md.Block)

	idx := int((PseudoRand(o.X-seed*seed+3*o.Y+bt*2, o.Z+seed*4-o.Y+bt-44) + 1.0) / 2.0 * chunk.Size)
	if idx >= chunk.Size {
		idx = chunk.Size - 1
	}
	size := int((PseudoRand(o.X+2*o.Y-bt*4+seed, o.Z+o.Y-bt+44)+1.0)/2.0*float64(md.MaxSize-md.MinSize)) + md.MinSize

	for i := 0; i < size; i++ {
		if g.pack.Get(c.BlockID(idx)).Material == block.MaterialStone {
			c.Blocks.Set(idx, uint16(md.Block))
		}
		x, y, z := chunk.Coords(idx)

		r := int((PseudoRand(o.X*idx+idx*i+bt+seed*2, idx*idx-o.Z+6-o.Y*bt-i*3-seed)+1.0)*2.5 + 0.5)
		switch {
		case r == 0 && y > 0:
			idx -= chunk.Layer
		case r == 1 && x > 0:
			idx--
		case r == 2 && x < chunk.Width-1:
			idx++
		case r == 3 && z > 0:
			idx -= chunk.Width
		case r == 4 && z < chunk.Width-1:
			idx += chunk.Width
		case y < chunk.Width-1:
			idx += chunk.Layer
		default:
			idx -= chunk.Layer
		}
	}
}
