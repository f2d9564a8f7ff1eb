// Package generator заполняет чанки по карте высот: слои породы, вода,
// лёд, пещеры, руды и отложенные списки растений и деревьев.
package generator

import (
	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Параметры двух полей плотности пещер
const (
	caveFreq = 0.0004

	cave1Offset      = 0
	cave1Octaves     = 5
	cave1Persistence = 0.6

	cave2Offset      = 8000
	cave2Octaves     = 4
	cave2Persistence = 0.67
)

// Generator генератор рельефа. Безопасен для одновременного использования
// из нескольких воркеров: после создания только читается.
type Generator struct {
	pack   *block.Pack
	planet *PlanetGenData

	terrain     *perlin.Perlin
	temperature *perlin.Perlin
	rainfall    *perlin.Perlin
	cave1       *perlin.Perlin
	cave2       *perlin.Perlin
}

// New создает генератор
func New(pack *block.Pack, planet *PlanetGenData) *Generator {
	seed := planet.Seed
	return &Generator{
		pack:        pack,
		planet:      planet,
		terrain:     newNoise(planet.Terrain, seed),
		temperature: newNoise(planet.Temperature, seed+1),
		rainfall:    newNoise(planet.Rainfall, seed+2),
		cave1:       perlin.NewPerlin(1/cave1Persistence, 2, cave1Octaves, seed+3),
		cave2:       perlin.NewPerlin(1/cave2Persistence, 2, cave2Octaves, seed+4),
	}
}

// Planet параметры планеты
func (g *Generator) Planet() *PlanetGenData { return g.planet }

// runBuilder накапливает отсортированные интервалы
type runBuilder[T voxel.Value] struct {
	runs []voxel.Run[T]
}

func (b *runBuilder[T]) push(c int, v T) {
	if n := len(b.runs); n > 0 && b.runs[n-1].Data == v {
		b.runs[n-1].Length++
		return
	}
	b.runs = append(b.runs, voxel.Run[T]{Start: uint32(c), Length: 1, Data: v})
}

func (b *runBuilder[T]) fill(c, length int, v T) {
	if n := len(b.runs); n > 0 && b.runs[n-1].Data == v {
		b.runs[n-1].Length += uint32(length)
		return
	}
	b.runs = append(b.runs, voxel.Run[T]{Start: uint32(c), Length: uint32(length), Data: v})
}

// GenerateChunk заполняет чанк по карте высот gd. Возвращает false, если
// в чанке нет ни одного блока.
func (g *Generator) GenerateChunk(c *chunk.Chunk, gd *chunk.GridData) bool {
	var (
		blocks runBuilder[uint16]
		lamp   runBuilder[uint16]
		sun    runBuilder[uint8]

		dens1, dens2 caveDensity
		needsCave    = 3
	)

	origin := c.Pos.WorldOrigin()
	gx, gy, gz := origin.X, origin.Y, origin.Z
	caveOrigin := [3]int{gx + c.Pos.Face*faceOffset, gy, gz}

	c.NumBlocks = 0
	c.SunExtendList = c.SunExtendList[:0]
	c.TreesToLoad = c.TreesToLoad[:0]
	c.PlantsToLoad = c.PlantsToLoad[:0]
	c.SpawnerBlocks = c.SpawnerBlocks[:0]

	cidx := 0
	maph := 0
	h := 0
	for y := 0; y < chunk.Width; y++ {
		pnum := c.NumBlocks
		for z := 0; z < chunk.Width; z++ {
			for x := 0; x < chunk.Width; x, cidx = x+1, cidx+1 {
				hd := &gd.Heights[cidx%chunk.Layer]
				biome := &g.planet.Biomes[hd.Biome]

				var data block.BlockID
				var sunlight uint8

				snowDepth := int(hd.SnowDepth)
				sandDepth := int(hd.SandDepth)
				maph = int(hd.Height)
				temperature := int(hd.Temperature)
				tooSteep := hd.Flags&chunk.FlagTooSteep != 0

				h = y + gy
				nh := (maph - 1) - h

				switch {
				case h <= maph-1 && (!tooSteep || maph-h > biome.LooseSoilDepth-1):
					if h-(maph-1) > -SurfaceDepth {
						data = biome.SurfaceLayers[nh]
					} else {
						data = block.STONE
					}
					c.NumBlocks++
				case h == maph && !tooSteep:
					data = hd.Surface
					c.NumBlocks++
					if sandDepth == 0 && snowDepth < 7 && (h > 0 || data != block.SAND) {
						g.tryEnqueueTree(c, biome, x+gx, z+gz, cidx)
					}
				case sandDepth != 0 && h == maph+sandDepth:
					data = block.SAND
					c.NumBlocks++
					if snowDepth < 7 && h > 0 {
						g.tryEnqueueTree(c, biome, x+gx, z+gz, cidx)
					}
				case sandDepth != 0 && h-maph <= sandDepth:
					data = block.SAND
					c.NumBlocks++
				case snowDepth != 0 && h-maph <= sandDepth+snowDepth:
					data = block.SNOW
					c.NumBlocks++
				case h < 0:
					if temperature < h+FreezeTemp {
						data = block.ICE
					} else {
						data = block.FULLWATER
					}
					c.NumBlocks++
				case h == 0 && maph < h:
					if temperature < FreezeTemp {
						data = block.ICE
					} else {
						data = block.FULLWATER - 60
					}
					c.NumBlocks++
				case h == maph+1:
					if h > 0 && len(biome.Flora) > 0 {
						if plant := g.plantType(x+gx, z+gz, biome); plant != block.NONE {
							c.PlantsToLoad = append(c.PlantsToLoad, chunk.PlantData{Index: cidx, Block: plant})
						}
					}
					sunlight = chunk.MaxLight
					data = block.NONE
					c.SunExtendList = append(c.SunExtendList, uint16(cidx))
				case maph < 0 && temperature < FreezeTemp && h < FreezeTemp-temperature:
					data = block.ICE
					c.NumBlocks++
				default:
					sunlight = chunk.MaxLight
					data = block.NONE
					if h == 1 {
						c.SunExtendList = append(c.SunExtendList, uint16(cidx))
					}
				}

				// Пещеры
				nh = h - (maph + snowDepth + sandDepth)
				if maph < 0 {
					nh += 6 // слой породы под водой, чтобы не было водяных стен
				}
				if g.planet.Caves && data != block.NONE && data < block.LOWWATER && nh <= 1 {
					if needsCave == 3 {
						calculateCaveDensity(g.cave1, caveOrigin, cave1Offset, caveFreq, &dens1)
						needsCave = 2
					}
					ti := dens1.trilinear(x, y, z)
					if ti > 0.905 && ti < 0.925 {
						if needsCave == 2 {
							calculateCaveDensity(g.cave2, caveOrigin, cave2Offset, caveFreq, &dens2)
							needsCave = 1
						}
						tj := dens2.trilinear(x, y, z)
						if tj > 0.9 && tj < 0.941 {
							if temperature < FreezeTemp && (ti < 0.908 || ti > 0.922 || tj < 0.903 || tj > 0.938) {
								data = block.ICE
							} else {
								data = block.NONE
								c.NumBlocks--
							}
						}
					}
				}

				if g.pack.Get(data).Spawner {
					c.SpawnerBlocks = append(c.SpawnerBlocks, uint16(cidx))
				}

				blocks.push(cidx, uint16(data))
				lamp.push(cidx, 0)
				sun.push(cidx, sunlight)
			}
		}

		// Пустой слой над поверхностью: остаток чанка заполняется воздухом под солнцем
		if pnum == c.NumBlocks && maph-h < 0 {
			rest := chunk.Size - cidx
			if rest > 0 {
				blocks.fill(cidx, rest, 0)
				lamp.fill(cidx, rest, 0)
				sun.fill(cidx, rest, chunk.MaxLight)
			}
			break
		}
	}

	// Интервалы построены по порядку и покрывают чанк, ошибки быть не может
	if err := c.Blocks.InitFromSortedRuns(blocks.runs); err != nil {
		panic(err)
	}
	if err := c.Lamp.InitFromSortedRuns(lamp.runs); err != nil {
		panic(err)
	}
	if err := c.Sun.InitFromSortedRuns(sun.runs); err != nil {
		panic(err)
	}

	if c.NumBlocks > 0 {
		g.loadMinerals(c, gd)
	}
	c.CheckEdgeBlocks()
	return c.NumBlocks != 0
}
