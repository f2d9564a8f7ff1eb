package generator

import (
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// faceOffset разносит грани куба-планеты по области шума
const faceOffset = 1 << 20

// newNoise создает фрактальный шум Перлина: alpha = 1/persistence, beta = 2
func newNoise(p NoiseParams, seed int64) *perlin.Perlin {
	alpha := 2.0
	if p.Persistence > 0 {
		alpha = 1 / p.Persistence
	}
	octaves := int32(p.Octaves)
	if octaves <= 0 {
		octaves = 1
	}
	return perlin.NewPerlin(alpha, 2, octaves, seed)
}

// amplitudeSum нормирующий множитель суммы октав
func amplitudeSum(p NoiseParams) float64 {
	sum, amp := 0.0, 1.0
	pers := p.Persistence
	if pers <= 0 {
		pers = 0.5
	}
	for i := 0; i < max(p.Octaves, 1); i++ {
		sum += amp
		amp *= pers
	}
	return sum
}

// sample2D значение шума в диапазоне [Low, High]
func sample2D(n *perlin.Perlin, p NoiseParams, x, z float64) float64 {
	v := n.Noise2D(x*p.Frequency, z*p.Frequency) / amplitudeSum(p)
	v = math.Max(-1, math.Min(1, v*1.6))
	return p.Low + (v+1)/2*(p.High-p.Low)
}

// FillGridData строит карту высот столбца: высоту, климат, биом и слои песка/снега
func (g *Generator) FillGridData(face int, gd *chunk.GridData) {
	var raw [chunk.Width + 2][chunk.Width + 2]int32
	ox := float64(gd.Col.X*chunk.Width + face*faceOffset)
	oz := float64(gd.Col.Y * chunk.Width)

	for z := -1; z <= chunk.Width; z++ {
		for x := -1; x <= chunk.Width; x++ {
			h := sample2D(g.terrain, g.planet.Terrain, ox+float64(x), oz+float64(z))
			raw[z+1][x+1] = int32(math.Floor(h))
		}
	}

	for z := 0; z < chunk.Width; z++ {
		for x := 0; x < chunk.Width; x++ {
			hd := gd.At(x, z)
			wx, wz := ox+float64(x), oz+float64(z)
			h := raw[z+1][x+1]

			temp := sample2D(g.temperature, g.planet.Temperature, wx, wz)
			rain := sample2D(g.rainfall, g.planet.Rainfall, wx+5000, wz-5000)
			// С высотой холоднее
			if h > 0 {
				temp -= float64(h) * 0.8
			}
			hd.Height = h
			hd.Temperature = clampU8(temp)
			hd.Rainfall = clampU8(rain)
			hd.Biome = uint8(g.planet.BiomeFor(hd.Temperature, hd.Rainfall))
			biome := &g.planet.Biomes[hd.Biome]
			hd.Surface = biome.Surface

			slope := abs32(raw[z+1][x+2]-raw[z+1][x]) + abs32(raw[z+2][x+1]-raw[z][x+1])
			hd.Flags = 0
			if slope > 6 {
				hd.Flags |= chunk.FlagTooSteep
			}

			hd.SandDepth = 0
			hd.SnowDepth = 0
			if h >= -2 && h <= 1 && hd.Temperature >= FreezeTemp {
				hd.SandDepth = uint8(2 - max(int(h), 0))
				hd.Surface = block.SAND
			}
			if hd.Temperature < FreezeTemp && h > 0 {
				hd.SnowDepth = uint8(min((FreezeTemp-int(hd.Temperature))/8+1, 8))
			}
		}
	}
}

// caveDensity плотность пещер в узлах сетки 9x5x9 (шаг 4, 8, 4)
type caveDensity [9][5][9]float64

// calculateCaveDensity заполняет узлы гребневым шумом 1-|n|
func calculateCaveDensity(n *perlin.Perlin, origin [3]int, offset float64, freq float64, d *caveDensity) {
	for i := 0; i < 9; i++ {
		for j := 0; j < 5; j++ {
			for k := 0; k < 9; k++ {
				x := float64(origin[0]+i*4) + offset
				y := float64(origin[1]+j*8) + offset
				z := float64(origin[2]+k*4) + offset
				d[i][j][k] = 1 - math.Abs(n.Noise3D(x*freq, y*freq, z*freq))
			}
		}
	}
}

// trilinear интерполяция плотности для вокселя (x, y, z) чанка
func (d *caveDensity) trilinear(x, y, z int) float64 {
	i, j, k := x/4, y/8, z/4
	fx := float64(x%4) / 4
	fy := float64(y%8) / 8
	fz := float64(z%4) / 4

	c000 := d[i][j][k]
	c100 := d[i+1][j][k]
	c010 := d[i][j+1][k]
	c110 := d[i+1][j+1][k]
	c001 := d[i][j][k+1]
	c101 := d[i+1][j][k+1]
	c011 := d[i][j+1][k+1]
	c111 := d[i+1][j+1][k+1]

	c00 := c000*(1-fx) + c100*fx
	c10 := c010*(1-fx) + c110*fx
	c01 := c001*(1-fx) + c101*fx
	c11 := c011*(1-fx) + c111*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
