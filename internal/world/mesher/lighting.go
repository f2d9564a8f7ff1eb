package mesher

import (
	"math"

	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Кривая затухания света
const (
	LightMult   = 0.95
	LightOffset = -0.2

	occlusionFactor = 0.2
)

// smoothLight переводит накопленный свет соседних ячеек в яркость вершины.
// adj число непрозрачных соседей угла (0..3).
func smoothLight(acc, adj int) uint8 {
	v := 255 * (LightOffset + math.Pow(LightMult, chunk.MaxLight-float64(acc)/float64(4-adj)))
	return clampByte(v)
}

// flatLight яркость одной ячейки без усреднения
func flatLight(raw uint8) uint8 {
	return clampByte(255 * (LightOffset + math.Pow(LightMult, chunk.MaxLight-float64(raw))))
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func unpackLamp(v uint16) [3]uint8 {
	return [3]uint8{voxel.LampRed(v), voxel.LampGreen(v), voxel.LampBlue(v)}
}

// lightSamples освещение 26 соседей ячейки. Нумерация: нижний слой 0..8,
// средний 9..16 (без центра), верхний 17..25. Внутри слоя по z, затем по x.
// Непрозрачный сосед даёт лампу 0 и солнце -1.
type lightSamples struct {
	lamp [26][3]uint8
	sun  [26]int8
}

// Индексы соседей, через которые видна грань
const (
	sampleBottom = 4
	sampleBack   = 10
	sampleLeft   = 12
	sampleRight  = 13
	sampleFront  = 15
	sampleTop    = 21
)

// sampleOffsets смещения (dx, dy, dz) для каждого из 26 индексов
var sampleOffsets = func() [26][3]int {
	var out [26][3]int
	i := 0
	for _, dy := range []int{-1, 0, 1} {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				if dy == 0 && dz == 0 && dx == 0 {
					continue
				}
				out[i] = [3]int{dx, dy, dz}
				i++
			}
		}
	}
	return out
}()

// gather собирает освещение вокруг ячейки wc
func (m *Mesher) gather(s *lightSamples, wc int) {
	v := &m.view
	for i, o := range sampleOffsets {
		n := wc + o[0] + o[1]*v.pl + o[2]*v.pw
		if m.pack.Get(blockIDOf(v.ids[n])).Occlude != 0 {
			s.lamp[i] = [3]uint8{}
			s.sun[i] = -1
			continue
		}
		s.lamp[i] = unpackLamp(v.lamp[n])
		s.sun[i] = int8(v.sun[n])
	}
}

// setFaceSample записывает освещение соседа, через которого видна грань, без учёта перекрытия
func (m *Mesher) setFaceSample(s *lightSamples, idx, n int) {
	s.lamp[idx] = unpackLamp(m.view.lamp[n])
	s.sun[idx] = int8(m.view.sun[n])
}

// faceLighting таблица вершин грани: какие соседи затеняют угол и какие усредняются
type faceLighting struct {
	face    int
	center  int
	near    [4][3]int
	samples [4][4]int
}

// faceLightings в порядке обработки граней: +z, -z, +y, -y, +x, -x
var faceLightings = [6]faceLighting{
	{
		face: block.FaceFront, center: sampleFront,
		near:    [4][3]int{{23, 24, 14}, {6, 7, 14}, {7, 8, 16}, {24, 25, 16}},
		samples: [4][4]int{{23, 24, 14, 15}, {6, 7, 14, 15}, {7, 8, 15, 16}, {24, 25, 15, 16}},
	},
	{
		face: block.FaceBack, center: sampleBack,
		near:    [4][3]int{{18, 19, 11}, {1, 2, 11}, {0, 1, 9}, {17, 18, 9}},
		samples: [4][4]int{{18, 19, 11, 10}, {1, 2, 11, 10}, {0, 1, 9, 10}, {17, 18, 9, 10}},
	},
	{
		face: block.FaceTop, center: sampleTop,
		near:    [4][3]int{{17, 18, 20}, {20, 23, 24}, {22, 24, 25}, {18, 19, 22}},
		samples: [4][4]int{{17, 18, 20, 21}, {20, 21, 23, 24}, {21, 22, 24, 25}, {18, 19, 21, 22}},
	},
	{
		face: block.FaceBottom, center: sampleBottom,
		near:    [4][3]int{{1, 2, 5}, {5, 7, 8}, {3, 6, 7}, {0, 1, 3}},
		samples: [4][4]int{{1, 2, 4, 5}, {4, 5, 7, 8}, {3, 4, 6, 7}, {0, 1, 3, 4}},
	},
	{
		face: block.FaceRight, center: sampleRight,
		near:    [4][3]int{{25, 22, 16}, {5, 8, 16}, {2, 5, 11}, {19, 22, 11}},
		samples: [4][4]int{{25, 22, 13, 16}, {5, 8, 13, 16}, {2, 5, 11, 13}, {19, 22, 11, 13}},
	},
	{
		face: block.FaceLeft, center: sampleLeft,
		near:    [4][3]int{{17, 20, 9}, {0, 3, 9}, {3, 6, 14}, {20, 23, 14}},
		samples: [4][4]int{{17, 20, 9, 12}, {0, 3, 9, 12}, {3, 6, 14, 12}, {20, 23, 14, 12}},
	},
}

// vertexLight считает сглаженное солнце, лампу и затенение для 4 вершин грани
func (fl *faceLighting) vertexLight(s *lightSamples) (sun [4]uint8, lamp [4][3]uint8, ao [4]float32) {
	for k := 0; k < 4; k++ {
		adj := 0
		for _, n := range fl.near[k] {
			if s.sun[n] == -1 {
				adj++
			}
		}
		ao[k] = 1 - float32(adj)*occlusionFactor

		accSun := adj
		var accLamp [3]int
		for _, n := range fl.samples[k] {
			accSun += int(s.sun[n])
			for ch := 0; ch < 3; ch++ {
				accLamp[ch] += int(s.lamp[n][ch])
			}
		}
		sun[k] = smoothLight(accSun, adj)
		for ch := 0; ch < 3; ch++ {
			lamp[k][ch] = smoothLight(accLamp[ch]+adj, adj)
		}
	}
	return sun, lamp, ao
}
