package mesher

import (
	"fmt"

	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Буфер прореженных данных: не больше 16 ячеек по оси плюс рамка
const (
	lodWidth = 18
	lodSize  = lodWidth * lodWidth * lodWidth
)

type lodBuffer struct {
	ids  [lodSize]uint16
	lamp [lodSize]uint16
	sun  [lodSize]uint8
}

// footprint диапазон исходных координат (в снимке с рамкой, -1..32) для грубой ячейки c
func footprint(c, level, dim int) (from, to int) {
	switch {
	case c < 0:
		return -1, -1
	case c >= dim:
		return chunk.Width, chunk.Width
	default:
		return c * level, c*level + level - 1
	}
}

// computeLOD прореживает снимок в level раз по каждой оси. Грубая ячейка получает
// самый верхний непустой блок своего объёма, свет берётся максимальный.
func (m *Mesher) computeLOD(task *RenderTask, level int) error {
	if level <= 1 || chunk.Width%level != 0 || chunk.Width/level > lodWidth-2 {
		return fmt.Errorf("%w: %d", ErrBadLOD, level)
	}
	dim := chunk.Width / level
	pw := dim + 2
	pl := pw * pw
	buf := &m.lod

	for cy := -1; cy <= dim; cy++ {
		y0, y1 := footprint(cy, level, dim)
		for cz := -1; cz <= dim; cz++ {
			z0, z1 := footprint(cz, level, dim)
			for cx := -1; cx <= dim; cx++ {
				x0, x1 := footprint(cx, level, dim)

				var id uint16
				var sun, r, g, b uint8
				for y := y1; y >= y0; y-- {
					for z := z0; z <= z1; z++ {
						for x := x0; x <= x1; x++ {
							i := PaddedIndex(x, y, z)
							if id == 0 && task.IDs[i] != 0 {
								id = task.IDs[i]
							}
							l := task.Lamp[i]
							r = max(r, voxel.LampRed(l))
							g = max(g, voxel.LampGreen(l))
							b = max(b, voxel.LampBlue(l))
							sun = max(sun, task.Sun[i])
						}
					}
				}
				di := (cy+1)*pl + (cz+1)*pw + (cx + 1)
				buf.ids[di] = id
				buf.lamp[di] = voxel.PackLamp(r, g, b)
				buf.sun[di] = sun
			}
		}
	}

	m.view = voxelView{
		ids:   buf.ids[:pl*pw],
		lamp:  buf.lamp[:pl*pw],
		sun:   buf.sun[:pl*pw],
		width: dim,
		pw:    pw,
		pl:    pl,
		scale: level,
	}
	return nil
}
