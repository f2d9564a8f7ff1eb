package mesher

import (
	"math/rand"

	"github.com/annel0/voxel-core/internal/world/block"
)

// crossFloraQuads два диагональных квада, 2 варианта
var crossFloraQuads = [2][2][4][3]uint8{
	{
		{{0, 7, 0}, {0, 0, 0}, {7, 0, 7}, {7, 7, 7}},
		{{0, 7, 7}, {0, 0, 7}, {7, 0, 0}, {7, 7, 0}},
	},
	{
		{{1, 7, 1}, {1, 0, 1}, {6, 0, 6}, {6, 7, 6}},
		{{1, 7, 6}, {1, 0, 6}, {6, 0, 1}, {6, 7, 1}},
	},
}

// floraQuads три плоскости: две поперёк z и одна поперёк x, 4 варианта смещения
var floraQuads = func() [4][3][4][3]uint8 {
	var out [4][3][4][3]uint8
	for r := 0; r < 4; r++ {
		a := uint8(1 + r%2)
		b := uint8(5 + r/2)
		c := uint8(3 + r%2)
		out[r][0] = [4][3]uint8{{0, 7, a}, {0, 0, a}, {7, 0, a}, {7, 7, a}}
		out[r][1] = [4][3]uint8{{0, 7, b}, {0, 0, b}, {7, 0, b}, {7, 7, b}}
		out[r][2] = [4][3]uint8{{c, 7, 7}, {c, 0, 7}, {c, 0, 0}, {c, 7, 0}}
	}
	return out
}()

// addFlora добавляет растение в вырезанную геометрию. Листва геометрии не даёт.
func (m *Mesher) addFlora(b *block.Block, wc, x, y, z int) {
	if b.MeshType == block.MeshLeaves {
		return
	}
	v := &m.view
	m.wc, m.btype = wc, v.ids[wc]
	wp := m.worldPos(x, y, z)
	m.texCtx.X, m.texCtx.Y, m.texCtx.Z = wp.X, wp.Y, wp.Z
	m.texCtx.Face = block.FaceRight

	ft := &b.Textures[block.FaceRight]
	tex := ft.Base.Resolve(&m.texCtx)
	overlay := ft.Overlay.Resolve(&m.texCtx)

	col := m.column(x, z)
	color := climateTint(b.Color, m.task.Temperature[col], m.task.Rainfall[col])
	overlayColor := climateTint(b.OverlayColor, m.task.Temperature[col], m.task.Rainfall[col])

	sun := flatLight(v.sun[wc])
	lamp := unpackLamp(v.lamp[wc])
	for ch := range lamp {
		lamp[ch] = flatLight(lamp[ch])
	}

	rng := rand.New(rand.NewSource(block.PositionSeed(x, z)))
	pos := [3]int{x, y, z}
	switch b.MeshType {
	case block.MeshCrossFlora:
		r := rng.Intn(2)
		for q := range crossFloraQuads[r] {
			m.cutout = appendFlatFace(m.cutout, &crossFloraQuads[r][q], block.FaceRight, pos, tex, overlay,
				color, overlayColor, sun, lamp)
		}
	case block.MeshFlora:
		r := rng.Intn(4)
		for q := range floraQuads[r] {
			m.cutout = appendFlatFace(m.cutout, &floraQuads[r][q], block.FaceRight, pos, tex, overlay,
				color, overlayColor, sun, lamp)
		}
	}
}
