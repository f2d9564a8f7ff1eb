package mesher

import (
	"github.com/annel0/voxel-core/internal/world/block"
)

const (
	liquidMinAlpha = 75
	liquidMaxAlpha = 175
)

// liquidLevel уровень жидкости соседа той же физики, иначе 0
func (m *Mesher) liquidLevel(self *block.Block, n int) int {
	id := m.view.ids[n]
	if id == 0 {
		return 0
	}
	nb := m.pack.Get(blockIDOf(id))
	if nb.PhysicsProperty == self.PhysicsProperty {
		return nb.WaterMeshLevel
	}
	return 0
}

// cornerHeight высота угла поверхности: усреднение с соседями по двум сторонам и по диагонали
func (m *Mesher) cornerHeight(self *block.Block, height float32, a, b, diag int) float32 {
	div, tot := 0, 0
	if a != 0 {
		tot += a
		div++
	}
	if b != 0 {
		tot += b
		div++
	}
	if div == 0 {
		return height
	}
	if lvl := m.liquidLevel(self, diag); lvl != 0 {
		tot += lvl
		div++
	}
	return (height + float32(tot)/block.MaxLiquidLevel) / float32(div+1)
}

// liquidFaceOpen грань жидкости видна, если сосед другой физики и не перекрывает её
func (m *Mesher) liquidFaceOpen(self *block.Block, n int) bool {
	nb := m.pack.Get(blockIDOf(m.view.ids[n]))
	return nb.PhysicsProperty != self.PhysicsProperty && nb.Occlude == block.OccludeNone
}

// addLiquid добавляет поверхность жидкости вокселя (x, y, z)
func (m *Mesher) addLiquid(wc, x, y, z int) {
	v := &m.view
	b := m.pack.Get(blockIDOf(v.ids[wc]))
	level := float32(b.WaterMeshLevel) / block.MaxLiquidLevel

	var faces [6]bool
	falling := float32(0)

	belowID := v.ids[wc-v.pl]
	below := m.pack.Get(blockIDOf(belowID))
	if belowID == 0 || below.WaterBreak ||
		(below.PhysicsProperty == b.PhysicsProperty && below.WaterMeshLevel != block.MaxLiquidLevel) {
		faces = [6]bool{true, true, true, true, true, true}
		falling = 1
	} else {
		faces[block.FaceLeft] = m.liquidFaceOpen(b, wc-1)
		faces[block.FaceRight] = m.liquidFaceOpen(b, wc+1)
		faces[block.FaceBack] = m.liquidFaceOpen(b, wc-v.pw)
		faces[block.FaceFront] = m.liquidFaceOpen(b, wc+v.pw)
		faces[block.FaceBottom] = m.liquidFaceOpen(b, wc-v.pl)
	}

	left := m.liquidLevel(b, wc-1)
	right := m.liquidLevel(b, wc+1)
	back := m.liquidLevel(b, wc-v.pw)
	front := m.liquidLevel(b, wc+v.pw)
	bottom := m.liquidLevel(b, wc-v.pl)

	// углы: [x>0][z>0]
	var h [2][2]float32
	h[0][0] = m.cornerHeight(b, level, left, back, wc-1-v.pw)
	h[1][0] = m.cornerHeight(b, level, right, back, wc+1-v.pw)
	h[1][1] = m.cornerHeight(b, level, right, front, wc+1+v.pw)
	h[0][1] = m.cornerHeight(b, level, left, front, wc-1+v.pw)

	if level == 1 && h[0][0] == 1 && h[1][0] == 1 && h[1][1] == 1 && h[0][1] == 1 {
		faces[block.FaceTop] = m.liquidFaceOpen(b, wc+v.pl)
	} else {
		faces[block.FaceTop] = true
	}

	var alpha [2][2]uint8
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if bottom == block.MaxLiquidLevel {
				alpha[i][j] = liquidMaxAlpha
			} else {
				alpha[i][j] = uint8(h[i][j]*(liquidMaxAlpha-liquidMinAlpha) + liquidMinAlpha)
			}
		}
	}

	col := m.column(x, z)
	color := liquidColor(b.Color, m.task.Depth[col], m.task.Temperature[col])
	light := [2]uint8{lampBrightness(v.lamp[wc]), flatLight(v.sun[wc])}
	uOff := uint8(x * 7)
	vOff := uint8(224 - z*7)

	for _, f := range [6]int{block.FaceBottom, block.FaceFront, block.FaceTop, block.FaceBack, block.FaceRight, block.FaceLeft} {
		if !faces[f] {
			continue
		}
		for _, cv := range cubeVertices[cubeSlot[f]] {
			cx, cz := cv[0]/7, cv[2]/7
			py := float32(y) - falling
			if cv[1] != 0 {
				py = float32(y) + h[cx][cz]
			}
			m.water = append(m.water, LiquidVertex{
				Position: [3]float32{float32(x) + float32(cx), py, float32(z) + float32(cz)},
				Tex:      [2]uint8{uOff, vOff},
				Color:    [4]uint8{color[0], color[1], color[2], alpha[cx][cz]},
				Light:    light,
			})
		}
	}
}

// lampBrightness яркость самого сильного канала лампы
func lampBrightness(v uint16) uint8 {
	l := unpackLamp(v)
	return flatLight(max(l[0], l[1], l[2]))
}

// liquidColor цвет жидкости темнеет с глубиной и зеленеет в тепле
func liquidColor(base [3]uint8, depth, temperature uint8) [3]uint8 {
	k := 1 - float32(depth)/510
	warm := float32(temperature) / 255
	return [3]uint8{
		uint8(float32(base[0]) * k),
		uint8(float32(base[1]) * k * (0.85 + 0.15*warm)),
		uint8(float32(base[2]) * k),
	}
}
