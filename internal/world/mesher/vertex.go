package mesher

import "github.com/annel0/voxel-core/internal/world/block"

// BlockVertex вершина непрозрачной, прозрачной или вырезанной геометрии.
// Позиция хранится в седьмых долях вокселя.
type BlockVertex struct {
	Position     [3]uint8
	Tex          [2]uint8 // повтор текстуры, базовое значение texBase
	TexAtlas     uint8
	TexIndex     uint8
	OverlayAtlas uint8
	OverlayIndex uint8
	Color        [3]uint8
	OverlayColor [3]uint8
	Lamp         [3]uint8
	Sun          uint8
	Face         uint8
	Merge        int8 // -1 поглощён соседом, 0 не сливается, 1 можно сливать
}

// LiquidVertex вершина поверхности жидкости
type LiquidVertex struct {
	Position    [3]float32
	Tex         [2]uint8
	TextureUnit uint8
	Color       [4]uint8 // RGB и прозрачность
	Light       [2]uint8 // лампа, солнце
}

// texBase середина диапазона координат повтора текстуры
const texBase = 128

// cubeVertices вершины граней куба, по 4 на грань в порядке
// front(+z), right(+x), top(+y), left(-x), bottom(-y), back(-z)
var cubeVertices = [6][4][3]uint8{
	{{0, 7, 7}, {0, 0, 7}, {7, 0, 7}, {7, 7, 7}},
	{{7, 7, 7}, {7, 0, 7}, {7, 0, 0}, {7, 7, 0}},
	{{0, 7, 0}, {0, 7, 7}, {7, 7, 7}, {7, 7, 0}},
	{{0, 7, 0}, {0, 0, 0}, {0, 0, 7}, {0, 7, 7}},
	{{7, 0, 0}, {7, 0, 7}, {0, 0, 7}, {0, 0, 0}},
	{{7, 7, 0}, {7, 0, 0}, {0, 0, 0}, {0, 7, 0}},
}

// Номера граней в таблице cubeVertices
const (
	cubeFront = iota
	cubeRight
	cubeTop
	cubeLeft
	cubeBottom
	cubeBack
)

// cubeSlot переводит грань блока в строку cubeVertices
var cubeSlot = [6]int{
	block.FaceLeft:   cubeLeft,
	block.FaceRight:  cubeRight,
	block.FaceBottom: cubeBottom,
	block.FaceTop:    cubeTop,
	block.FaceBack:   cubeBack,
	block.FaceFront:  cubeFront,
}

var texCoords = [4][2]uint8{
	{texBase, texBase + 1},
	{texBase, texBase},
	{texBase + 1, texBase},
	{texBase + 1, texBase + 1},
}

// CompareVertices проверяет совпадение всех атрибутов, кроме позиции
func CompareVertices(a, b *BlockVertex) bool {
	return a.Color == b.Color && a.Sun == b.Sun && a.Lamp == b.Lamp &&
		a.OverlayColor == b.OverlayColor &&
		a.TexAtlas == b.TexAtlas && a.TexIndex == b.TexIndex &&
		a.OverlayAtlas == b.OverlayAtlas && a.OverlayIndex == b.OverlayIndex
}

// CompareVerticesLight проверяет совпадение освещения и цвета
func CompareVerticesLight(a, b *BlockVertex) bool {
	return a.Sun == b.Sun && a.Lamp == b.Lamp && a.Color == b.Color
}

func splitTexture(idx int) (atlas, index uint8) {
	return uint8(idx / 256), uint8(idx % 256)
}

// appendCubeFace добавляет 4 вершины грани куба для вокселя pos
func appendCubeFace(dst []BlockVertex, face int, pos [3]int, tex, overlay int,
	color, overlayColor [3]uint8, ao [4]float32) []BlockVertex {
	slot := cubeSlot[face]
	ta, ti := splitTexture(tex)
	oa, oi := splitTexture(overlay)
	for k := 0; k < 4; k++ {
		cv := cubeVertices[slot][k]
		v := BlockVertex{
			Position: [3]uint8{
				uint8(pos[0]*7) + cv[0],
				uint8(pos[1]*7) + cv[1],
				uint8(pos[2]*7) + cv[2],
			},
			Tex:          texCoords[k],
			TexAtlas:     ta,
			TexIndex:     ti,
			OverlayAtlas: oa,
			OverlayIndex: oi,
			Color:        shade(color, ao[k]),
			OverlayColor: shade(overlayColor, ao[k]),
			Face:         uint8(face),
		}
		if k == 0 {
			v.Merge = 1
		}
		dst = append(dst, v)
	}
	return dst
}

// appendFlatFace добавляет грань без сглаженного освещения (прозрачные грани и флора)
func appendFlatFace(dst []BlockVertex, quad *[4][3]uint8, face int, pos [3]int, tex, overlay int,
	color, overlayColor [3]uint8, sun uint8, lamp [3]uint8) []BlockVertex {
	ta, ti := splitTexture(tex)
	oa, oi := splitTexture(overlay)
	for k := 0; k < 4; k++ {
		dst = append(dst, BlockVertex{
			Position: [3]uint8{
				uint8(pos[0]*7) + quad[k][0],
				uint8(pos[1]*7) + quad[k][1],
				uint8(pos[2]*7) + quad[k][2],
			},
			Tex:          texCoords[k],
			TexAtlas:     ta,
			TexIndex:     ti,
			OverlayAtlas: oa,
			OverlayIndex: oi,
			Color:        color,
			OverlayColor: overlayColor,
			Sun:          sun,
			Lamp:         lamp,
			Face:         uint8(face),
		})
	}
	return dst
}

func shade(c [3]uint8, ao float32) [3]uint8 {
	return [3]uint8{
		uint8(float32(c[0]) * ao),
		uint8(float32(c[1]) * ao),
		uint8(float32(c[2]) * ao),
	}
}
