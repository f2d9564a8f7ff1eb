// Package mesher строит треугольные меши чанков: отсечение скрытых граней,
// жадное слияние квадов, сглаженное освещение и затенение углов.
// Каждый рабочий поток владеет своим Mesher.
package mesher

import (
	"errors"
	"time"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

var (
	// ErrMeshInFlight предыдущий результат мешера ещё не освобождён
	ErrMeshInFlight = errors.New("предыдущий меш ещё не освобождён")
	// ErrBadLOD уровень детализации не делит ширину чанка
	ErrBadLOD = errors.New("некорректный уровень детализации")
)

// RenderInfo смещения и размеры (в индексах) граней внутри общего буфера
type RenderInfo struct {
	IndexSize int

	PyOff, PySize int
	NyOff, NySize int
	PxOff, PxSize int
	NxOff, NxSize int
	PzOff, PzSize int
	NzOff, NzSize int

	TransIndexSize  int
	CutoutIndexSize int
	WaterIndexSize  int

	HighestX, LowestX int
	HighestY, LowestY int
	HighestZ, LowestZ int
}

// MeshData результат мешинга одного чанка
type MeshData struct {
	ChunkID chunk.ID
	Epoch   uint32
	Pos     chunk.Pos
	Kind    TaskKind

	Vertices       []BlockVertex // непрозрачные грани: py, nx, px, nz, pz, ny
	TransVertices  []BlockVertex
	CutoutVertices []BlockVertex
	WaterVertices  []LiquidVertex

	// TransQuadCenters центры прозрачных квадов в половинах вокселя, для сортировки
	TransQuadCenters [][3]int8

	Info RenderInfo

	owner *Mesher
}

// Release возвращает мешер в пул готовых к работе. Повторный вызов ничего не делает.
func (d *MeshData) Release() {
	if d == nil || d.owner == nil {
		return
	}
	if d.owner.data == d {
		d.owner.data = nil
	}
	d.owner = nil
}

// Empty сообщает, что меш не содержит ни одной вершины
func (d *MeshData) Empty() bool {
	return len(d.Vertices) == 0 && len(d.TransVertices) == 0 &&
		len(d.CutoutVertices) == 0 && len(d.WaterVertices) == 0
}

// voxelView массив с рамкой, по которому идёт мешинг: снимок чанка или его LOD
type voxelView struct {
	ids   []uint16
	lamp  []uint16
	sun   []uint8
	width int
	pw    int
	pl    int
	scale int
}

func (v *voxelView) index(x, y, z int) int {
	return (y+1)*v.pl + (z+1)*v.pw + (x + 1)
}

// rowMerge параметры слияния соседних по x квадов грани
type rowMerge struct {
	enabled bool
	extend  [2]int // вершины, сдвигаемые на +x
	delta   int8   // изменение Tex[0]
}

var rowMerges = [6]rowMerge{
	block.FaceFront:  {enabled: true, extend: [2]int{2, 3}, delta: 1},
	block.FaceTop:    {enabled: true, extend: [2]int{2, 3}, delta: 1},
	block.FaceBack:   {enabled: true, extend: [2]int{0, 1}, delta: -1},
	block.FaceBottom: {enabled: true, extend: [2]int{0, 1}, delta: -1},
}

// Mesher строитель мешей. Не потокобезопасен.
type Mesher struct {
	pack *block.Pack
	log  *logging.Logger

	data *MeshData
	task *RenderTask
	view voxelView

	// грани текущего слоя и итоговые грани
	layer [6][]BlockVertex
	final [6][]BlockVertex

	// двойной буфер квадов предыдущего слоя для слияния вверх
	prev    [6][2][]int
	curPrev [6]int
	quads   []int

	// слияние вдоль x внутри строки
	canMerge [6]bool
	prevQuad [6]int
	pbtype   uint16

	trans      []BlockVertex
	cutout     []BlockVertex
	water      []LiquidVertex
	transQuads [][3]int8

	lod lodBuffer

	// состояние текущего вокселя для выбора вариантов текстуры
	wc    int
	btype uint16
	texCtx block.TextureContext
}

// New создаёт мешер для набора блоков
func New(pack *block.Pack, log *logging.Logger) *Mesher {
	m := &Mesher{pack: pack, log: log}
	m.texCtx.Same = m.sameAt
	return m
}

// Busy сообщает, что результат предыдущего вызова ещё не освобождён
func (m *Mesher) Busy() bool { return m.data != nil }

// CreateChunkMesh строит полный меш чанка
func (m *Mesher) CreateChunkMesh(task *RenderTask) (*MeshData, error) {
	if m.data != nil {
		return nil, ErrMeshInFlight
	}
	start := time.Now()
	defer metrics.ObserveSince(metrics.MeshDuration.WithLabelValues(TaskDefault.String()), start)

	if err := m.bind(task); err != nil {
		return nil, err
	}
	m.reset()

	v := &m.view
	for y := 0; y < v.width; y++ {
		for f := range m.layer {
			m.layer[f] = m.layer[f][:0]
		}
		for z := 0; z < v.width; z++ {
			for x := 0; x < v.width; x++ {
				wc := v.index(x, y, z)
				btype := v.ids[wc]
				b := m.pack.Get(blockIDOf(btype))
				switch {
				case block.IsLiquid(blockIDOf(btype)):
					m.addLiquid(wc, x, y, z)
				case b.MeshType == block.MeshBlock:
					m.addBlock(b, wc, x, y, z)
				case b.MeshType == block.MeshLeaves, b.MeshType == block.MeshFlora, b.MeshType == block.MeshCrossFlora:
					m.addFlora(b, wc, x, y, z)
				}
				m.pbtype = btype
			}
			// слияние вдоль x не переходит на следующую строку
			m.canMerge = [6]bool{}
		}
		m.mergeTop()
		m.mergeFront()
		m.mergeBack()
		m.mergeRight()
		m.mergeLeft()
		m.mergeBottom()
	}

	d := m.assemble()
	m.log.Trace("меш чанка %d: %d вершин, %d прозрачных, %d вырезанных, %d воды",
		task.ChunkID, len(d.Vertices), len(d.TransVertices), len(d.CutoutVertices), len(d.WaterVertices))
	return d, nil
}

// CreateOnlyWaterMesh перестраивает только поверхность жидкости
func (m *Mesher) CreateOnlyWaterMesh(task *RenderTask) (*MeshData, error) {
	if m.data != nil {
		return nil, ErrMeshInFlight
	}
	start := time.Now()
	defer metrics.ObserveSince(metrics.MeshDuration.WithLabelValues(TaskLiquid.String()), start)

	m.task = task
	m.useTask(task)
	m.water = m.water[:0]
	for _, wc := range task.Liquids {
		i := int(wc)
		x := i%PaddedWidth - 1
		y := i/PaddedLayer - 1
		z := (i%PaddedLayer)/PaddedWidth - 1
		m.addLiquid(i, x, y, z)
	}

	d := m.newData()
	if len(m.water) > 0 {
		d.WaterVertices = append([]LiquidVertex(nil), m.water...)
		d.Info.WaterIndexSize = len(m.water) / 4 * 6
	}
	return d, nil
}

func (m *Mesher) bind(task *RenderTask) error {
	m.task = task
	if task.Level > 1 {
		return m.computeLOD(task, task.Level)
	}
	m.useTask(task)
	return nil
}

func (m *Mesher) useTask(task *RenderTask) {
	m.view = voxelView{
		ids:   task.IDs[:],
		lamp:  task.Lamp[:],
		sun:   task.Sun[:],
		width: chunk.Width,
		pw:    PaddedWidth,
		pl:    PaddedLayer,
		scale: 1,
	}
}

func (m *Mesher) reset() {
	for f := range m.final {
		m.final[f] = m.final[f][:0]
		m.prev[f][0] = m.prev[f][0][:0]
		m.prev[f][1] = m.prev[f][1][:0]
		m.curPrev[f] = 0
	}
	m.canMerge = [6]bool{}
	m.pbtype = 0
	m.trans = m.trans[:0]
	m.cutout = m.cutout[:0]
	m.water = m.water[:0]
	m.transQuads = m.transQuads[:0]
}

func (m *Mesher) newData() *MeshData {
	d := &MeshData{
		ChunkID: m.task.ChunkID,
		Epoch:   m.task.Epoch,
		Pos:     m.task.Pos,
		Kind:    m.task.Kind,
		owner:   m,
	}
	m.data = d
	return d
}

// sameAt сравнивает тип соседа текущего вокселя с самим вокселем
func (m *Mesher) sameAt(dx, dy, dz int) bool {
	v := &m.view
	return v.ids[m.wc+dx+dy*v.pl+dz*v.pw] == m.btype
}

// faceOffset смещение соседа по грани в массиве с рамкой
func (v *voxelView) faceOffset(face int) int {
	switch face {
	case block.FaceLeft:
		return -1
	case block.FaceRight:
		return 1
	case block.FaceBottom:
		return -v.pl
	case block.FaceTop:
		return v.pl
	case block.FaceBack:
		return -v.pw
	default:
		return v.pw
	}
}

// worldPos мировые координаты вокселя (x, y, z) текущей задачи
func (m *Mesher) worldPos(x, y, z int) vec.Vec3 {
	o := m.task.Pos.WorldOrigin()
	s := m.view.scale
	return vec.Vec3{X: o.X + x*s, Y: o.Y + y*s, Z: o.Z + z*s}
}

// column индекс столбца для климатических данных
func (m *Mesher) column(x, z int) int {
	s := m.view.scale
	return (z*s)*chunk.Width + x*s
}

// faceVisible правило отсечения граней
func faceVisible(self, nb *block.Block, btype uint16) bool {
	return nb.Occlude == block.OccludeNone ||
		((nb.Occlude == block.OccludePartial || self.Occlude == block.OccludePartial) && uint16(nb.ID) != btype)
}

func (m *Mesher) addBlock(b *block.Block, wc, x, y, z int) {
	v := &m.view
	btype := v.ids[wc]

	var faces [6]bool
	var samples lightSamples
	hasFace := false
	for f := 0; f < 6; f++ {
		nb := m.pack.Get(blockIDOf(v.ids[wc+v.faceOffset(f)]))
		if faceVisible(b, nb, btype) {
			faces[f] = true
			hasFace = true
		}
	}
	if !hasFace {
		m.canMerge[block.FaceFront] = false
		m.canMerge[block.FaceBack] = false
		m.canMerge[block.FaceTop] = false
		m.canMerge[block.FaceBottom] = false
		return
	}
	m.gather(&samples, wc)
	for i := range faceLightings {
		fl := &faceLightings[i]
		if faces[fl.face] {
			m.setFaceSample(&samples, fl.center, wc+v.faceOffset(fl.face))
		}
	}

	m.wc, m.btype = wc, btype
	wp := m.worldPos(x, y, z)
	m.texCtx.X, m.texCtx.Y, m.texCtx.Z = wp.X, wp.Y, wp.Z
	col := m.column(x, z)
	overlayColor := climateTint(b.OverlayColor, m.task.Temperature[col], m.task.Rainfall[col])
	pos := [3]int{x, y, z}

	selfSun := flatLight(v.sun[wc])
	selfLamp := unpackLamp(v.lamp[wc])
	for ch := range selfLamp {
		selfLamp[ch] = flatLight(selfLamp[ch])
	}

	for i := range faceLightings {
		fl := &faceLightings[i]
		f := fl.face
		if !faces[f] {
			m.canMerge[f] = false
			continue
		}
		ft := &b.Textures[f]
		m.texCtx.Face = f
		tex := ft.Base.Resolve(&m.texCtx)
		overlay := ft.Overlay.Resolve(&m.texCtx)

		if ft.Transparent {
			m.trans = appendFlatFace(m.trans, &cubeVertices[cubeSlot[f]], f, pos, tex, overlay,
				b.Color, overlayColor, selfSun, selfLamp)
			m.transQuads = append(m.transQuads, transCenter(pos, f))
			m.canMerge[f] = false
			continue
		}

		sun, lamp, ao := fl.vertexLight(&samples)
		qi := len(m.layer[f])
		m.layer[f] = appendCubeFace(m.layer[f], f, pos, tex, overlay, b.Color, overlayColor, ao)
		q := m.layer[f][qi : qi+4]
		for k := 0; k < 4; k++ {
			q[k].Sun = sun[k]
			q[k].Lamp = lamp[k]
		}

		rm := &rowMerges[f]
		if !rm.enabled {
			continue
		}
		if m.canMerge[f] && m.pbtype == btype && m.rowMergeable(f, m.prevQuad[f], qi) {
			p := m.layer[f][m.prevQuad[f] : m.prevQuad[f]+4]
			for _, k := range rm.extend {
				p[k].Position[0] += 7
				p[k].Tex[0] += uint8(rm.delta)
			}
			m.layer[f] = m.layer[f][:qi]
		} else {
			m.prevQuad[f] = qi
			m.canMerge[f] = true
		}
	}
}

// rowMergeable проверяет, что рёбра предыдущего и текущего квада совпадают по атрибутам
func (m *Mesher) rowMergeable(f, pi, ci int) bool {
	l := m.layer[f]
	p := l[pi : pi+4]
	c := l[ci : ci+4]
	return CompareVertices(&p[0], &p[3]) && CompareVertices(&p[3], &c[0]) && CompareVertices(&c[0], &c[3]) &&
		CompareVertices(&p[1], &p[2]) && CompareVertices(&p[2], &c[1]) && CompareVertices(&c[1], &c[2])
}

// transCenter центр прозрачной грани в половинах вокселя
func transCenter(pos [3]int, face int) [3]int8 {
	c := [3]int8{int8(pos[0]*2 + 1), int8(pos[1]*2 + 1), int8(pos[2]*2 + 1)}
	switch face {
	case block.FaceLeft:
		c[0]--
	case block.FaceRight:
		c[0]++
	case block.FaceBottom:
		c[1]--
	case block.FaceTop:
		c[1]++
	case block.FaceBack:
		c[2]--
	case block.FaceFront:
		c[2]++
	}
	return c
}

// climateTint окрашивает оверлей (трава, листва) по температуре и влажности столбца
func climateTint(c [3]uint8, temperature, rainfall uint8) [3]uint8 {
	t := float32(temperature) / 255
	r := float32(rainfall) / 255
	return [3]uint8{
		uint8(float32(c[0]) * (0.75 + 0.25*t)),
		uint8(float32(c[1]) * (0.8 + 0.2*r)),
		uint8(float32(c[2]) * (0.9 - 0.2*t)),
	}
}

func blockIDOf(v uint16) block.BlockID { return block.BlockID(v) }

// assemble склеивает грани в общий буфер и считает границы меша
func (m *Mesher) assemble() *MeshData {
	d := m.newData()
	order := [6]int{block.FaceTop, block.FaceLeft, block.FaceRight, block.FaceBack, block.FaceFront, block.FaceBottom}
	total := 0
	for _, f := range order {
		total += len(m.final[f])
	}
	if s := m.view.scale; s > 1 {
		for _, f := range order {
			scaleVertices(m.final[f], s)
		}
		scaleVertices(m.trans, s)
		scaleVertices(m.cutout, s)
	}

	lowY, highY := 256, 0
	lowX, highX := 256, 0
	lowZ, highZ := 256, 0
	d.Vertices = make([]BlockVertex, 0, total)
	offsets := [6]int{}
	for _, f := range order {
		offsets[f] = len(d.Vertices)
		for i := range m.final[f] {
			p := m.final[f][i].Position
			switch f {
			case block.FaceTop:
				lowY = min(lowY, int(p[1]))
			case block.FaceLeft:
				highX = max(highX, int(p[0]))
			case block.FaceRight:
				lowX = min(lowX, int(p[0]))
			case block.FaceBack:
				highZ = max(highZ, int(p[2]))
			case block.FaceFront:
				lowZ = min(lowZ, int(p[2]))
			case block.FaceBottom:
				highY = max(highY, int(p[1]))
			}
		}
		d.Vertices = append(d.Vertices, m.final[f]...)
	}
	if len(m.trans) > 0 {
		d.TransVertices = append([]BlockVertex(nil), m.trans...)
		d.TransQuadCenters = append([][3]int8(nil), m.transQuads...)
	}
	if len(m.cutout) > 0 {
		d.CutoutVertices = append([]BlockVertex(nil), m.cutout...)
	}

	info := &d.Info
	if len(d.Vertices) > 0 || len(d.TransVertices) > 0 || len(d.CutoutVertices) > 0 {
		info.IndexSize = len(d.Vertices) * 6 / 4
		info.PyOff, info.PySize = offsets[block.FaceTop], len(m.final[block.FaceTop])/4*6
		info.NyOff, info.NySize = offsets[block.FaceBottom], len(m.final[block.FaceBottom])/4*6
		info.PxOff, info.PxSize = offsets[block.FaceRight], len(m.final[block.FaceRight])/4*6
		info.NxOff, info.NxSize = offsets[block.FaceLeft], len(m.final[block.FaceLeft])/4*6
		info.PzOff, info.PzSize = offsets[block.FaceFront], len(m.final[block.FaceFront])/4*6
		info.NzOff, info.NzSize = offsets[block.FaceBack], len(m.final[block.FaceBack])/4*6
		info.TransIndexSize = len(d.TransVertices) / 4 * 6
		info.CutoutIndexSize = len(d.CutoutVertices) / 4 * 6
		info.HighestX, info.LowestX = highX/7, lowX/7
		info.HighestY, info.LowestY = highY/7, lowY/7
		info.HighestZ, info.LowestZ = highZ/7, lowZ/7
	}
	if len(m.water) > 0 {
		if s := m.view.scale; s > 1 {
			for i := range m.water {
				for a := 0; a < 3; a++ {
					m.water[i].Position[a] *= float32(s)
				}
			}
		}
		d.WaterVertices = append([]LiquidVertex(nil), m.water...)
		info.WaterIndexSize = len(m.water) / 4 * 6
	}
	return d
}

func scaleVertices(vs []BlockVertex, s int) {
	for i := range vs {
		for a := 0; a < 3; a++ {
			vs[i].Position[a] = uint8(int(vs[i].Position[a]) * s)
		}
	}
}
