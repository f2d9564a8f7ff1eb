// Package chunk описывает кубический участок мира 32x32x32 и аллокатор,
// который владеет всеми чанками и выдаёт их по стабильному ID.
package chunk

import (
	"sync/atomic"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/block"
)

// Размеры чанка
const (
	Width = 32
	Layer = Width * Width
	Size  = Layer * Width

	MaxLight = 31
)

// ArrayEditThreshold число правок за тик, после которого хранилища переводятся в массив
const ArrayEditThreshold = 64

// ID стабильный идентификатор чанка в аллокаторе
type ID uint32

// NoID отсутствие соседа
const NoID ID = 0

// Направления соседей. Совпадают с гранями блока.
const (
	Left   = block.FaceLeft
	Right  = block.FaceRight
	Bottom = block.FaceBottom
	Top    = block.FaceTop
	Back   = block.FaceBack
	Front  = block.FaceFront
)

// Offsets смещения соседей в сетке по направлению
var Offsets = [6]vec.Vec3{
	{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1},
}

// Opposite возвращает противоположное направление
func Opposite(dir int) int {
	return dir ^ 1
}

// State этап обработки чанка. Меньшее значение означает больший объём работы.
type State uint8

const (
	StateLoad State = iota
	StateGenerate
	StateMesh
	StateWaterMesh
	StateDraw
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateLoad:
		return "load"
	case StateGenerate:
		return "generate"
	case StateMesh:
		return "mesh"
	case StateWaterMesh:
		return "watermesh"
	case StateDraw:
		return "draw"
	default:
		return "inactive"
	}
}

// GenLevel уровень завершённости генерации
type GenLevel uint8

const (
	GenNone GenLevel = iota
	GenTerrain
	GenFlora
	GenDone
)

// Pos положение чанка: грань куба-планеты и координата в сетке чанков
type Pos struct {
	vec.Vec3
	Face int
}

// Neighbor возвращает позицию соседа в направлении dir
func (p Pos) Neighbor(dir int) Pos {
	return Pos{Vec3: p.Vec3.Add(Offsets[dir]), Face: p.Face}
}

// WorldOrigin мировая координата угла чанка
func (p Pos) WorldOrigin() vec.Vec3 {
	return p.Vec3.Scale(Width)
}

// Узлы очередей света
type SunlightRemovalNode struct {
	BlockIndex  uint16
	OldLightVal uint8
}

type SunlightUpdateNode struct {
	BlockIndex uint16
	LightVal   uint8
}

type LampLightRemovalNode struct {
	BlockIndex    uint16
	OldLightColor uint16
}

type LampLightUpdateNode struct {
	BlockIndex uint16
	LightColor uint16
}

// TreeData отложенная посадка дерева
type TreeData struct {
	Index int
	Type  int
}

// PlantData отложенная посадка растения
type PlantData struct {
	Index int
	Block block.BlockID
}

// Chunk кубический участок мира
type Chunk struct {
	ID    ID
	Epoch uint32
	Pos   Pos

	Blocks *voxel.RunStorage[uint16]
	Lamp   *voxel.RunStorage[uint16]
	Sun    *voxel.RunStorage[uint8]

	Neighbors    [6]ID
	NumNeighbors int

	refCount atomic.Int32
	evicted  bool

	State      State
	GenLevel   GenLevel
	NumBlocks  int
	Distance2  float64
	Dirty      bool
	InFlight   bool // задача генерации ещё не вернулась
	GridData   *GridData
	EdgeBlocks [6]bool

	SunlightRemovalQueue  []SunlightRemovalNode
	SunlightUpdateQueue   []SunlightUpdateNode
	LampLightRemovalQueue []LampLightRemovalNode
	LampLightUpdateQueue  []LampLightUpdateNode
	SunRemovalList        []uint16
	SunExtendList         []uint16

	BlockUpdateList  [block.NumPhysicsCategories][2][]uint16
	ActiveUpdateList [block.NumPhysicsCategories]int

	TreesToLoad   []TreeData
	PlantsToLoad  []PlantData
	SpawnerBlocks []uint16

	BlockUpdateIndex int
	EditsThisTick    int
}

func newChunk() *Chunk {
	return &Chunk{
		Blocks: voxel.NewRunStorage[uint16](),
		Lamp:   voxel.NewRunStorage[uint16](),
		Sun:    voxel.NewRunStorage[uint8](),
	}
}

// Clear сбрасывает чанк перед повторным использованием
func (c *Chunk) Clear() {
	c.Blocks.Clear()
	c.Lamp.Clear()
	c.Sun.Clear()
	c.Neighbors = [6]ID{}
	c.NumNeighbors = 0
	c.refCount.Store(0)
	c.evicted = false
	c.State = StateLoad
	c.GenLevel = GenNone
	c.NumBlocks = 0
	c.Distance2 = 0
	c.Dirty = false
	c.InFlight = false
	c.GridData = nil
	c.EdgeBlocks = [6]bool{}

	c.SunlightRemovalQueue = c.SunlightRemovalQueue[:0]
	c.SunlightUpdateQueue = c.SunlightUpdateQueue[:0]
	c.LampLightRemovalQueue = c.LampLightRemovalQueue[:0]
	c.LampLightUpdateQueue = c.LampLightUpdateQueue[:0]
	c.SunRemovalList = c.SunRemovalList[:0]
	c.SunExtendList = c.SunExtendList[:0]
	for p := range c.BlockUpdateList {
		c.BlockUpdateList[p][0] = c.BlockUpdateList[p][0][:0]
		c.BlockUpdateList[p][1] = c.BlockUpdateList[p][1][:0]
		c.ActiveUpdateList[p] = 0
	}
	c.TreesToLoad = c.TreesToLoad[:0]
	c.PlantsToLoad = c.PlantsToLoad[:0]
	c.SpawnerBlocks = c.SpawnerBlocks[:0]
	c.BlockUpdateIndex = 0
	c.EditsThisTick = 0
}

// AddRef увеличивает счётчик ссылок
func (c *Chunk) AddRef() int32 { return c.refCount.Add(1) }

// DecRef уменьшает счётчик ссылок
func (c *Chunk) DecRef() int32 { return c.refCount.Add(-1) }

// RefCount текущее число ссылок
func (c *Chunk) RefCount() int32 { return c.refCount.Load() }

// Evicted сообщает, удалён ли чанк из сетки
func (c *Chunk) Evicted() bool { return c.evicted }

// Index линейный индекс вокселя
func Index(x, y, z int) int {
	return y*Layer + z*Width + x
}

// Coords разбирает линейный индекс на координаты
func Coords(i int) (x, y, z int) {
	return i % Width, i / Layer, (i % Layer) / Width
}

// BlockID возвращает тип блока
func (c *Chunk) BlockID(i int) block.BlockID {
	return block.BlockID(c.Blocks.Get(i))
}

// SetBlockID записывает тип блока и учитывает правку
func (c *Chunk) SetBlockID(i int, id block.BlockID) {
	c.Blocks.Set(i, uint16(id))
	c.noteEdit()
}

// SunLight возвращает солнечный свет ячейки
func (c *Chunk) SunLight(i int) uint8 { return c.Sun.Get(i) }

// SetSunLight записывает солнечный свет ячейки
func (c *Chunk) SetSunLight(i int, v uint8) {
	c.Sun.Set(i, v)
	c.noteEdit()
}

// LampLight возвращает упакованный цвет лампы
func (c *Chunk) LampLight(i int) uint16 { return c.Lamp.Get(i) }

// SetLampLight записывает цвет лампы
func (c *Chunk) SetLampLight(i int, v uint16) {
	c.Lamp.Set(i, v)
	c.noteEdit()
}

// noteEdit помечает чанк изменённым. При частых правках хранилища
// переходят в режим массива.
func (c *Chunk) noteEdit() {
	c.Dirty = true
	c.EditsThisTick++
	if c.EditsThisTick == ArrayEditThreshold {
		c.Blocks.ChangeState(voxel.Array)
		c.Lamp.ChangeState(voxel.Array)
		c.Sun.ChangeState(voxel.Array)
	}
}

// Compact возвращает хранилища в интервальный режим и обнуляет счётчик правок
func (c *Chunk) Compact() {
	c.EditsThisTick = 0
	c.Blocks.ChangeState(voxel.Interval)
	c.Lamp.ChangeState(voxel.Interval)
	c.Sun.ChangeState(voxel.Interval)
}

// EndTick закрывает тик правок. Чанк в режиме массива, который за тик
// никто не менял, возвращается к интервалам.
func (c *Chunk) EndTick() {
	if c.EditsThisTick == 0 && c.Blocks.State() == voxel.Array {
		c.Compact()
		return
	}
	c.EditsThisTick = 0
}

// ChangeState переводит чанк в состояние с большим объёмом работы.
// Более "лёгкое" состояние не затирает уже запрошенное тяжёлое.
func (c *Chunk) ChangeState(s State) {
	if s < c.State {
		c.State = s
	}
}

// SetState безусловно выставляет состояние
func (c *Chunk) SetState(s State) {
	c.State = s
}

// IsAccessible чанк сгенерирован и окружён всеми соседями
func (c *Chunk) IsAccessible() bool {
	return c.GenLevel == GenDone && c.NumNeighbors == 6
}

// CheckEdgeBlocks отмечает грани, полностью закрытые блоками
func (c *Chunk) CheckEdgeBlocks() {
	full := func(at func(a, b int) int) bool {
		for a := 0; a < Width; a++ {
			for b := 0; b < Width; b++ {
				if c.BlockID(at(a, b)) == block.NONE {
					return false
				}
			}
		}
		return true
	}
	c.EdgeBlocks[Left] = full(func(y, z int) int { return Index(0, y, z) })
	c.EdgeBlocks[Right] = full(func(y, z int) int { return Index(Width-1, y, z) })
	c.EdgeBlocks[Bottom] = full(func(x, z int) int { return Index(x, 0, z) })
	c.EdgeBlocks[Top] = full(func(x, z int) int { return Index(x, Width-1, z) })
	c.EdgeBlocks[Back] = full(func(x, y int) int { return Index(x, y, 0) })
	c.EdgeBlocks[Front] = full(func(x, y int) int { return Index(x, y, Width-1) })
}
