package block

import "github.com/go-gl/mathgl/mgl32"

// Occlusion степень перекрытия соседних граней
type Occlusion uint8

const (
	OccludeNone    Occlusion = 0 // грани соседей всегда видны
	OccludeFull    Occlusion = 1 // непрозрачный куб
	OccludePartial Occlusion = 2 // стекло, листва: скрывает только грани другого типа
)

// MeshType способ построения геометрии блока
type MeshType uint8

const (
	MeshNone MeshType = iota
	MeshBlock
	MeshLeaves
	MeshFlora
	MeshCrossFlora
	MeshLiquid
)

// PhysicsProperty категория физики блока
type PhysicsProperty uint8

const (
	PhysNone PhysicsProperty = iota
	PhysLiquid
	PhysPowder
	PhysSnow
)

// NumPhysicsCategories количество списков обновления физики в чанке
const NumPhysicsCategories = 3

// PhysStart первая категория, для которой ведутся списки обновлений
const PhysStart = PhysLiquid

// Material материал блока (для руд и генерации)
type Material uint8

const (
	MaterialNone Material = iota
	MaterialStone
	MaterialSoil
	MaterialOrganic
	MaterialLiquid
)

// Грани блока. Порядок совпадает с порядком соседей чанка.
const (
	FaceLeft   = 0 // -x
	FaceRight  = 1 // +x
	FaceBottom = 2 // -y
	FaceTop    = 3 // +y
	FaceBack   = 4 // -z
	FaceFront  = 5 // +z
)

// White нейтральный цветовой фильтр
var White = mgl32.Vec3{1, 1, 1}

// TextureLayer одна текстура грани: индекс в атласе и способ выбора варианта
type TextureLayer struct {
	Index  int           `json:"index"` // atlas*256 + index
	Method TextureMethod `json:"-"`
	Kind   MethodKind    `json:"method"`
	Params MethodParams  `json:"params"`
}

// FaceTexture текстуры одной грани
type FaceTexture struct {
	Base        TextureLayer `json:"base"`
	Overlay     TextureLayer `json:"overlay"`
	Transparent bool         `json:"transparent"`
}

// Block описание типа блока
type Block struct {
	ID              BlockID
	Name            string
	Occlude         Occlusion
	MeshType        MeshType
	BlockLight      bool // поглощает свет
	IsLight         bool // излучает свет
	LightColor      uint16
	ColorFilter     mgl32.Vec3
	PhysicsProperty PhysicsProperty
	WaterMeshLevel  int
	WaterBreak      bool // разрушается водой и огнём без сопротивления
	Flammability    float32
	BurnTransformID BlockID
	ExplosivePower  float32
	Collide         bool
	Material        Material
	Spawner         bool
	Color           [3]uint8
	OverlayColor    [3]uint8
	Textures        [6]FaceTexture
}

// IsColorFiltering проверяет, меняет ли блок цвет проходящего света
func (b *Block) IsColorFiltering() bool {
	return b.ColorFilter != White
}

// SetAllTextures задает одинаковую текстуру всем граням
func (b *Block) SetAllTextures(t FaceTexture) {
	for i := range b.Textures {
		b.Textures[i] = t
	}
}
