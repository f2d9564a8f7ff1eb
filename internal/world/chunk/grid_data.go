package chunk

import (
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/block"
)

// HeightData параметры рельефа одного столбца вокселей
type HeightData struct {
	Height      int32
	Temperature uint8
	Rainfall    uint8
	SnowDepth   uint8
	SandDepth   uint8
	Biome       uint8
	Flags       uint8
	Surface     block.BlockID
}

// Флаги HeightData
const (
	FlagTooSteep uint8 = 1 << iota
)

// GridData карта высот столбца чанков (x, z), общая для всех чанков столбца
type GridData struct {
	Col      vec.Vec2
	Heights  [Layer]HeightData
	RefCount int
	Ready    bool
}

// At возвращает данные для вокселя (x, z) внутри столбца
func (g *GridData) At(x, z int) *HeightData {
	return &g.Heights[z*Width+x]
}
