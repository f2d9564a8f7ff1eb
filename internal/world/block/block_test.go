package block

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPack(t *testing.T) {
	p := DefaultPack()
	assert.True(t, p.IsValidBlockID(STONE))
	assert.True(t, p.IsValidBlockID(FULLWATER))
	assert.False(t, p.IsValidBlockID(200))

	w := p.Get(FULLWATER)
	assert.Equal(t, MaxLiquidLevel, w.WaterMeshLevel)
	assert.Equal(t, PhysLiquid, w.PhysicsProperty)
	assert.Equal(t, 1, p.Get(LOWWATER).WaterMeshLevel)

	unknown := p.Get(250)
	assert.Equal(t, MeshNone, unknown.MeshType, "неизвестный блок не строит геометрию")
	assert.Equal(t, DIRT, p.Get(DIRTGRASS).BurnTransformID)
}

func TestLoadPack(t *testing.T) {
	src := `{
	  "liquids": false,
	  "blocks": [
	    {"id": 1, "name": "Stone", "material": "stone", "texture": {"base": {"index": 1}}},
	    {"id": 8, "name": "leaves", "occlude": 2, "mesh": "leaves", "flammability": 0.5, "burnTransform": "none",
	     "texture": {"base": {"index": 12, "method": "random", "params": {"weights": [1, 2]}}}},
	    {"id": 13, "name": "torch", "isLight": true, "lightColor": [31, 0, 0], "mesh": "flora", "occlude": 0,
	     "texture": {"base": {"index": 41}}}
	  ]
	}`
	p, err := LoadPack(strings.NewReader(src))
	require.NoError(t, err)

	stone, ok := p.ByName("stone")
	require.True(t, ok, "имя приводится к нижнему регистру")
	assert.Equal(t, MaterialStone, stone.Material)
	assert.Equal(t, OccludeFull, stone.Occlude)

	leaves := p.Get(LEAVES)
	assert.Equal(t, OccludePartial, leaves.Occlude)
	assert.Equal(t, MeshLeaves, leaves.MeshType)
	assert.NotNil(t, leaves.Textures[FaceTop].Base.Method)

	torch := p.Get(TORCH)
	assert.True(t, torch.IsLight)
	assert.Equal(t, uint16(31<<10), torch.LightColor)
	assert.False(t, p.IsValidBlockID(LOWWATER), "жидкости отключены")
}

func TestLoadPackRejectsInvalid(t *testing.T) {
	_, err := LoadPack(strings.NewReader(`{"blocks": [{"id": 1, "name": "x", "occlude": 7}]}`))
	assert.ErrorIs(t, err, ErrInvalidPack)

	_, err = LoadPack(strings.NewReader(`{"blocks": [{"id": 1, "name": "x", "burnTransform": "ghost"}]}`))
	assert.ErrorIs(t, err, ErrInvalidPack)
}

func TestTextureMethods(t *testing.T) {
	same := func(dx, dy, dz int) bool { return dx == 1 && dy == 0 && dz == 0 }
	ctx := &TextureContext{Face: FaceTop, Same: same}

	m, ok := LookupMethod(MethodConnected)
	require.True(t, ok)
	assert.Equal(t, 2, m.Offset(ctx, &MethodParams{}), "сосед справа даёт бит 2")

	m, _ = LookupMethod(MethodHorizontal)
	assert.Equal(t, 2, m.Offset(ctx, &MethodParams{}))

	m, _ = LookupMethod(MethodRepeat)
	ctx = &TextureContext{Face: FaceFront, X: 3, Y: 0}
	assert.Equal(t, 1+1*2, m.Offset(ctx, &MethodParams{Width: 2, Height: 2}))

	m, _ = LookupMethod(MethodRandom)
	a := m.Offset(&TextureContext{X: 5, Z: 9}, &MethodParams{Weights: []float64{1, 1, 1}})
	b := m.Offset(&TextureContext{X: 5, Z: 9}, &MethodParams{Weights: []float64{1, 1, 1}})
	assert.Equal(t, a, b, "вариант детерминирован позицией")
	assert.Less(t, a, 3)

	_, ok = LookupMethod("spiral")
	assert.False(t, ok)
}
