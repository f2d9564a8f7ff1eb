package block

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const packSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["blocks"],
  "properties": {
    "liquids": {"type": "boolean"},
    "blocks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "integer", "minimum": 0, "maximum": 255},
          "name": {"type": "string", "minLength": 1},
          "occlude": {"type": "integer", "enum": [0, 1, 2]},
          "mesh": {"enum": ["none", "block", "leaves", "flora", "crossflora"]},
          "physics": {"enum": ["none", "powder", "snow"]},
          "material": {"enum": ["none", "stone", "soil", "organic"]},
          "blockLight": {"type": "boolean"},
          "isLight": {"type": "boolean"},
          "lightColor": {"$ref": "#/definitions/rgb5"},
          "colorFilter": {"type": "array", "items": {"type": "number", "minimum": 0, "maximum": 1}, "minItems": 3, "maxItems": 3},
          "waterBreak": {"type": "boolean"},
          "flammability": {"type": "number", "minimum": 0, "maximum": 1},
          "burnTransform": {"type": "string"},
          "explosivePower": {"type": "number", "minimum": 0},
          "collide": {"type": "boolean"},
          "spawner": {"type": "boolean"},
          "color": {"$ref": "#/definitions/rgb"},
          "overlayColor": {"$ref": "#/definitions/rgb"},
          "texture": {"$ref": "#/definitions/face"},
          "top": {"$ref": "#/definitions/face"},
          "bottom": {"$ref": "#/definitions/face"},
          "side": {"$ref": "#/definitions/face"}
        }
      }
    }
  },
  "definitions": {
    "rgb": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 255}, "minItems": 3, "maxItems": 3},
    "rgb5": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 31}, "minItems": 3, "maxItems": 3},
    "layer": {
      "type": "object",
      "required": ["index"],
      "properties": {
        "index": {"type": "integer", "minimum": 0},
        "method": {"enum": ["none", "connected", "random", "grass", "horizontal", "vertical", "repeat"]},
        "params": {"type": "object"}
      }
    },
    "face": {
      "type": "object",
      "required": ["base"],
      "properties": {
        "base": {"$ref": "#/definitions/layer"},
        "overlay": {"$ref": "#/definitions/layer"},
        "transparent": {"type": "boolean"}
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.CompileString("block_pack.schema.json", packSchema)
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

type packFile struct {
	Liquids *bool       `json:"liquids"`
	Blocks  []blockJSON `json:"blocks"`
}

type blockJSON struct {
	ID            BlockID      `json:"id"`
	Name          string       `json:"name"`
	Occlude       *Occlusion   `json:"occlude"`
	Mesh          string       `json:"mesh"`
	Physics       string       `json:"physics"`
	Material      string       `json:"material"`
	BlockLight    *bool        `json:"blockLight"`
	IsLight       bool         `json:"isLight"`
	LightColor    []uint8      `json:"lightColor"`
	ColorFilter   []float32    `json:"colorFilter"`
	WaterBreak    bool         `json:"waterBreak"`
	Flammability  float32      `json:"flammability"`
	BurnTransform string       `json:"burnTransform"`
	Explosive     float32      `json:"explosivePower"`
	Collide       *bool        `json:"collide"`
	Spawner       bool         `json:"spawner"`
	Color         []uint8      `json:"color"`
	OverlayColor  []uint8      `json:"overlayColor"`
	Texture       *FaceTexture `json:"texture"`
	Top           *FaceTexture `json:"top"`
	Bottom        *FaceTexture `json:"bottom"`
	Side          *FaceTexture `json:"side"`
}

var meshTypes = map[string]MeshType{
	"": MeshBlock, "none": MeshNone, "block": MeshBlock, "leaves": MeshLeaves,
	"flora": MeshFlora, "crossflora": MeshCrossFlora,
}

var physicsTypes = map[string]PhysicsProperty{
	"": PhysNone, "none": PhysNone, "powder": PhysPowder, "snow": PhysSnow,
}

var materials = map[string]Material{
	"": MaterialNone, "none": MaterialNone, "stone": MaterialStone, "soil": MaterialSoil, "organic": MaterialOrganic,
}

// LoadPack читает набор блоков из JSON, проверяет его схемой и
// дополняет диапазоном жидкостей (если не указано "liquids": false)
func LoadPack(r io.Reader) (*Pack, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения набора блоков: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("ошибка компиляции схемы: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}

	var file packFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}

	pack := NewPack()
	if err := pack.Register(&Block{ID: NONE, Name: "none", MeshType: MeshNone, ColorFilter: White}); err != nil {
		return nil, err
	}

	// Ссылки burnTransform разрешаются после регистрации всех блоков
	burns := make(map[BlockID]string)
	for i := range file.Blocks {
		b, err := file.Blocks[i].toBlock()
		if err != nil {
			return nil, err
		}
		if err := pack.Register(b); err != nil {
			return nil, err
		}
		if file.Blocks[i].BurnTransform != "" {
			burns[b.ID] = file.Blocks[i].BurnTransform
		}
	}
	for id, name := range burns {
		target, ok := pack.ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: блок %d сгорает в неизвестный %q", ErrInvalidPack, id, name)
		}
		pack.Get(id).BurnTransformID = target.ID
	}

	if file.Liquids == nil || *file.Liquids {
		if err := AddLiquids(pack); err != nil {
			return nil, err
		}
	}
	return pack, nil
}

func (j *blockJSON) toBlock() (*Block, error) {
	b := &Block{
		ID:           j.ID,
		Name:         strings.ToLower(j.Name),
		Occlude:      OccludeFull,
		MeshType:     meshTypes[j.Mesh],
		BlockLight:   true,
		IsLight:      j.IsLight,
		WaterBreak:   j.WaterBreak,
		Flammability: j.Flammability,
		Collide:      true,
		Spawner:      j.Spawner,
		ColorFilter:  White,
		Color:        [3]uint8{255, 255, 255},
		OverlayColor: [3]uint8{255, 255, 255},
	}
	b.PhysicsProperty = physicsTypes[j.Physics]
	b.ExplosivePower = j.Explosive
	b.Material = materials[j.Material]
	if j.Occlude != nil {
		b.Occlude = *j.Occlude
	}
	if j.BlockLight != nil {
		b.BlockLight = *j.BlockLight
	}
	if j.Collide != nil {
		b.Collide = *j.Collide
	}
	if len(j.LightColor) == 3 {
		b.LightColor = uint16(j.LightColor[0])<<10 | uint16(j.LightColor[1])<<5 | uint16(j.LightColor[2])
	}
	if len(j.ColorFilter) == 3 {
		b.ColorFilter = mgl32.Vec3{j.ColorFilter[0], j.ColorFilter[1], j.ColorFilter[2]}
	}
	if len(j.Color) == 3 {
		copy(b.Color[:], j.Color)
	}
	if len(j.OverlayColor) == 3 {
		copy(b.OverlayColor[:], j.OverlayColor)
	}

	if j.Texture != nil {
		b.SetAllTextures(*j.Texture)
	}
	if j.Side != nil {
		for _, f := range []int{FaceLeft, FaceRight, FaceBack, FaceFront} {
			b.Textures[f] = *j.Side
		}
	}
	if j.Top != nil {
		b.Textures[FaceTop] = *j.Top
	}
	if j.Bottom != nil {
		b.Textures[FaceBottom] = *j.Bottom
	}
	if err := b.bindMethods(); err != nil {
		return nil, err
	}
	return b, nil
}

// bindMethods связывает имена способов текстурирования со стратегиями
func (b *Block) bindMethods() error {
	for f := range b.Textures {
		for _, layer := range []*TextureLayer{&b.Textures[f].Base, &b.Textures[f].Overlay} {
			m, ok := LookupMethod(layer.Kind)
			if !ok {
				return fmt.Errorf("%w: блок %q: неизвестный способ текстуры %q", ErrInvalidPack, b.Name, layer.Kind)
			}
			layer.Method = m
		}
	}
	return nil
}

// AddLiquids регистрирует 100 уровней воды LOWWATER..FULLWATER
func AddLiquids(p *Pack) error {
	for lvl := 1; lvl <= MaxLiquidLevel; lvl++ {
		b := &Block{
			ID:              LOWWATER + BlockID(lvl-1),
			Name:            fmt.Sprintf("water_%d", lvl),
			Occlude:         OccludeNone,
			MeshType:        MeshLiquid,
			BlockLight:      false,
			ColorFilter:     mgl32.Vec3{0.8, 0.9, 1.0},
			PhysicsProperty: PhysLiquid,
			WaterMeshLevel:  lvl,
			Material:        MaterialLiquid,
			Color:           [3]uint8{40, 90, 200},
			OverlayColor:    [3]uint8{255, 255, 255},
		}
		b.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 0}})
		if err := b.bindMethods(); err != nil {
			return err
		}
		if err := p.Register(b); err != nil {
			return err
		}
	}
	return nil
}
