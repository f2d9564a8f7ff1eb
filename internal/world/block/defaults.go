package block

import "github.com/go-gl/mathgl/mgl32"

func solid(id BlockID, name string, tex int, mat Material) *Block {
	b := &Block{
		ID:           id,
		Name:         name,
		Occlude:      OccludeFull,
		MeshType:     MeshBlock,
		BlockLight:   true,
		Collide:      true,
		Material:     mat,
		ColorFilter:  White,
		Color:        [3]uint8{255, 255, 255},
		OverlayColor: [3]uint8{255, 255, 255},
	}
	b.SetAllTextures(FaceTexture{Base: TextureLayer{Index: tex}})
	return b
}

// DefaultPack возвращает встроенный набор блоков
func DefaultPack() *Pack {
	p := NewPack()

	air := &Block{ID: NONE, Name: "none", MeshType: MeshNone, ColorFilter: White}

	dirt := solid(DIRT, "dirt", 2, MaterialSoil)
	grass := solid(DIRTGRASS, "dirtgrass", 2, MaterialSoil)
	grass.Textures[FaceTop] = FaceTexture{Base: TextureLayer{Index: 3, Kind: MethodRandom, Params: MethodParams{Weights: []float64{4, 1, 1}}}}
	for _, f := range []int{FaceLeft, FaceRight, FaceBack, FaceFront} {
		grass.Textures[f] = FaceTexture{
			Base:    TextureLayer{Index: 2},
			Overlay: TextureLayer{Index: 6, Kind: MethodGrass},
		}
	}
	grass.OverlayColor = [3]uint8{110, 190, 70}

	snow := solid(SNOW, "snow", 9, MaterialSoil)
	snow.PhysicsProperty = PhysSnow

	sand := solid(SAND, "sand", 8, MaterialSoil)
	sand.PhysicsProperty = PhysPowder

	ice := solid(ICE, "ice", 10, MaterialNone)
	ice.Occlude = OccludePartial
	ice.BlockLight = false
	ice.ColorFilter = mgl32.Vec3{0.85, 0.9, 1.0}
	for f := range ice.Textures {
		ice.Textures[f].Transparent = true
	}

	fire := &Block{
		ID: FIRE, Name: "fire", Occlude: OccludeNone, MeshType: MeshCrossFlora,
		IsLight: true, LightColor: PackRGB5(31, 20, 4), ColorFilter: White,
		WaterBreak: true, Color: [3]uint8{255, 255, 255}, OverlayColor: [3]uint8{255, 255, 255},
	}
	fire.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 40}})

	leaves := solid(LEAVES, "leaves", 12, MaterialOrganic)
	leaves.Occlude = OccludePartial
	leaves.MeshType = MeshLeaves
	leaves.Flammability = 0.6
	leaves.Color = [3]uint8{90, 170, 60}

	wood := solid(WOOD, "wood", 13, MaterialOrganic)
	wood.Flammability = 0.3
	wood.Textures[FaceTop] = FaceTexture{Base: TextureLayer{Index: 14}}
	wood.Textures[FaceBottom] = FaceTexture{Base: TextureLayer{Index: 14}}
	for _, f := range []int{FaceLeft, FaceRight, FaceBack, FaceFront} {
		wood.Textures[f].Base.Kind = MethodVertical
	}

	glass := solid(GLASS, "glass", 16, MaterialNone)
	glass.Occlude = OccludePartial
	glass.BlockLight = false
	glass.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 16, Kind: MethodConnected}, Transparent: true})

	torch := &Block{
		ID: TORCH, Name: "torch", Occlude: OccludeNone, MeshType: MeshFlora,
		IsLight: true, LightColor: PackRGB5(31, 28, 18), ColorFilter: White,
		WaterBreak: true, Flammability: 0, Color: [3]uint8{255, 255, 255}, OverlayColor: [3]uint8{255, 255, 255},
	}
	torch.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 41}})

	tallgrass := &Block{
		ID: TALLGRASS, Name: "tallgrass", Occlude: OccludeNone, MeshType: MeshCrossFlora,
		ColorFilter: White, WaterBreak: true, Flammability: 0.8,
		Color: [3]uint8{110, 190, 70}, OverlayColor: [3]uint8{255, 255, 255},
	}
	tallgrass.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 48}})

	flower := &Block{
		ID: FLOWER, Name: "flower", Occlude: OccludeNone, MeshType: MeshFlora,
		ColorFilter: White, WaterBreak: true, Flammability: 0.8,
		Color: [3]uint8{255, 255, 255}, OverlayColor: [3]uint8{255, 255, 255},
	}
	flower.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 52}})

	mushroom := &Block{
		ID: MUSHROOM, Name: "mushroom", Occlude: OccludeNone, MeshType: MeshFlora,
		ColorFilter: White, WaterBreak: true, Flammability: 0.5, Spawner: true,
		Color: [3]uint8{255, 255, 255}, OverlayColor: [3]uint8{255, 255, 255},
	}
	mushroom.SetAllTextures(FaceTexture{Base: TextureLayer{Index: 56}})

	blocks := []*Block{
		air,
		solid(STONE, "stone", 1, MaterialStone),
		dirt, grass, sand, snow, ice, fire, leaves,
		solid(GRAVEL, "gravel", 17, MaterialSoil),
		solid(CLAY, "clay", 18, MaterialSoil),
		wood, glass, torch, tallgrass, flower, mushroom,
		solid(COALORE, "coal_ore", 20, MaterialStone),
		solid(IRONORE, "iron_ore", 21, MaterialStone),
		solid(GOLDORE, "gold_ore", 22, MaterialStone),
		solid(COPPERORE, "copper_ore", 23, MaterialStone),
	}
	leaves.BurnTransformID = NONE
	wood.BurnTransformID = NONE
	grass.BurnTransformID = DIRT
	grass.Flammability = 0.1

	for _, b := range blocks {
		if err := b.bindMethods(); err != nil {
			panic(err)
		}
		if err := p.Register(b); err != nil {
			panic(err)
		}
	}
	if err := AddLiquids(p); err != nil {
		panic(err)
	}
	return p
}

// PackRGB5 упаковывает цвет света 5:5:5
func PackRGB5(r, g, b uint8) uint16 {
	return uint16(r&0x1F)<<10 | uint16(g&0x1F)<<5 | uint16(b&0x1F)
}
