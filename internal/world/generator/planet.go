package generator

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxel-core/internal/world/block"
)

// Константы генерации
const (
	FreezeTemp   = 50
	SurfaceDepth = 8
)

// NoiseParams параметры фрактального шума
type NoiseParams struct {
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Frequency   float64 `yaml:"frequency"`
	Low         float64 `yaml:"low"`
	High        float64 `yaml:"high"`
}

// FloraChance вероятность растения в биоме
type FloraChance struct {
	Block  block.BlockID
	Chance float64
}

// TreeType описание дерева
type TreeType struct {
	Trunk  block.BlockID
	Leaves block.BlockID
	Height int
	Radius int
	Chance float64
}

// Biome параметры биома
type Biome struct {
	Name           string
	MinTemp        uint8
	MaxTemp        uint8
	MinRain        uint8
	MaxRain        uint8
	Surface        block.BlockID
	SurfaceLayers  [SurfaceDepth]block.BlockID
	LooseSoilDepth int
	Flora          []FloraChance
	Trees          []int // индексы в PlanetGenData.Trees
}

// MineralData параметры жилы руды. Высоты задаются относительно поверхности
// (отрицательные значения ниже неё), шансы в процентах.
type MineralData struct {
	Block        block.BlockID
	StartHeight  int
	CenterHeight int
	EndHeight    int
	StartChance  float64
	CenterChance float64
	EndChance    float64
	MinSize      int
	MaxSize      int
}

// PlanetGenData неизменяемые после загрузки параметры генерации
type PlanetGenData struct {
	Seed        int64
	Terrain     NoiseParams
	Temperature NoiseParams
	Rainfall    NoiseParams
	Caves       bool
	Biomes      []Biome
	Trees       []TreeType
	Minerals    []MineralData
}

// DefaultPlanet возвращает параметры планеты по умолчанию
func DefaultPlanet(seed int64) *PlanetGenData {
	soil := [SurfaceDepth]block.BlockID{
		block.DIRT, block.DIRT, block.DIRT, block.STONE,
		block.STONE, block.STONE, block.STONE, block.STONE,
	}
	sandy := [SurfaceDepth]block.BlockID{
		block.SAND, block.SAND, block.SAND, block.CLAY,
		block.STONE, block.STONE, block.STONE, block.STONE,
	}
	return &PlanetGenData{
		Seed:        seed,
		Terrain:     NoiseParams{Octaves: 6, Persistence: 0.5, Frequency: 0.004, Low: -24, High: 72},
		Temperature: NoiseParams{Octaves: 3, Persistence: 0.5, Frequency: 0.001, Low: 0, High: 255},
		Rainfall:    NoiseParams{Octaves: 3, Persistence: 0.5, Frequency: 0.001, Low: 0, High: 255},
		Caves:       true,
		Trees: []TreeType{
			{Trunk: block.WOOD, Leaves: block.LEAVES, Height: 5, Radius: 2, Chance: 0.01},
		},
		Biomes: []Biome{
			{
				Name: "plains", MinTemp: 40, MaxTemp: 255, MinRain: 60, MaxRain: 255,
				Surface: block.DIRTGRASS, SurfaceLayers: soil, LooseSoilDepth: 3,
				Flora: []FloraChance{{Block: block.TALLGRASS, Chance: 0.08}, {Block: block.FLOWER, Chance: 0.01}},
				Trees: []int{0},
			},
			{
				Name: "desert", MinTemp: 40, MaxTemp: 255, MinRain: 0, MaxRain: 59,
				Surface: block.SAND, SurfaceLayers: sandy, LooseSoilDepth: 4,
			},
			{
				Name: "tundra", MinTemp: 0, MaxTemp: 39, MinRain: 0, MaxRain: 255,
				Surface: block.DIRT, SurfaceLayers: soil, LooseSoilDepth: 2,
			},
		},
		Minerals: []MineralData{
			{Block: block.COALORE, StartHeight: -8, CenterHeight: -64, EndHeight: -256, StartChance: 10, CenterChance: 40, EndChance: 20, MinSize: 6, MaxSize: 18},
			{Block: block.IRONORE, StartHeight: -32, CenterHeight: -128, EndHeight: -512, StartChance: 5, CenterChance: 25, EndChance: 10, MinSize: 4, MaxSize: 10},
			{Block: block.GOLDORE, StartHeight: -128, CenterHeight: -384, EndHeight: -1024, StartChance: 2, CenterChance: 12, EndChance: 4, MinSize: 3, MaxSize: 6},
		},
	}
}

// BiomeFor выбирает биом по температуре и осадкам (первый подходящий)
func (p *PlanetGenData) BiomeFor(temp, rain uint8) int {
	for i := range p.Biomes {
		b := &p.Biomes[i]
		if temp >= b.MinTemp && temp <= b.MaxTemp && rain >= b.MinRain && rain <= b.MaxRain {
			return i
		}
	}
	return 0
}

// Описание планеты в YAML; блоки задаются именами
type planetFile struct {
	Seed        int64       `yaml:"seed"`
	Terrain     NoiseParams `yaml:"terrain"`
	Temperature NoiseParams `yaml:"temperature"`
	Rainfall    NoiseParams `yaml:"rainfall"`
	Caves       *bool       `yaml:"caves"`
	Trees       []struct {
		Trunk  string  `yaml:"trunk"`
		Leaves string  `yaml:"leaves"`
		Height int     `yaml:"height"`
		Radius int     `yaml:"radius"`
		Chance float64 `yaml:"chance"`
	} `yaml:"trees"`
	Biomes []struct {
		Name           string   `yaml:"name"`
		Temperature    [2]uint8 `yaml:"temperature"`
		Rainfall       [2]uint8 `yaml:"rainfall"`
		Surface        string   `yaml:"surface"`
		Layers         []string `yaml:"layers"`
		LooseSoilDepth int      `yaml:"loose_soil_depth"`
		Flora          []struct {
			Block  string  `yaml:"block"`
			Chance float64 `yaml:"chance"`
		} `yaml:"flora"`
		Trees []int `yaml:"trees"`
	} `yaml:"biomes"`
	Minerals []struct {
		Block        string  `yaml:"block"`
		Start        int     `yaml:"start"`
		Center       int     `yaml:"center"`
		End          int     `yaml:"end"`
		StartChance  float64 `yaml:"start_chance"`
		CenterChance float64 `yaml:"center_chance"`
		EndChance    float64 `yaml:"end_chance"`
		MinSize      int     `yaml:"min_size"`
		MaxSize      int     `yaml:"max_size"`
	} `yaml:"minerals"`
}

// LoadPlanet читает YAML и разрешает имена блоков через набор pack
func LoadPlanet(r io.Reader, pack *block.Pack) (*PlanetGenData, error) {
	var f planetFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("ошибка разбора описания планеты: %w", err)
	}

	lookup := func(name string) (block.BlockID, error) {
		b, ok := pack.ByName(name)
		if !ok {
			return 0, fmt.Errorf("неизвестный блок %q в описании планеты", name)
		}
		return b.ID, nil
	}

	def := DefaultPlanet(f.Seed)
	p := &PlanetGenData{
		Seed:        f.Seed,
		Terrain:     orDefault(f.Terrain, def.Terrain),
		Temperature: orDefault(f.Temperature, def.Temperature),
		Rainfall:    orDefault(f.Rainfall, def.Rainfall),
		Caves:       f.Caves == nil || *f.Caves,
	}

	for _, t := range f.Trees {
		trunk, err := lookup(t.Trunk)
		if err != nil {
			return nil, err
		}
		leaves, err := lookup(t.Leaves)
		if err != nil {
			return nil, err
		}
		p.Trees = append(p.Trees, TreeType{Trunk: trunk, Leaves: leaves, Height: t.Height, Radius: t.Radius, Chance: t.Chance})
	}

	for _, fb := range f.Biomes {
		surface, err := lookup(fb.Surface)
		if err != nil {
			return nil, err
		}
		b := Biome{
			Name: fb.Name, MinTemp: fb.Temperature[0], MaxTemp: fb.Temperature[1],
			MinRain: fb.Rainfall[0], MaxRain: fb.Rainfall[1],
			Surface: surface, LooseSoilDepth: fb.LooseSoilDepth, Trees: fb.Trees,
		}
		for i := range b.SurfaceLayers {
			b.SurfaceLayers[i] = block.STONE
			if i < len(fb.Layers) {
				if b.SurfaceLayers[i], err = lookup(fb.Layers[i]); err != nil {
					return nil, err
				}
			}
		}
		for _, fl := range fb.Flora {
			id, err := lookup(fl.Block)
			if err != nil {
				return nil, err
			}
			b.Flora = append(b.Flora, FloraChance{Block: id, Chance: fl.Chance})
		}
		for _, ti := range b.Trees {
			if ti < 0 || ti >= len(p.Trees) {
				return nil, fmt.Errorf("биом %q ссылается на несуществующее дерево %d", b.Name, ti)
			}
		}
		p.Biomes = append(p.Biomes, b)
	}
	if len(p.Biomes) == 0 {
		return nil, fmt.Errorf("в описании планеты нет биомов")
	}

	for _, m := range f.Minerals {
		id, err := lookup(m.Block)
		if err != nil {
			return nil, err
		}
		p.Minerals = append(p.Minerals, MineralData{
			Block: id, StartHeight: m.Start, CenterHeight: m.Center, EndHeight: m.End,
			StartChance: m.StartChance, CenterChance: m.CenterChance, EndChance: m.EndChance,
			MinSize: m.MinSize, MaxSize: m.MaxSize,
		})
	}
	return p, nil
}

func orDefault(v, def NoiseParams) NoiseParams {
	if v.Octaves == 0 {
		return def
	}
	return v
}
