package block

import (
	"errors"
	"fmt"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	NONE      BlockID = iota // 0 - воздух
	STONE                    // 1
	DIRT                     // 2
	DIRTGRASS                // 3
	SAND                     // 4
	SNOW                     // 5
	ICE                      // 6
	FIRE                     // 7
	LEAVES                   // 8
	GRAVEL                   // 9
	CLAY                     // 10
	WOOD                     // 11
	GLASS                    // 12
	TORCH                    // 13

	// Растительность (начиная с 32)
	TALLGRASS BlockID = 32 // крестовая флора
	FLOWER    BlockID = 33 // обычная флора
	MUSHROOM  BlockID = 34

	// Руды (начиная с 64)
	COALORE   BlockID = 64
	IRONORE   BlockID = 65
	GOLDORE   BlockID = 66
	COPPERORE BlockID = 67

	// Жидкости занимают диапазон LOWWATER..FULLWATER, уровень = ID-LOWWATER+1
	LOWWATER  BlockID = 256
	FULLWATER BlockID = LOWWATER + 99
)

// MaxLiquidLevel максимальный уровень жидкости
const MaxLiquidLevel = 100

// ErrInvalidPack возвращается при некорректном описании набора блоков
var ErrInvalidPack = errors.New("некорректный набор блоков")

// Pack содержит определения блоков одного мира. Заменяет глобальную таблицу:
// передается явно в генератор, мешер и апдейтер.
type Pack struct {
	blocks  []*Block
	byName  map[string]BlockID
	unknown Block
}

// NewPack создает пустой набор блоков
func NewPack() *Pack {
	return &Pack{
		byName:  make(map[string]BlockID),
		unknown: Block{ID: NONE, Name: "unknown", MeshType: MeshNone, ColorFilter: White},
	}
}

// Register добавляет блок в набор
func (p *Pack) Register(b *Block) error {
	if b == nil {
		return fmt.Errorf("%w: пустой блок", ErrInvalidPack)
	}
	if prev, ok := p.byName[b.Name]; ok && prev != b.ID {
		return fmt.Errorf("%w: имя %q уже занято блоком %d", ErrInvalidPack, b.Name, prev)
	}
	for int(b.ID) >= len(p.blocks) {
		p.blocks = append(p.blocks, nil)
	}
	p.blocks[b.ID] = b
	p.byName[b.Name] = b.ID
	return nil
}

// Get возвращает блок по ID. Для неизвестного ID возвращается прозрачный блок-заглушка.
func (p *Pack) Get(id BlockID) *Block {
	if int(id) < len(p.blocks) {
		if b := p.blocks[id]; b != nil {
			return b
		}
	}
	return &p.unknown
}

// ByName ищет блок по имени
func (p *Pack) ByName(name string) (*Block, bool) {
	id, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.blocks[id], true
}

// IsValidBlockID проверяет, зарегистрирован ли ID
func (p *Pack) IsValidBlockID(id BlockID) bool {
	return int(id) < len(p.blocks) && p.blocks[id] != nil
}

// Len количество зарегистрированных блоков
func (p *Pack) Len() int {
	return len(p.byName)
}

// IsLiquid проверяет, относится ли ID к диапазону жидкостей
func IsLiquid(id BlockID) bool {
	return id >= LOWWATER && id <= FULLWATER
}
