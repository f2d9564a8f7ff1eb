package voxel

// Упаковка цветного света лампы: по 5 бит на канал в uint16
const (
	LampRedMask   uint16 = 0x7C00
	LampGreenMask uint16 = 0x3E0
	LampBlueMask  uint16 = 0x1F
	LampRedShift         = 10
	LampGreenShift       = 5
)

// PackLamp собирает значение лампы из трёх каналов 0..31
func PackLamp(r, g, b uint8) uint16 {
	return uint16(r&0x1F)<<LampRedShift | uint16(g&0x1F)<<LampGreenShift | uint16(b&0x1F)
}

// LampRed возвращает красный канал
func LampRed(v uint16) uint8 { return uint8((v & LampRedMask) >> LampRedShift) }

// LampGreen возвращает зелёный канал
func LampGreen(v uint16) uint8 { return uint8((v & LampGreenMask) >> LampGreenShift) }

// LampBlue возвращает синий канал
func LampBlue(v uint16) uint8 { return uint8(v & LampBlueMask) }
