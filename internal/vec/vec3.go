package vec

import "github.com/go-gl/mathgl/mgl64"

// Vec3 представляет трехмерный вектор с целочисленными координатами
// (координаты чанка в сетке или вокселя внутри мира)
type Vec3 struct {
	X int
	Y int
	Z int
}

// ToVec2 возвращает координаты столбца (X, Z), игнорируя высоту
func (v Vec3) ToVec2() Vec2 {
	return Vec2{
		X: v.X,
		Y: v.Z,
	}
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Scale умножает все компоненты на скаляр
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// ToMgl переводит вектор в mgl64.Vec3
func (v Vec3) ToMgl() mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

// FloorDiv делит координаты на size с округлением вниз (для отрицательных тоже)
func (v Vec3) FloorDiv(size int) Vec3 {
	return Vec3{X: floorDiv(v.X, size), Y: floorDiv(v.Y, size), Z: floorDiv(v.Z, size)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
