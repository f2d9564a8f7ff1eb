package block

import "math/rand"

// MethodKind способ выбора варианта текстуры
type MethodKind string

const (
	MethodNone       MethodKind = "none"
	MethodConnected  MethodKind = "connected"
	MethodRandom     MethodKind = "random"
	MethodGrass      MethodKind = "grass"
	MethodHorizontal MethodKind = "horizontal"
	MethodVertical   MethodKind = "vertical"
	MethodRepeat     MethodKind = "repeat"
)

// MethodParams параметры способа. Каждый способ читает только свои поля.
type MethodParams struct {
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
	Weights []float64 `json:"weights,omitempty"`
}

// TextureContext окружение грани, для которой выбирается вариант текстуры
type TextureContext struct {
	Face    int
	X, Y, Z int // мировые координаты вокселя
	// Same сообщает, совпадает ли тип соседа со смещением (dx,dy,dz) с текущим блоком
	Same func(dx, dy, dz int) bool
}

// TextureMethod стратегия вычисления смещения варианта текстуры
type TextureMethod interface {
	Offset(ctx *TextureContext, p *MethodParams) int
}

var textureMethods = map[MethodKind]TextureMethod{
	MethodNone:       noneMethod{},
	MethodConnected:  connectedMethod{},
	MethodRandom:     randomMethod{},
	MethodGrass:      grassMethod{},
	MethodHorizontal: horizontalMethod{},
	MethodVertical:   verticalMethod{},
	MethodRepeat:     repeatMethod{},
}

// LookupMethod возвращает стратегию по имени
func LookupMethod(kind MethodKind) (TextureMethod, bool) {
	if kind == "" {
		kind = MethodNone
	}
	m, ok := textureMethods[kind]
	return m, ok
}

// Resolve возвращает итоговый индекс текстуры в атласе
func (t *TextureLayer) Resolve(ctx *TextureContext) int {
	if t.Method == nil {
		return t.Index
	}
	return t.Index + t.Method.Offset(ctx, &t.Params)
}

// faceAxes возвращает единичные векторы "вправо" и "вверх" в плоскости грани
func faceAxes(face int) (u, v [3]int) {
	switch face {
	case FaceLeft:
		return [3]int{0, 0, 1}, [3]int{0, 1, 0}
	case FaceRight:
		return [3]int{0, 0, -1}, [3]int{0, 1, 0}
	case FaceBottom:
		return [3]int{1, 0, 0}, [3]int{0, 0, -1}
	case FaceTop:
		return [3]int{1, 0, 0}, [3]int{0, 0, 1}
	case FaceBack:
		return [3]int{-1, 0, 0}, [3]int{0, 1, 0}
	default:
		return [3]int{1, 0, 0}, [3]int{0, 1, 0}
	}
}

func faceNormal(face int) [3]int {
	switch face {
	case FaceLeft:
		return [3]int{-1, 0, 0}
	case FaceRight:
		return [3]int{1, 0, 0}
	case FaceBottom:
		return [3]int{0, -1, 0}
	case FaceTop:
		return [3]int{0, 1, 0}
	case FaceBack:
		return [3]int{0, 0, -1}
	default:
		return [3]int{0, 0, 1}
	}
}

func sameAlong(ctx *TextureContext, a [3]int, sign int) bool {
	if ctx.Same == nil {
		return false
	}
	return ctx.Same(a[0]*sign, a[1]*sign, a[2]*sign)
}

type noneMethod struct{}

func (noneMethod) Offset(*TextureContext, *MethodParams) int { return 0 }

// connectedMethod 16 вариантов по маске соседей: верх, право, низ, лево
type connectedMethod struct{}

func (connectedMethod) Offset(ctx *TextureContext, _ *MethodParams) int {
	u, v := faceAxes(ctx.Face)
	mask := 0
	if sameAlong(ctx, v, 1) {
		mask |= 1
	}
	if sameAlong(ctx, u, 1) {
		mask |= 2
	}
	if sameAlong(ctx, v, -1) {
		mask |= 4
	}
	if sameAlong(ctx, u, -1) {
		mask |= 8
	}
	return mask
}

type horizontalMethod struct{}

func (horizontalMethod) Offset(ctx *TextureContext, _ *MethodParams) int {
	u, _ := faceAxes(ctx.Face)
	off := 0
	if sameAlong(ctx, u, -1) {
		off |= 1
	}
	if sameAlong(ctx, u, 1) {
		off |= 2
	}
	return off
}

type verticalMethod struct{}

func (verticalMethod) Offset(ctx *TextureContext, _ *MethodParams) int {
	_, v := faceAxes(ctx.Face)
	off := 0
	if sameAlong(ctx, v, 1) {
		off |= 1
	}
	if sameAlong(ctx, v, -1) {
		off |= 2
	}
	return off
}

// grassMethod: боковая грань травы берёт второй вариант, если трава продолжается ниже по склону
type grassMethod struct{}

func (grassMethod) Offset(ctx *TextureContext, _ *MethodParams) int {
	if ctx.Face == FaceTop || ctx.Face == FaceBottom || ctx.Same == nil {
		return 0
	}
	n := faceNormal(ctx.Face)
	if ctx.Same(n[0], -1, n[2]) {
		return 1
	}
	return 0
}

type repeatMethod struct{}

func (repeatMethod) Offset(ctx *TextureContext, p *MethodParams) int {
	w, h := p.Width, p.Height
	if w <= 0 || h <= 0 {
		return 0
	}
	u, v := faceAxes(ctx.Face)
	pu := u[0]*ctx.X + u[1]*ctx.Y + u[2]*ctx.Z
	pv := v[0]*ctx.X + v[1]*ctx.Y + v[2]*ctx.Z
	return mod(pu, w) + (h-1-mod(pv, h))*w
}

// randomMethod выбирает вариант по весам, детерминированно от позиции
type randomMethod struct{}

func (randomMethod) Offset(ctx *TextureContext, p *MethodParams) int {
	r := rand.New(rand.NewSource(PositionSeed(ctx.X+ctx.Y*7, ctx.Z-ctx.Y*13)))
	if len(p.Weights) == 0 {
		n := p.Width * p.Height
		if n <= 1 {
			return 0
		}
		return r.Intn(n)
	}
	total := 0.0
	for _, w := range p.Weights {
		total += w
	}
	pick := r.Float64() * total
	for i, w := range p.Weights {
		pick -= w
		if pick < 0 {
			return i
		}
	}
	return len(p.Weights) - 1
}

// PositionSeed сид для детерминированных случайных вариантов по столбцу (x, z)
func PositionSeed(x, z int) int64 {
	return int64(((x & 0x7FF) << 10) | (z & 0x3FF))
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
