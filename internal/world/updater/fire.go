package updater

import (
	"github.com/annel0/voxel-core/internal/metrics"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Множители вероятности возгорания по положению относительно огня
const (
	sideTopMult = 1.5
	topMult     = 2.0
	sideBotMult = 0.5
	botMult     = 0.8
)

type firePath struct {
	dirs []int
	mult float32
}

// firePaths ячейки, которые проверяет огонь: соседи по граням и рёбрам.
// Угловые диагонали есть только у боковых соседей по x.
var firePaths = func() []firePath {
	var paths []firePath
	for _, side := range []int{chunk.Left, chunk.Right} {
		paths = append(paths,
			firePath{[]int{side}, 1},
			firePath{[]int{side, chunk.Front}, 1},
			firePath{[]int{side, chunk.Back}, 1},
			firePath{[]int{side, chunk.Top}, sideTopMult},
			firePath{[]int{side, chunk.Top, chunk.Front}, sideTopMult},
			firePath{[]int{side, chunk.Top, chunk.Back}, sideTopMult},
			firePath{[]int{side, chunk.Bottom}, sideBotMult},
			firePath{[]int{side, chunk.Bottom, chunk.Front}, sideBotMult},
			firePath{[]int{side, chunk.Bottom, chunk.Back}, sideBotMult},
		)
	}
	for _, side := range []int{chunk.Front, chunk.Back} {
		paths = append(paths,
			firePath{[]int{side}, 1},
			firePath{[]int{side, chunk.Top}, sideTopMult},
			firePath{[]int{side, chunk.Bottom}, sideBotMult},
		)
	}
	return append(paths,
		firePath{[]int{chunk.Top}, topMult},
		firePath{[]int{chunk.Top, chunk.Front}, sideTopMult},
		firePath{[]int{chunk.Top, chunk.Back}, sideTopMult},
		firePath{[]int{chunk.Bottom}, botMult},
		firePath{[]int{chunk.Bottom, chunk.Front}, sideBotMult},
		firePath{[]int{chunk.Bottom, chunk.Back}, sideBotMult},
	)
}()

// UpdateFireBlock сжигает соседей огня, пытается поджечь ячейки вокруг и гасит сам огонь
func (u *Updater) UpdateFireBlock(c *chunk.Chunk, idx int) {
	u.BurnAdjacentBlocks(c, idx)

	for _, p := range firePaths {
		owner, i := c, idx
		for _, dir := range p.dirs {
			if owner, i = u.neighbor(owner, i, dir); owner == nil {
				break
			}
		}
		if owner != nil {
			u.CheckBurnBlock(owner, i, p.mult)
		}
	}

	u.RemoveBlock(c, idx, false)
}

var burnOrder = [...]int{chunk.Bottom, chunk.Left, chunk.Right, chunk.Back, chunk.Front, chunk.Top}

// BurnAdjacentBlocks сжигает горючие блоки по шести граням: блок
// превращается в BurnTransformID или разрушается
func (u *Updater) BurnAdjacentBlocks(c *chunk.Chunk, idx int) {
	for _, dir := range burnOrder {
		owner, i := u.neighbor(c, idx, dir)
		if owner == nil {
			continue
		}
		b := u.pack.Get(owner.BlockID(i))
		if b.Flammability == 0 {
			continue
		}
		if b.BurnTransformID == block.NONE {
			u.RemoveBlock(owner, i, true)
		} else {
			owner.SetBlockID(i, b.BurnTransformID)
		}
		owner.ChangeState(chunk.StateMesh)
		metrics.BlockEdits.WithLabelValues("burn").Inc()
	}
}

// CheckBurnBlock поджигает пустую или хрупкую ячейку с вероятностью BurnProbability*mult
func (u *Updater) CheckBurnBlock(owner *chunk.Chunk, idx int, mult float32) {
	id := owner.BlockID(idx)
	if id != block.NONE && !u.pack.Get(id).WaterBreak {
		return
	}
	p := u.BurnProbability(owner, idx) * mult
	if p > 0 && u.rng.Float32() <= p {
		u.PlaceBlock(owner, idx, block.FIRE)
	}
}

// BurnProbability средняя горючесть шести соседей ячейки
func (u *Updater) BurnProbability(c *chunk.Chunk, idx int) float32 {
	var f float32
	for _, dir := range burnOrder {
		if owner, i := u.neighbor(c, idx, dir); owner != nil {
			f += u.pack.Get(owner.BlockID(i)).Flammability
		}
	}
	if f < 0 {
		return 0
	}
	return f / 6
}
