package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, Vec3{X: -1, Y: 0, Z: 1}, Vec3{X: -1, Y: 31, Z: 32}.FloorDiv(32))
	assert.Equal(t, Vec3{X: -2, Y: -1, Z: 0}, Vec3{X: -33, Y: -32, Z: 0}.FloorDiv(32))
}

func TestVec3Helpers(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	assert.Equal(t, Vec2{X: 1, Y: 3}, a.ToVec2(), "столбец должен браться по X и Z")
	assert.Equal(t, 14.0, a.DistanceTo(Vec3{}))
	assert.True(t, a.Add(Vec3{X: 1}).Equals(Vec3{X: 2, Y: 2, Z: 3}))
}
