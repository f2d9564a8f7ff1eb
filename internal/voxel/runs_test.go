package voxel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSorted[T Value](t *testing.T, s *RunStorage[T]) {
	t.Helper()
	var next uint32
	for k, r := range s.runs {
		require.Equal(t, next, r.Start, "интервал %d начинается не там", k)
		require.NotZero(t, r.Length)
		if k > 0 {
			require.NotEqual(t, s.runs[k-1].Data, r.Data, "соседние интервалы не склеены")
		}
		next = r.End()
	}
	require.Equal(t, uint32(Size), next)
}

func TestSetGet(t *testing.T) {
	s := NewRunStorage[uint16]()
	s.Set(100, 7)
	s.Set(101, 7)
	s.Set(0, 3)
	s.Set(Size-1, 9)

	assert.Equal(t, uint16(7), s.Get(100))
	assert.Equal(t, uint16(7), s.Get(101))
	assert.Equal(t, uint16(0), s.Get(102))
	assert.Equal(t, uint16(3), s.Get(0))
	assert.Equal(t, uint16(9), s.Get(Size-1))
	assert.Equal(t, Size, s.Len())
	assertSorted(t, s)

	// Возврат к исходному значению склеивает интервалы обратно
	s.Set(100, 0)
	s.Set(101, 0)
	s.Set(0, 0)
	s.Set(Size-1, 0)
	assert.Equal(t, 1, s.NumRuns())
}

func TestRandomEditsMatchArray(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewRunStorage[uint8]()
	ref := make([]uint8, Size)
	for n := 0; n < 5000; n++ {
		i := rng.Intn(Size)
		v := uint8(rng.Intn(3))
		s.Set(i, v)
		ref[i] = v
	}
	assertSorted(t, s)
	assert.Equal(t, ref, s.ToArray(nil))
}

func TestChangeStateRoundTrip(t *testing.T) {
	s := NewRunStorage[uint16]()
	for i := 0; i < 1024; i++ {
		s.Set(i, 5)
	}
	s.Set(5000, 2)
	before := s.Runs()

	s.ChangeState(Array)
	assert.Equal(t, Array, s.State())
	assert.Equal(t, uint16(2), s.Get(5000))
	s.Set(6000, 4)
	s.Set(6000, 0)

	s.ChangeState(Interval)
	assert.Equal(t, before, s.Runs())
	assertSorted(t, s)
}

func TestInitFromSortedRuns(t *testing.T) {
	s := NewRunStorage[uint16]()
	err := s.InitFromSortedRuns([]Run[uint16]{
		{Start: 0, Length: 1024, Data: 1},
		{Start: 1024, Length: 1024, Data: 1},
		{Start: 2048, Length: Size - 2048, Data: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumRuns(), "равные соседние интервалы склеиваются")

	err = s.InitFromSortedRuns([]Run[uint16]{{Start: 0, Length: 10}})
	assert.ErrorIs(t, err, ErrBadRuns)
}

func TestInitFromSortedRunsRejectsOverflow(t *testing.T) {
	s := NewRunStorage[uint16]()
	require.NoError(t, s.InitFromSortedRuns([]Run[uint16]{{Start: 0, Length: Size, Data: 3}}))

	// Конец второго интервала переполняет uint32 и попадает ровно в Size
	err := s.InitFromSortedRuns([]Run[uint16]{
		{Start: 0, Length: Size + 1, Data: 1},
		{Start: Size + 1, Length: math.MaxUint32, Data: 2},
	})
	assert.ErrorIs(t, err, ErrBadRuns)

	err = s.InitFromSortedRuns([]Run[uint16]{{Start: 0, Length: Size + 5, Data: 1}})
	assert.ErrorIs(t, err, ErrBadRuns, "интервал длиннее чанка")

	assert.Equal(t, uint16(3), s.Get(Size-1), "при ошибке данные не меняются")
	assertSorted(t, s)
}

func TestOutOfRangePanics(t *testing.T) {
	s := NewRunStorage[uint8]()
	assert.Panics(t, func() { s.Get(Size) })
	assert.Panics(t, func() { s.Set(-1, 1) })
}

func TestLampPacking(t *testing.T) {
	v := PackLamp(31, 7, 1)
	assert.Equal(t, uint8(31), LampRed(v))
	assert.Equal(t, uint8(7), LampGreen(v))
	assert.Equal(t, uint8(1), LampBlue(v))
}
