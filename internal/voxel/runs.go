// Package voxel хранит данные чанка в виде отсортированных интервалов
// (run-length) с возможностью перевода в плотный массив.
package voxel

import (
	"errors"
	"fmt"
	"sort"
)

// Size количество ячеек в чанке 32x32x32
const Size = 32 * 32 * 32

// ErrBadRuns возвращается при загрузке интервалов, не покрывающих чанк целиком
var ErrBadRuns = errors.New("интервалы не покрывают чанк")

// Value допустимые типы значений в хранилище
type Value interface {
	~uint8 | ~uint16
}

// Run непрерывный интервал одинаковых значений
type Run[T Value] struct {
	Start  uint32 `json:"s"`
	Length uint32 `json:"l"`
	Data   T      `json:"d"`
}

// End возвращает индекс за последней ячейкой интервала
func (r Run[T]) End() uint32 { return r.Start + r.Length }

// State режим хранения
type State int

const (
	Interval State = iota
	Array
)

func (s State) String() string {
	if s == Array {
		return "array"
	}
	return "interval"
}

// RunStorage хранит 32768 значений либо интервалами, либо массивом.
// Потокобезопасность обеспечивается снаружи (блокировкой мира).
type RunStorage[T Value] struct {
	state State
	runs  []Run[T]
	data  []T
}

// NewRunStorage создает хранилище, заполненное нулями
func NewRunStorage[T Value]() *RunStorage[T] {
	s := &RunStorage[T]{}
	s.Clear()
	return s
}

// Clear сбрасывает хранилище в один нулевой интервал
func (s *RunStorage[T]) Clear() {
	s.state = Interval
	s.data = nil
	s.runs = append(s.runs[:0], Run[T]{Start: 0, Length: Size})
}

// State возвращает текущий режим хранения
func (s *RunStorage[T]) State() State { return s.state }

// NumRuns количество интервалов (в режиме массива 0)
func (s *RunStorage[T]) NumRuns() int {
	if s.state == Array {
		return 0
	}
	return len(s.runs)
}

// Len суммарная покрытая длина, всегда Size
func (s *RunStorage[T]) Len() int {
	if s.state == Array {
		return len(s.data)
	}
	n := 0
	for _, r := range s.runs {
		n += int(r.Length)
	}
	return n
}

func checkIndex(i int) {
	if i < 0 || i >= Size {
		panic(fmt.Sprintf("voxel: индекс %d вне чанка", i))
	}
}

// findRun бинарный поиск интервала, содержащего i
func (s *RunStorage[T]) findRun(i int) int {
	idx := uint32(i)
	return sort.Search(len(s.runs), func(k int) bool {
		return s.runs[k].End() > idx
	})
}

// Get возвращает значение ячейки i
func (s *RunStorage[T]) Get(i int) T {
	checkIndex(i)
	if s.state == Array {
		return s.data[i]
	}
	return s.runs[s.findRun(i)].Data
}

// Set записывает значение ячейки i
func (s *RunStorage[T]) Set(i int, v T) {
	checkIndex(i)
	if s.state == Array {
		s.data[i] = v
		return
	}

	k := s.findRun(i)
	r := s.runs[k]
	if r.Data == v {
		return
	}
	idx := uint32(i)

	// Ячейка на краю интервала может слиться с соседом
	if r.Length == 1 {
		s.runs[k].Data = v
		s.coalesce(k)
		return
	}
	if idx == r.Start {
		if k > 0 && s.runs[k-1].Data == v {
			s.runs[k-1].Length++
		} else {
			s.insert(k, Run[T]{Start: idx, Length: 1, Data: v})
			k++
		}
		s.runs[k].Start++
		s.runs[k].Length--
		return
	}
	if idx == r.End()-1 {
		s.runs[k].Length--
		if k+1 < len(s.runs) && s.runs[k+1].Data == v {
			s.runs[k+1].Start--
			s.runs[k+1].Length++
		} else {
			s.insert(k+1, Run[T]{Start: idx, Length: 1, Data: v})
		}
		return
	}

	// Разбиваем на три интервала
	before := Run[T]{Start: r.Start, Length: idx - r.Start, Data: r.Data}
	mid := Run[T]{Start: idx, Length: 1, Data: v}
	after := Run[T]{Start: idx + 1, Length: r.End() - idx - 1, Data: r.Data}
	s.runs[k] = before
	s.insert(k+1, mid)
	s.insert(k+2, after)
}

func (s *RunStorage[T]) insert(at int, r Run[T]) {
	s.runs = append(s.runs, Run[T]{})
	copy(s.runs[at+1:], s.runs[at:])
	s.runs[at] = r
}

// coalesce сливает интервал k с равными соседями
func (s *RunStorage[T]) coalesce(k int) {
	if k+1 < len(s.runs) && s.runs[k+1].Data == s.runs[k].Data {
		s.runs[k].Length += s.runs[k+1].Length
		s.runs = append(s.runs[:k+1], s.runs[k+2:]...)
	}
	if k > 0 && s.runs[k-1].Data == s.runs[k].Data {
		s.runs[k-1].Length += s.runs[k].Length
		s.runs = append(s.runs[:k], s.runs[k+1:]...)
	}
}

// InitFromSortedRuns загружает готовый список интервалов (результат генератора).
// Соседние равные интервалы склеиваются.
func (s *RunStorage[T]) InitFromSortedRuns(runs []Run[T]) error {
	var next uint32
	out := make([]Run[T], 0, len(runs))
	for _, r := range runs {
		if r.Length == 0 {
			continue
		}
		if r.Start != next {
			return fmt.Errorf("%w: интервал начинается с %d, ожидалось %d", ErrBadRuns, r.Start, next)
		}
		if end := r.End(); end < r.Start || end > Size {
			return fmt.Errorf("%w: интервал %d+%d выходит за чанк", ErrBadRuns, r.Start, r.Length)
		}
		next = r.End()
		if n := len(out); n > 0 && out[n-1].Data == r.Data {
			out[n-1].Length += r.Length
			continue
		}
		out = append(out, r)
	}
	if next != Size {
		return fmt.Errorf("%w: покрыто %d ячеек", ErrBadRuns, next)
	}
	s.state = Interval
	s.data = nil
	s.runs = out
	return nil
}

// InitFromArray загружает плотный массив в текущем режиме хранения
func (s *RunStorage[T]) InitFromArray(data []T) {
	if len(data) != Size {
		panic(fmt.Sprintf("voxel: длина массива %d", len(data)))
	}
	if s.state == Array {
		if s.data == nil {
			s.data = make([]T, Size)
		}
		copy(s.data, data)
		return
	}
	s.runs = compress(s.runs[:0], data)
}

// ToArray копирует значения в dst (длиной не меньше Size) и возвращает его
func (s *RunStorage[T]) ToArray(dst []T) []T {
	if dst == nil {
		dst = make([]T, Size)
	}
	if s.state == Array {
		copy(dst, s.data)
		return dst
	}
	for _, r := range s.runs {
		for i := r.Start; i < r.End(); i++ {
			dst[i] = r.Data
		}
	}
	return dst
}

// Runs возвращает копию интервалов (для массива интервалы строятся на лету)
func (s *RunStorage[T]) Runs() []Run[T] {
	if s.state == Array {
		return compress(nil, s.data)
	}
	out := make([]Run[T], len(s.runs))
	copy(out, s.runs)
	return out
}

// ChangeState переводит хранилище в другой режим без потери данных
func (s *RunStorage[T]) ChangeState(st State) {
	if st == s.state {
		return
	}
	if st == Array {
		s.data = s.ToArray(make([]T, Size))
		s.runs = s.runs[:0]
		s.state = Array
		return
	}
	s.runs = compress(s.runs[:0], s.data)
	s.data = nil
	s.state = Interval
}

func compress[T Value](dst []Run[T], data []T) []Run[T] {
	start := 0
	for i := 1; i <= len(data); i++ {
		if i == len(data) || data[i] != data[start] {
			dst = append(dst, Run[T]{Start: uint32(start), Length: uint32(i - start), Data: data[start]})
			start = i
		}
	}
	return dst
}
