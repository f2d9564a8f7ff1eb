package grid

import (
	"context"
	"sync/atomic"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// Query запрос на загрузку чанка до заданного уровня генерации
type Query struct {
	Pos      vec.Vec3
	GenLevel chunk.GenLevel

	chunk    *chunk.Chunk
	done     chan struct{}
	finished atomic.Bool
}

// NewQuery создает запрос
func NewQuery(pos vec.Vec3, level chunk.GenLevel) *Query {
	return &Query{
		Pos:      pos,
		GenLevel: level,
		done:     make(chan struct{}),
	}
}

// Chunk возвращает чанк после завершения запроса
func (q *Query) Chunk() *chunk.Chunk {
	if !q.finished.Load() {
		return nil
	}
	return q.chunk
}

// IsFinished сообщает, выполнен ли запрос
func (q *Query) IsFinished() bool {
	return q.finished.Load()
}

// Done канал, закрываемый по завершении
func (q *Query) Done() <-chan struct{} {
	return q.done
}

// Wait блокируется до завершения запроса или отмены контекста
func (q *Query) Wait(ctx context.Context) (*chunk.Chunk, error) {
	select {
	case <-q.done:
		return q.chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish вызывается только владеющей горутиной сетки
func (q *Query) finish(c *chunk.Chunk) {
	if q.finished.Load() {
		return
	}
	q.chunk = c
	q.finished.Store(true)
	close(q.done)
}

type queueNode struct {
	next  atomic.Pointer[queueNode]
	query *Query
}

// QueryQueue неблокирующая очередь много производителей / один потребитель
type QueryQueue struct {
	head atomic.Pointer[queueNode]
	tail *queueNode
}

// NewQueryQueue создает пустую очередь
func NewQueryQueue() *QueryQueue {
	stub := &queueNode{}
	qq := &QueryQueue{tail: stub}
	qq.head.Store(stub)
	return qq
}

// Push добавляет запрос. Безопасно вызывать из любых горутин.
func (qq *QueryQueue) Push(q *Query) {
	n := &queueNode{query: q}
	prev := qq.head.Swap(n)
	prev.next.Store(n)
}

// Pop извлекает запрос или возвращает nil. Вызывается только потребителем.
func (qq *QueryQueue) Pop() *Query {
	next := qq.tail.next.Load()
	if next == nil {
		return nil
	}
	qq.tail = next
	q := next.query
	next.query = nil
	return q
}
