package chunk

import (
	"sync"
)

// Allocator владеет всеми чанками и переиспользует освобождённые.
// Сетка и соседи хранят только ID.
type Allocator struct {
	mu     sync.RWMutex
	chunks map[ID]*Chunk
	free   []*Chunk
	nextID ID
}

// NewAllocator создает пустой аллокатор
func NewAllocator() *Allocator {
	return &Allocator{
		chunks: make(map[ID]*Chunk),
	}
}

// New выделяет чанк для позиции pos со свежим ID
func (a *Allocator) New(pos Pos) *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	var c *Chunk
	if n := len(a.free); n > 0 {
		c = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		c = newChunk()
	}

	a.nextID++
	c.ID = a.nextID
	c.Epoch++
	c.Pos = pos
	a.chunks[c.ID] = c
	return c
}

// Get возвращает живой чанк по ID или nil
func (a *Allocator) Get(id ID) *Chunk {
	if id == NoID {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chunks[id]
}

// Evict помечает чанк удалённым из сетки. Если ссылок нет, чанк сразу
// возвращается в пул. Возвращает true, если чанк переработан.
func (a *Allocator) Evict(c *Chunk) bool {
	c.evicted = true
	if c.RefCount() > 0 {
		return false
	}
	a.recycle(c)
	return true
}

// Release снимает ссылку. Удалённый чанк без ссылок уходит в пул.
// Вызывается только из владеющей горутины мира.
func (a *Allocator) Release(c *Chunk) bool {
	if c.DecRef() > 0 || !c.evicted {
		return false
	}
	a.recycle(c)
	return true
}

func (a *Allocator) recycle(c *Chunk) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.chunks[c.ID]; !ok {
		return
	}
	delete(a.chunks, c.ID)
	epoch := c.Epoch
	c.Clear()
	c.Epoch = epoch
	a.free = append(a.free, c)
}

// Stats возвращает число живых и свободных чанков
func (a *Allocator) Stats() (live, free int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chunks), len(a.free)
}
