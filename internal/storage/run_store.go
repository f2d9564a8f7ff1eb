// Package storage сохраняет интервалы вокселей чанков в BadgerDB, Redis,
// MariaDB, MongoDB или в памяти.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/voxel"
	"github.com/annel0/voxel-core/internal/world/chunk"
)

// ErrNotReady хранилище закрыто или не открыто
var ErrNotReady = errors.New("хранилище не готово")

// RunStore контракт чтения и записи интервалов чанка
type RunStore interface {
	// SaveRuns записывает интервалы чанка под ключом key
	SaveRuns(ctx context.Context, key Key, runs *ChunkRuns) error
	// LoadRuns читает интервалы. false, если чанк ещё не сохранялся.
	LoadRuns(ctx context.Context, key Key) (*ChunkRuns, bool, error)
	Close() error
}

// Key адрес чанка: грань планеты и координата в сетке
type Key struct {
	Face int
	Pos  vec.Vec3
}

// KeyOf ключ для позиции чанка
func KeyOf(p chunk.Pos) Key {
	return Key{Face: p.Face, Pos: p.Vec3}
}

func (k Key) String() string {
	return fmt.Sprintf("chunk:%d:%d:%d:%d", k.Face, k.Pos.X, k.Pos.Y, k.Pos.Z)
}

// ChunkRuns сохранённое содержимое чанка
type ChunkRuns struct {
	SessionID uuid.UUID           `json:"session"`
	SavedAt   time.Time           `json:"saved_at"`
	NumBlocks int                 `json:"num_blocks"`
	Blocks    []voxel.Run[uint16] `json:"blocks"`
	Lamp      []voxel.Run[uint16] `json:"lamp"`
	Sun       []voxel.Run[uint8]  `json:"sun"`
}

// Snapshot копирует интервалы чанка. Вызывается под World.ModifyLock.
func Snapshot(c *chunk.Chunk, session uuid.UUID) *ChunkRuns {
	return &ChunkRuns{
		SessionID: session,
		SavedAt:   time.Now(),
		NumBlocks: c.NumBlocks,
		Blocks:    c.Blocks.Runs(),
		Lamp:      c.Lamp.Runs(),
		Sun:       c.Sun.Runs(),
	}
}

// Apply загружает интервалы в чанк
func (r *ChunkRuns) Apply(c *chunk.Chunk) error {
	if err := c.Blocks.InitFromSortedRuns(r.Blocks); err != nil {
		return fmt.Errorf("блоки: %w", err)
	}
	if err := c.Lamp.InitFromSortedRuns(r.Lamp); err != nil {
		return fmt.Errorf("лампы: %w", err)
	}
	if err := c.Sun.InitFromSortedRuns(r.Sun); err != nil {
		return fmt.Errorf("солнце: %w", err)
	}
	c.NumBlocks = r.NumBlocks
	return nil
}
