package world

import (
	"sync/atomic"

	"github.com/annel0/voxel-core/internal/world/chunk"
	"github.com/annel0/voxel-core/internal/world/mesher"
)

// StatsSink MeshSink без рендера: только считает загрузки и вершины.
// Используется сервером, когда рендер живёт в другом процессе.
type StatsSink struct {
	uploads  atomic.Int64
	empty    atomic.Int64
	vertices atomic.Int64
	water    atomic.Int64
}

func (s *StatsSink) BeginUpload(id chunk.ID, data *mesher.MeshData) {
	s.uploads.Add(1)
	if data.Empty() {
		s.empty.Add(1)
		return
	}
	s.vertices.Add(int64(len(data.Vertices) + len(data.TransVertices) + len(data.CutoutVertices)))
	s.water.Add(int64(len(data.WaterVertices)))
}

// SinkStats счётчики StatsSink
type SinkStats struct {
	Uploads  int64 `json:"uploads"`
	Empty    int64 `json:"empty"`
	Vertices int64 `json:"vertices"`
	Water    int64 `json:"water_vertices"`
}

func (s *StatsSink) Stats() SinkStats {
	return SinkStats{
		Uploads:  s.uploads.Load(),
		Empty:    s.empty.Load(),
		Vertices: s.vertices.Load(),
		Water:    s.water.Load(),
	}
}
