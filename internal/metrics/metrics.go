// Package metrics содержит Prometheus-метрики ядра вокселей.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxel"

var (
	QueriesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grid_queries_processed_total",
		Help:      "Общее число обработанных запросов чанков.",
	})
	ChunksActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chunks_active",
		Help:      "Количество чанков в активных сетках.",
	})
	ChunksFree = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chunks_free",
		Help:      "Количество чанков в пуле аллокатора.",
	})
	GenerateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generate_duration_seconds",
		Help:      "Длительность генерации одного чанка.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	MeshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mesh_duration_seconds",
		Help:      "Длительность построения меша чанка.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"kind"})
	MeshVertices = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mesh_vertices_total",
		Help:      "Общее число вершин, переданных на загрузку.",
	})
	BlockEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "block_edits_total",
		Help:      "Изменения блоков по типу операции.",
	}, []string{"op"})
	StorageBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_bytes_total",
		Help:      "Объём данных, записанных и прочитанных хранилищем.",
	}, []string{"dir"})
)

func init() {
	// Регистрируем метрики в глобальном регистре Prometheus.
	prometheus.MustRegister(
		QueriesProcessed, ChunksActive, ChunksFree,
		GenerateDuration, MeshDuration, MeshVertices,
		BlockEdits, StorageBytes,
	)
}

// ObserveSince записывает длительность с момента start в гистограмму
func ObserveSince(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}
