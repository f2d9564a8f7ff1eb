// Package api отдаёт состояние мира по HTTP: сводку, список чанков,
// чтение и правку блоков, метрики Prometheus.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxel-core/internal/logging"
	"github.com/annel0/voxel-core/internal/middleware"
	"github.com/annel0/voxel-core/internal/vec"
	"github.com/annel0/voxel-core/internal/world"
	"github.com/annel0/voxel-core/internal/world/block"
	"github.com/annel0/voxel-core/internal/world/grid"
)

// MaxLoadRadius ограничение радиуса для POST /api/load
const MaxLoadRadius = 8

// World операции мира, доступные по HTTP
type World interface {
	Stats() world.Stats
	Chunks() []world.ChunkInfo
	Block(p vec.Vec3) (block.BlockID, error)
	SetBlock(p vec.Vec3, id block.BlockID) error
	BreakBlock(p vec.Vec3) error
	LoadArea(center vec.Vec3, r int) []*grid.Query
	Pack() *block.Pack
}

// RestServer REST API сервер
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	world   World
	metrics *ProcessMetrics
	log     *logging.Logger
}

// Config конфигурация REST сервера
type Config struct {
	Port       string // адрес для запуска, например ":8088"
	World      World
	Registerer prometheus.Registerer // nil: глобальный регистр
	Logger     *logging.Logger
}

// NewRestServer создает сервер и настраивает маршруты
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.NewRequestLogger(config.Logger).Handler())
	router.Use(otelgin.Middleware("voxel_api"))

	promMw := middleware.NewPrometheusMiddleware("voxel_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	rs := &RestServer{
		router:  router,
		world:   config.World,
		metrics: NewProcessMetrics(),
		log:     config.Logger,
		server: &http.Server{
			Addr:              config.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	rs.setupRoutes()
	return rs
}

// Handler http.Handler сервера, используется в тестах
func (rs *RestServer) Handler() http.Handler { return rs.router }

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/chunks", rs.handleChunks)
		api.GET("/block", rs.handleGetBlock)
		api.PUT("/block", rs.handlePutBlock)
		api.DELETE("/block", rs.handleBreakBlock)
		api.POST("/load", rs.handleLoad)
	}
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BlockRequest тело PUT /api/block. Блок задаётся именем или ID.
type BlockRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Block string `json:"block"`
	ID    *int   `json:"id,omitempty"`
}

// LoadRequest тело POST /api/load, координаты в чанках
type LoadRequest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Z      int `json:"z"`
	Radius int `json:"radius"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика мира",
		Data: gin.H{
			"world":  rs.world.Stats(),
			"server": rs.metrics.Snapshot(),
		},
	})
}

func (rs *RestServer) handleChunks(c *gin.Context) {
	chunks := rs.world.Chunks()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список активных чанков",
		Data: gin.H{
			"chunks": chunks,
			"total":  len(chunks),
		},
	})
}

// queryPos читает координаты x, y, z из строки запроса
func queryPos(c *gin.Context) (vec.Vec3, bool) {
	var p vec.Vec3
	for _, f := range []struct {
		name string
		dst  *int
	}{{"x", &p.X}, {"y", &p.Y}, {"z", &p.Z}} {
		v, err := strconv.Atoi(c.Query(f.name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Неверная координата " + f.name,
			})
			return p, false
		}
		*f.dst = v
	}
	return p, true
}

// worldError переводит ошибку мира в HTTP ответ
func (rs *RestServer) worldError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, world.ErrChunkNotLoaded):
		status = http.StatusNotFound
	case errors.Is(err, world.ErrStopped):
		status = http.StatusServiceUnavailable
	default:
		rs.log.Error("Ошибка мира: %v", err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	p, ok := queryPos(c)
	if !ok {
		return
	}
	id, err := rs.world.Block(p)
	if err != nil {
		rs.worldError(c, err)
		return
	}
	b := rs.world.Pack().Get(id)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок найден",
		Data: gin.H{
			"id":   id,
			"name": b.Name,
		},
	})
}

func (rs *RestServer) handlePutBlock(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	var id block.BlockID
	switch {
	case req.ID != nil:
		id = block.BlockID(*req.ID)
	case req.Block != "":
		b, ok := rs.world.Pack().ByName(req.Block)
		if !ok {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Неизвестный блок " + req.Block,
			})
			return
		}
		id = b.ID
	default:
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Не указан блок",
		})
		return
	}

	p := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	if !rs.world.Pack().IsValidBlockID(id) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный ID блока " + strconv.Itoa(int(id)),
		})
		return
	}
	if err := rs.world.SetBlock(p, id); err != nil {
		rs.worldError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок установлен"})
}

func (rs *RestServer) handleBreakBlock(c *gin.Context) {
	p, ok := queryPos(c)
	if !ok {
		return
	}
	if err := rs.world.BreakBlock(p); err != nil {
		rs.worldError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок разрушен"})
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}
	if req.Radius < 0 || req.Radius > MaxLoadRadius {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Радиус должен быть от 0 до " + strconv.Itoa(MaxLoadRadius),
		})
		return
	}

	qs := rs.world.LoadArea(vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}, req.Radius)
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Запросы поставлены в очередь",
		Data:    gin.H{"queued": len(qs)},
	})
}

// Start запускает сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	rs.log.Info("REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
