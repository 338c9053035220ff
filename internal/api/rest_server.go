package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/annel0/blockbyte/internal/cache"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/middleware"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GameServer то, что административный API читает у игрового сервера
type GameServer interface {
	TickCount() uint64
	StartedAt() time.Time
	Worlds() []*world.World
	Players() []*world.PlayerData
	Presence() cache.PresenceDirectory
	Index() *storage.WorldIndex
}

// RestServer представляет административный REST API
type RestServer struct {
	router  *gin.Engine
	game    GameServer
	addr    string
	metrics *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr       string     // адрес для запуска сервера
	Game       GameServer // игровой сервер
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer // источник для /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8088"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.NewRegistry()
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	router.Use(otelgin.Middleware("admin_api"))

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("admin_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:  router,
		game:    config.Game,
		addr:    config.Addr,
		metrics: NewServerMetrics(config.Game.StartedAt()),
	}
	rs.setupRoutes()
	return rs
}

func (rs *RestServer) setupRoutes() {
	// CORS для панели администратора
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := rs.router.Group("/api")
	{
		api.GET("/status", rs.handleStatus)
		api.GET("/worlds", rs.handleWorlds)
		api.GET("/players", rs.handlePlayers)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WorldInfo сводка по миру: загруженному, записанному в индекс или обоим
type WorldInfo struct {
	ID          string     `json:"id"`
	Loaded      bool       `json:"loaded"`
	Temporary   bool       `json:"temporary"`
	Chunks      int        `json:"chunks"`
	Players     int        `json:"players"`
	Seed        *int64     `json:"seed,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	LastSaved   *time.Time `json:"last_saved,omitempty"`
	SavedChunks int        `json:"saved_chunks"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStatus возвращает состояние процесса и игрового цикла
func (rs *RestServer) handleStatus(c *gin.Context) {
	worlds := rs.game.Worlds()
	chunks := 0
	for _, w := range worlds {
		chunks += w.ChunkCount()
	}

	cpuPercent, err := rs.metrics.GetCPUUsage()
	if err != nil {
		logging.GetComponentLogger("http").Debug("CPU процесса недоступен: %v", err)
	}
	systemCPU, _ := rs.metrics.GetSystemCPUUsage()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сервера",
		Data: gin.H{
			"uptime":         rs.metrics.GetUptime(),
			"uptime_seconds": int64(time.Since(rs.metrics.StartTime).Seconds()),
			"memory_mb":      rs.metrics.GetMemoryUsage(),
			"cpu_percent":    cpuPercent,
			"system_cpu":     systemCPU,
			"memory":         rs.metrics.GetDetailedMemoryStats(),
			"tick_count":     rs.game.TickCount(),
			"worlds":         len(worlds),
			"chunks":         chunks,
			"players":        len(rs.game.Players()),
			"server_time":    time.Now().Unix(),
		},
	})
}

// handleWorlds объединяет загруженные миры с индексом миров
func (rs *RestServer) handleWorlds(c *gin.Context) {
	byID := make(map[string]*WorldInfo)
	for _, w := range rs.game.Worlds() {
		id := w.ID.String()
		byID[id] = &WorldInfo{
			ID:          id,
			Loaded:      true,
			Temporary:   w.Temporary(),
			Chunks:      w.ChunkCount(),
			Players:     len(w.Players()),
			SavedChunks: w.SavedChunks(),
		}
	}

	if index := rs.game.Index(); index != nil {
		metas, err := index.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, GenericResponse{
				Success: false,
				Message: "Не удалось прочитать индекс миров",
			})
			return
		}
		for _, meta := range metas {
			info, ok := byID[meta.ID]
			if !ok {
				info = &WorldInfo{ID: meta.ID, SavedChunks: meta.SavedChunks}
				byID[meta.ID] = info
			}
			seed, created, saved := meta.Seed, meta.CreatedAt, meta.LastSaved
			info.Seed = &seed
			info.CreatedAt = &created
			if !saved.IsZero() {
				info.LastSaved = &saved
			}
			if !info.Loaded {
				info.SavedChunks = meta.SavedChunks
			}
		}
	}

	worlds := make([]*WorldInfo, 0, len(byID))
	for _, info := range byID {
		worlds = append(worlds, info)
	}
	sort.Slice(worlds, func(i, j int) bool { return worlds[i].ID < worlds[j].ID })

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список миров получен",
		Data: gin.H{
			"worlds": worlds,
			"total":  len(worlds),
		},
	})
}

// handlePlayers отдаёт каталог присутствия, а без него игроков этого процесса
func (rs *RestServer) handlePlayers(c *gin.Context) {
	source := "local"
	var players []cache.Presence

	if dir := rs.game.Presence(); dir != nil {
		list, err := dir.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, GenericResponse{
				Success: false,
				Message: "Каталог присутствия недоступен",
			})
			return
		}
		source = "presence"
		players = list
	} else {
		now := time.Now()
		for _, p := range rs.game.Players() {
			e := p.Entity()
			loc := e.Location()
			players = append(players, cache.Presence{
				ID:        e.ID().String(),
				ClientID:  e.ClientID(),
				World:     loc.World().ID.String(),
				Position:  loc.Position,
				UpdatedAt: now,
			})
		}
	}
	if players == nil {
		players = []cache.Presence{}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ClientID < players[j].ClientID })

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список игроков получен",
		Data: gin.H{
			"players": players,
			"total":   len(players),
			"source":  source,
		},
	})
}

// Handler возвращает gin-роутер, пригодный для httptest
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// ListenAndServe обслуживает запросы до отмены ctx
func (rs *RestServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: rs.addr, Handler: rs.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.GetComponentLogger("http").Info("Административный API слушает %s", rs.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
