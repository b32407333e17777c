package http

import (
	"todo_backend/internal/config"
	"todo_backend/internal/http/handlers"
	"todo_backend/internal/http/middleware"
	"todo_backend/internal/rpc"
	"todo_backend/internal/service"
	"todo_backend/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Todos  *service.TodoService
	RPC    *rpc.Dispatcher
	Hub    *ws.Hub
	Config *config.Config
	// Checks are extra readiness probes keyed by name (e.g. "redis").
	Checks map[string]handlers.Pinger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(cors.New(corsConfig(d.Config.AllowedOrigin)))

	RegisterRoutes(r, d)
	return r
}

func corsConfig(allowedOrigin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: allowedOrigin != "",
	}
	if allowedOrigin == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{allowedOrigin}
	}
	return cfg
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Todos, d.RPC)
	healthHandler := handlers.NewHealthHandler(d.Todos, d.Config.AppVersion)
	for name, p := range d.Checks {
		healthHandler.AddCheck(name, p)
	}

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.Config.APIRateLimit, d.Config.APIRateWindow))
	{
		v1.GET("/todos", h.ListTodos)
		v1.GET("/todos/overdue", h.OverdueTodos)
		v1.GET("/todos/:id", h.GetTodo)
		v1.POST("/todos", h.CreateTodo)
		v1.POST("/todos/reorder", h.ReorderTodos)
		v1.PATCH("/todos/:id", h.UpdateTodo)
		v1.DELETE("/todos/:id", h.DeleteTodo)

		v1.POST("/functions/:name", h.CallFunction)
	}

	// Live query + mutation socket
	r.GET("/ws", ws.HandleWS(d.Hub, d.Config.AllowedOrigin))
}
