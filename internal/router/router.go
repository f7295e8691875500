package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/handler"
	"github.com/stemsi/mcqprep-backend/internal/middleware"
	"github.com/stemsi/mcqprep-backend/internal/response"
	"github.com/stemsi/mcqprep-backend/internal/service"
)

// catalogMaxAge is how long clients may cache the selection catalog.
const catalogMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog *handler.CatalogHandler
	Quiz    *handler.QuizHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tickets *service.TicketService,
	startLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// ─── 1. Public Group (No Ticket) ───────────────────────────────────
	api.GET("/catalog", middleware.CacheControl(catalogMaxAge), handlers.Catalog.GetCatalog)
	api.POST("/sessions", startLimiter.Middleware(), middleware.NoStore(), handlers.Quiz.StartSession)

	// ─── 2. Session Group (Session Ticket) ─────────────────────────────
	sessions := api.Group("/sessions/:session_id")
	sessions.Use(
		middleware.ValidSessionID(),
		middleware.RequireSessionTicket(tickets),
		middleware.NoStore(),
	)
	{
		sessions.GET("", handlers.Quiz.GetSession)
		sessions.DELETE("", handlers.Quiz.CloseSession)
		sessions.PUT("/selection", handlers.Quiz.Reselect)
		sessions.POST("/answer", handlers.Quiz.Answer)
		sessions.POST("/next", handlers.Quiz.Next)
		sessions.POST("/goto", handlers.Quiz.GoTo)
		sessions.POST("/advance", handlers.Quiz.Advance)
		sessions.POST("/submit", handlers.Quiz.Submit)
		sessions.GET("/result", handlers.Quiz.GetResult)
	}

	// ─── 3. WebSocket Group (Ticket via ?token=) ───────────────────────
	ws := router.Group("/ws/v1/sessions/:session_id")
	ws.Use(
		middleware.ValidSessionID(),
		middleware.RequireSessionTicket(tickets),
	)
	{
		ws.GET("/stream", handlers.WS.SessionStream)
	}

	return router
}
