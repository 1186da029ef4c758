// Package handler serves the story site: HTML pages, the JSON story API and
// the websocket play endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyworld/internal/session"
	"storyworld/internal/storysource"
	"storyworld/internal/web"
)

// Handler holds the dependencies of every route.
type Handler struct {
	source   storysource.Source
	sessions *session.Manager
	logger   *zap.Logger
}

// New creates a Handler.
func New(source storysource.Source, sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		source:   source,
		sessions: sessions,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes registers all routes on router. limiter guards the login,
// signup and play routes; nil disables rate limiting. router.HTMLRender must
// be a web.Renderer.
func (h *Handler) RegisterRoutes(router *gin.Engine, limiter gin.HandlerFunc) {
	if limiter == nil {
		limiter = func(c *gin.Context) { c.Next() }
	}

	router.GET("/health", health)
	router.HEAD("/health", health)
	router.StaticFS("/static", web.Static())

	router.GET("/", h.home)
	router.GET("/login", h.loginForm)
	router.POST("/login", limiter, h.login)
	router.GET("/signup", h.signupForm)
	router.POST("/signup", limiter, h.signup)
	router.GET("/mainpage", h.dashboard)
	router.GET("/game/:id", h.game)

	api := router.Group("/api")
	{
		api.GET("/stories", h.listStories)
		api.GET("/stories/:id", h.getStory)
	}

	router.GET("/ws/play/:id", limiter, h.play)

	router.NoRoute(func(c *gin.Context) {
		h.renderError(c, http.StatusNotFound, "Page not found.")
	})
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
