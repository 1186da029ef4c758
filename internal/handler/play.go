package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyworld/internal/middleware"
	"storyworld/internal/player"
)

// play upgrades to a websocket before loading the story so that load
// failures reach the browser as error messages on the socket.
func (h *Handler) play(c *gin.Context) {
	conn, err := h.sessions.Upgrade(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("Failed to upgrade play connection",
			zap.String("requestID", middleware.RequestID(c)),
			zap.Error(err),
		)
		return
	}

	game, _, err := player.Load(c.Request.Context(), h.source, c.Param("id"))
	if err != nil {
		h.logError(c, err, statusFor(err))
		h.sessions.Reject(conn, err)
		return
	}
	h.sessions.Open(conn, game, strings.TrimSpace(c.Query("username")))
}
