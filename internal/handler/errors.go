package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyworld/internal/middleware"
	"storyworld/internal/story"
	"storyworld/internal/web"
)

// APIError is the body of every failed API response.
type APIError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, story.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, story.ErrLoadTransport):
		return http.StatusBadGateway
	case errors.Is(err, story.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, story.ErrBrokenLink):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, story.ErrStoryNotFound):
		return "This story does not exist."
	case errors.Is(err, story.ErrLoadTransport):
		return "The story could not be loaded. Please try again later."
	default:
		return "Something went wrong."
	}
}

func (h *Handler) logError(c *gin.Context, err error, status int) {
	fields := []zap.Field{
		zap.String("requestID", middleware.RequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.String("kind", story.Kind(err)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Story request failed", fields...)
		return
	}
	h.logger.Warn("Story request failed", fields...)
}

func (h *Handler) abortAPI(c *gin.Context, err error) {
	status := statusFor(err)
	h.logError(c, err, status)
	c.AbortWithStatusJSON(status, APIError{Message: messageFor(err), Kind: story.Kind(err)})
}

func (h *Handler) abortPage(c *gin.Context, err error) {
	status := statusFor(err)
	h.logError(c, err, status)
	h.renderError(c, status, messageFor(err))
}

func (h *Handler) renderError(c *gin.Context, status int, message string) {
	c.HTML(status, web.PageError, web.Page{Title: "Error", Status: status, Message: message})
	c.Abort()
}
