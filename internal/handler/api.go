package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listStories(c *gin.Context) {
	stories, err := h.source.List(c.Request.Context())
	if err != nil {
		h.abortAPI(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *Handler) getStory(c *gin.Context) {
	graph, err := h.source.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortAPI(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}
