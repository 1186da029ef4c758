package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyworld/internal/middleware"
	"storyworld/internal/player"
	"storyworld/internal/web"
)

const invalidUsername = "Please enter a valid username."

type loginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (h *Handler) home(c *gin.Context) {
	stories, err := h.source.List(c.Request.Context())
	if err != nil {
		h.abortPage(c, err)
		return
	}
	c.HTML(http.StatusOK, web.PageHome, web.Page{
		Username: strings.TrimSpace(c.Query("username")),
		Stories:  stories,
	})
}

func (h *Handler) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, web.PageLogin, loginPage("Log in", "/login"))
}

func (h *Handler) signupForm(c *gin.Context) {
	c.HTML(http.StatusOK, web.PageLogin, loginPage("Sign up", "/signup"))
}

func (h *Handler) login(c *gin.Context) {
	h.enter(c, loginPage("Log in", "/login"))
}

// signup has no account store behind it and admits any username, like login.
func (h *Handler) signup(c *gin.Context) {
	h.enter(c, loginPage("Sign up", "/signup"))
}

func (h *Handler) enter(c *gin.Context, page web.Page) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid login form", zap.String("requestID", middleware.RequestID(c)), zap.Error(err))
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		page.Error = invalidUsername
		c.HTML(http.StatusBadRequest, web.PageLogin, page)
		return
	}
	h.logger.Info("User entered", zap.String("username", username), zap.String("route", page.Action))
	c.Redirect(http.StatusSeeOther, "/mainpage?username="+url.QueryEscape(username))
}

func (h *Handler) dashboard(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	stories, err := h.source.List(c.Request.Context())
	if err != nil {
		h.abortPage(c, err)
		return
	}
	c.HTML(http.StatusOK, web.PageDashboard, web.Page{
		Title:    "Dashboard",
		Username: username,
		Stories:  stories,
	})
}

func (h *Handler) game(c *gin.Context) {
	id := c.Param("id")
	game, state, err := player.Load(c.Request.Context(), h.source, id)
	if err != nil {
		h.abortPage(c, err)
		return
	}
	view := game.View(state)
	// The opening paragraph is typed in by the play socket.
	view.Typing = ""
	c.HTML(http.StatusOK, web.PageGame, web.Page{
		Title:    game.Title(),
		Username: strings.TrimSpace(c.Query("username")),
		StoryID:  id,
		View:     &view,
	})
}

func loginPage(heading, action string) web.Page {
	return web.Page{Title: heading, Heading: heading, Action: action}
}
