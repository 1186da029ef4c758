// Package web holds the embedded HTML templates and static assets of the
// story site and a gin HTML renderer for them.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"

	"storyworld/internal/player"
	"storyworld/internal/story"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	layoutFile   = "templates/layout.html"
	partialsFile = "templates/partials.html"
	layoutName   = "layout"
)

// Page names.
const (
	PageHome      = "home"
	PageLogin     = "login"
	PageDashboard = "dashboard"
	PageGame      = "game"
	PageError     = "error"
)

// Copyright is shown in the footer of every page.
const Copyright = "© 2023 Story World. All rights reserved."

// Page is the data every template receives.
type Page struct {
	Title    string
	Username string
	Stories  []story.Summary

	// Login and signup form.
	Heading string
	Action  string
	Error   string

	// Story page.
	StoryID string
	View    *player.View

	// Error page.
	Status  int
	Message string
}

// Renderer implements gin's render.HTMLRender. Every page is parsed together
// with the layout and the shared partials into its own template set.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var _ render.HTMLRender = (*Renderer)(nil)

// NewRenderer parses all embedded page templates.
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"copyright": func() string { return Copyright },
		"add":       func(a, b int) int { return a + b },
	}

	files, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template), logger: logger.Named("TemplateRenderer")}
	for _, file := range files {
		if file == layoutFile || file == partialsFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, layoutFile, partialsFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		r.pages[name] = tmpl
	}
	for _, name := range []string{PageHome, PageLogin, PageDashboard, PageGame, PageError} {
		if !r.Has(name) {
			return nil, fmt.Errorf("missing page template %s", name)
		}
	}
	r.logger.Info("Templates loaded", zap.Int("pages", len(r.pages)))
	return r, nil
}

// Instance satisfies render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("Template not found", zap.String("templateName", name))
		tmpl = r.pages[PageError]
		data = Page{Title: "Error", Status: http.StatusInternalServerError, Message: "Something went wrong."}
	}
	return render.HTML{Template: tmpl, Name: layoutName, Data: data}
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Static returns the static assets (css, js) rooted at the static directory.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
