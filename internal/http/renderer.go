package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds one template set per page, each cloned from the layout.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("base").Funcs(templateFuncs()).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		if name == "layout" {
			continue
		}

		tmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone template for %s: %w", page, err)
		}
		if tmpl, err = tmpl.ParseFS(templateFS, page); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", page, err)
		}
		templates[name] = tmpl
	}
	return &Renderer{templates: templates}, nil
}

// Render executes page into a buffer first so a template error never leaves
// a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := r.templates[page]
	if !ok {
		logger.Error().Str("page", page).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error().Err(err).Str("page", page).Msg("failed to render template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"price": func(f float64) string {
			return decimal.NewFromFloat(f).StringFixed(2)
		},
		"subtotal": func(item domain.ResolvedItem) decimal.Decimal {
			return item.Subtotal()
		},
	}
}
