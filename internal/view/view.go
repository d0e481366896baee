// Package view renders the server-side HTML pages.
package view

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

const (
	layoutGlob = "templates/layout/*.html"
	pageGlob   = "templates/*.html"
	baseName   = "base.html"
	// HTMX swaps only the content block.
	contentName = "content"
)

type NavItem struct {
	Path  string
	Label string
}

var (
	UserNav = []NavItem{
		{"/home", "Dashboard"},
		{"/transactions", "Transactions"},
		{"/budgets", "Budgets"},
		{"/categories", "Categories"},
		{"/analytics", "Analytics"},
		{"/wallet", "Wallet"},
		{"/settings", "Settings"},
	}
	AdminNav = []NavItem{
		{"/admin", "Overview"},
		{"/admin/users", "Users"},
		{"/admin/analytics", "Analytics"},
		{"/admin/transactions", "Transactions"},
	}
)

// Dialog is the modal shown after a failed or notable action.
type Dialog struct {
	Kind    string // "error" or "info"
	Message string
	Details []string
}

func ErrorDialog(message string, details ...string) *Dialog {
	return &Dialog{Kind: "error", Message: message, Details: details}
}

func InfoDialog(message string) *Dialog {
	return &Dialog{Kind: "info", Message: message}
}

// Page is the data every template receives.
type Page struct {
	Title  string
	Active string
	User   *user.Profile
	Nav    []NavItem
	CSRF   string
	Dialog *Dialog
	Data   any
}

// IsAdminArea reports whether the admin navigation is shown.
func (p Page) IsAdminArea() bool {
	return p.Active == "/admin" || strings.HasPrefix(p.Active, "/admin/")
}

type Renderer struct {
	pages  map[string]*template.Template
	logger *applog.Logger
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	},
	"percent":  func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"negative": func(v float64) bool { return v < 0 },
	"dict":     dict,
}

// dict builds a map from alternating keys and values, for passing several
// values to a nested template.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// NewRenderer parses every page in fsys together with the shared layout.
func NewRenderer(fsys fs.FS, logger *applog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	layout, err := template.New(baseName).Funcs(funcs).ParseFS(fsys, layoutGlob)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(fsys, pageGlob)
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		set, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = set
	}
	return &Renderer{pages: pages, logger: logger.WithComponent(applog.ComponentTemplate)}, nil
}

// Has reports whether a page called name was parsed.
func (v *Renderer) Has(name string) bool {
	_, ok := v.pages[name]
	return ok
}

// Render writes page name with status. The session user, navigation and
// CSRF token are filled from the request when the caller left them empty.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	set, ok := v.pages[name]
	if !ok {
		v.logger.ErrorContext(r.Context(), "unknown template", "template", name)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	if page.User == nil {
		if s := session.FromContext(r.Context()); s != nil {
			page.User = s.State().User
		}
	}
	if page.Active == "" {
		page.Active = r.URL.Path
	}
	if page.Nav == nil && page.User != nil {
		page.Nav = UserNav
		if page.IsAdminArea() {
			page.Nav = AdminNav
		}
	}
	if page.CSRF == "" {
		page.CSRF = CSRFToken(r.Context())
	}

	target := baseName
	if r.Header.Get("HX-Request") == "true" {
		target = contentName
	}

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, target, page); err != nil {
		v.logger.ErrorContext(r.Context(), "template execution failed",
			"template", name, applog.FieldOperation, applog.OpRender, applog.FieldError, err.Error())
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type csrfKey struct{}

// WithCSRFToken makes token available to forms rendered for this request.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfKey{}, token)
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}
