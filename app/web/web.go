// Package web implements the single-page user interface of the shop inventory
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/shopinv/app/inventory"
	"github.com/umputun/shopinv/app/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server represents the web server
type Server struct {
	app            *inventory.App
	templates      map[string]*template.Template
	version        string
	passwordHash   string                      // bcrypt hash for basic auth
	csrfProtection *http.CrossOriginProtection // csrf protection for POST endpoints
	loginLimiter   *limiter.Limiter
}

// Config holds server configuration
type Config struct {
	App          *inventory.App
	Version      string
	PasswordHash string // bcrypt hash for password auth, empty to disable
}

// TemplateData holds data for the page template
type TemplateData struct {
	Items       []store.Item
	State       inventory.State
	LoadError   bool // items can't be listed, the table is empty because of it
	AuthEnabled bool
	Version     string
	CurrentYear int
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("web server initialization failed: App is required")
	}

	s := &Server{
		app:            cfg.App,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		csrfProtection: http.NewCrossOriginProtection(),
		loginLimiter: tollbooth.NewLimiter(5, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Minute}).
			SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"}).
			SetMessage("Too many login attempts, try again later"),
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and blocks until ctx is done
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on http://%s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(100),
		rest.AppInfo("shopinv", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024),
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// must be set before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /{$}", s.handlePage)
	router.HandleFunc("GET /items/{id}", s.handleSelect)

	// form actions, each one redirects back to the page on success
	router.Group().Route(func(act *routegroup.Bundle) {
		act.Use(rest.NoCache, s.csrfProtection.Handler)
		act.HandleFunc("POST /items", s.handleAdd)
		act.HandleFunc("POST /items/update", s.handleUpdate)
		act.HandleFunc("POST /items/remove", s.handleRemoveRequest)
		act.HandleFunc("POST /items/remove/confirm", s.handleRemoveConfirm)
		act.HandleFunc("POST /clear", s.handleClear)
		act.HandleFunc("POST /notice/dismiss", s.handleDismiss)
	})

	// read-only API for scripts
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /items", s.handleAPIItems)
		api.HandleFunc("GET /items.yaml", s.handleAPIItemsYAML)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template with the given status code
func (s *Server) render(w http.ResponseWriter, status int, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"price":    formatPrice,
		"quantity": formatQuantity,
	}

	page, err := template.New("page.html").Funcs(funcMap).ParseFS(templatesFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	templates["page"] = page

	// standalone, doesn't use the page layout
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// template helper functions

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func formatQuantity(q int64) string {
	return strconv.FormatInt(q, 10)
}

// shortVersion extracts a short version string from full version
// for version like "v1.7.0-abc1234-20241225", returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
