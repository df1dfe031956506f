package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	Service      *Service
	Sessions     sessions.Store
	Admin        Credentials
	SecureCookie bool

	// APIEnabled mounts the JSON API under /api, guarded by APIToken.
	APIEnabled bool
	APIToken   string

	// Events, if non-nil, is served at GET /admin/events.
	Events http.Handler
	// MCP, if non-nil, is mounted at /api/mcp behind the API token.
	MCP http.Handler
}

// NewRouter creates a chi router with the JSON API routes. token is
// required as a Bearer token on every request.
func NewRouter(svc *Service, token string, mcpHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(token))

	r.Get("/links", h.ListLinks)
	r.Get("/links/{slug}", h.GetLink)
	r.Put("/links/{slug}", h.SaveLink)
	r.Delete("/links/{slug}", h.DeleteLink)
	r.Post("/links/{slug}/favorite", h.ToggleFavorite)
	r.Get("/links/{slug}/qr", h.QRCode)
	r.Post("/slugs", h.GenerateSlug)

	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}

	return r
}

// NewAdminRouter creates the cookie-authenticated admin routes.
func NewAdminRouter(h *AdminHandler, events http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(h.store))

		r.Get("/", h.Index)
		r.Post("/save", h.Save)
		r.Post("/delete", h.Delete)
		r.Post("/toggle-favorite", h.ToggleFavorite)
		r.Get("/generate-slug", h.GenerateSlug)
		r.Get("/qr/{slug}", h.QRCode)

		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})

	return r
}

// Mount registers the admin UI, the optional JSON API and the public
// redirects on r. Static routes on r, such as /health, shadow slugs of the
// same name.
func Mount(r chi.Router, cfg RouterConfig) {
	admin := NewAdminHandler(cfg.Service, cfg.Sessions, cfg.Admin, cfg.SecureCookie)
	r.Mount("/admin", NewAdminRouter(admin, cfg.Events))

	if cfg.APIEnabled {
		r.Mount("/api", NewRouter(cfg.Service, cfg.APIToken, cfg.MCP))
	}

	rh := NewRedirectHandler(cfg.Service.Directory())
	r.Get("/", rh.Root)
	r.Get("/{slug}", rh.Slug)
}
