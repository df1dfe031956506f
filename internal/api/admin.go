package api

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/gorilla/sessions"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const sessionMaxAge = 24 * 60 * 60

// Credentials are the admin login pair.
type Credentials struct {
	Username string
	Password string
}

type loginForm struct {
	Username string `schema:"username"`
	Password string `schema:"password"`
}

type saveForm struct {
	Slug string `schema:"slug"`
	URL  string `schema:"url"`
	Name string `schema:"name"`
}

type slugForm struct {
	Slug string `schema:"slug"`
}

type adminPage struct {
	Default models.Link
	Links   []models.Link
	BaseURL string
}

// AdminHandler serves the cookie-authenticated admin UI.
type AdminHandler struct {
	svc          *Service
	store        sessions.Store
	creds        Credentials
	secureCookie bool
	decoder      *schema.Decoder
}

// NewAdminHandler creates an admin handler. secureCookie marks the session
// cookie Secure.
func NewAdminHandler(svc *Service, store sessions.Store, creds Credentials, secureCookie bool) *AdminHandler {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	return &AdminHandler{svc: svc, store: store, creds: creds, secureCookie: secureCookie, decoder: dec}
}

func (h *AdminHandler) decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return h.decoder.Decode(dst, r.PostForm)
}

// LoginPage handles GET /admin/login.
func (h *AdminHandler) LoginPage(w http.ResponseWriter, _ *http.Request) {
	setNoCache(w)
	render(w, http.StatusOK, "login.html", map[string]string{})
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	_ = h.decodeForm(r, &form)

	userOK := secureEqual(form.Username, h.creds.Username)
	passOK := secureEqual(form.Password, h.creds.Password)
	if !userOK || !passOK {
		setNoCache(w)
		render(w, http.StatusUnauthorized, "login.html", map[string]string{"Error": "Invalid credentials"})
		return
	}

	// A stale or foreign cookie fails to decode; a fresh session replaces it.
	session, _ := h.store.Get(r, SessionName)
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	session.Values[sessionAuthKey] = true
	if err := session.Save(r, w); err != nil {
		slog.Error("save session failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// Logout handles GET /admin/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.store.Get(r, SessionName)
	session.Options = &sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true}
	delete(session.Values, sessionAuthKey)
	_ = session.Save(r, w)
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

// Index handles GET /admin.
func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	def, err := h.svc.dir.Get(ctx, models.DefaultSlug)
	if err != nil {
		def = models.Link{Slug: models.DefaultSlug, URL: h.svc.dir.DefaultTarget(ctx)}
	}
	setNoCache(w)
	render(w, http.StatusOK, "admin.html", adminPage{
		Default: def,
		Links:   h.svc.dir.ListForDisplay(ctx),
		BaseURL: h.svc.baseURL,
	})
}

// Save handles POST /admin/save.
func (h *AdminHandler) Save(w http.ResponseWriter, r *http.Request) {
	var form saveForm
	if err := h.decodeForm(r, &form); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if _, err := h.svc.dir.Upsert(r.Context(), form.Slug, form.URL, form.Name); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			http.Error(w, "Slug and URL are required", http.StatusBadRequest)
			return
		}
		slog.Error("save link failed", slog.String("slug", form.Slug), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// Delete handles POST /admin/delete.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var form slugForm
	_ = h.decodeForm(r, &form)
	if form.Slug != "" {
		if _, err := h.svc.dir.Delete(r.Context(), form.Slug); errors.Is(err, apperr.ErrReserved) {
			http.Error(w, "The default link cannot be deleted", http.StatusBadRequest)
			return
		}
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// ToggleFavorite handles POST /admin/toggle-favorite. Unknown slugs are
// ignored.
func (h *AdminHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var form slugForm
	_ = h.decodeForm(r, &form)
	if form.Slug != "" {
		_, _ = h.svc.dir.ToggleFavorite(r.Context(), form.Slug)
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// GenerateSlug handles GET /admin/generate-slug.
func (h *AdminHandler) GenerateSlug(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.dir.GenerateSlug(r.Context())
	if err != nil {
		slog.Warn("generate slug failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Could not generate unique slug"))
		return
	}
	writeJSON(w, http.StatusOK, SlugResponse{Slug: s})
}

// QRCode handles GET /admin/qr/{slug}.
func (h *AdminHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	writeQR(w, r, h.svc, slugParam(r))
}

func writeQR(w http.ResponseWriter, r *http.Request, svc *Service, slug string) {
	resp, err := svc.QRCode(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("link not found"))
			return
		}
		slog.Error("QR code generation failed", slog.String("slug", slug), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Failed to generate QR code"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render template failed", slog.String("template", name), slog.String("error", err.Error()))
	}
}
