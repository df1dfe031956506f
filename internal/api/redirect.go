package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/metrics"
)

const notFoundText = "QR code not found"

// RedirectHandler serves the public slug redirects.
type RedirectHandler struct {
	dir *directory.Directory
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(dir *directory.Directory) *RedirectHandler {
	return &RedirectHandler{dir: dir}
}

// Root handles GET /: always a 302 to the default link.
func (h *RedirectHandler) Root(w http.ResponseWriter, r *http.Request) {
	setNoCache(w)
	metrics.Redirects.WithLabelValues(metrics.ResultDefault).Inc()
	found(w, h.dir.DefaultTarget(r.Context()))
}

// Slug handles GET /{slug}.
func (h *RedirectHandler) Slug(w http.ResponseWriter, r *http.Request) {
	setNoCache(w)
	s := slugParam(r)
	target, err := h.dir.RedirectTarget(r.Context(), s)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			slog.Error("redirect lookup failed", slog.String("slug", s), slog.String("error", err.Error()))
		}
		metrics.Redirects.WithLabelValues(metrics.ResultMiss).Inc()
		http.Error(w, notFoundText, http.StatusNotFound)
		return
	}
	metrics.Redirects.WithLabelValues(metrics.ResultHit).Inc()
	found(w, target)
}

// found writes a 302 with target as-is; http.Redirect would rewrite
// scheme-less targets relative to the request path.
func found(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}
